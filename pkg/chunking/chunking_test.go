package chunking

import (
	"strings"
	"testing"

	"github.com/Dhana009/haystack/pkg/fingerprint"
)

// wordCounter treats whitespace-separated words as tokens. It keeps
// the tests independent of tiktoken encodings.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func (wordCounter) SplitByTokens(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// runeCounter treats every rune as a token, so a single word can
// overflow the budget and force the token-space fallback.
type runeCounter struct{}

func (runeCounter) Count(text string) int {
	return len([]rune(text))
}

func (runeCounter) SplitByTokens(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func newTestChunker(t *testing.T, size, overlap int, counter Counter) *Chunker {
	t.Helper()
	c, err := NewWithCounter(Config{Size: size, Overlap: overlap}, counter)
	if err != nil {
		t.Fatalf("NewWithCounter failed: %v", err)
	}
	return c
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()

	if cfg.Size != DefaultChunkSize {
		t.Errorf("expected size %d, got %d", DefaultChunkSize, cfg.Size)
	}
	if cfg.Overlap != DefaultChunkOverlap {
		t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, cfg.Overlap)
	}
	if len(cfg.Separators) != 4 || cfg.Separators[0] != "\n\n" {
		t.Errorf("unexpected separators: %v", cfg.Separators)
	}
}

func TestConfigExplicitZeroOverlap(t *testing.T) {
	cfg := Config{Size: 100}
	cfg.SetDefaults()

	if cfg.Overlap != 0 {
		t.Errorf("explicit size with zero overlap should stay zero, got %d", cfg.Overlap)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative size", Config{Size: -1, Overlap: 0}},
		{"negative overlap", Config{Size: 10, Overlap: -1}},
		{"overlap equals size", Config{Size: 10, Overlap: 10}},
		{"overlap exceeds size", Config{Size: 10, Overlap: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestChunkEmpty(t *testing.T) {
	c := newTestChunker(t, 3, 1, wordCounter{})

	chunks, err := c.Chunk("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty content, got %d", len(chunks))
	}
}

func TestChunkUnderBudget(t *testing.T) {
	c := newTestChunker(t, 10, 2, wordCounter{})

	content := "short enough to fit"
	chunks, err := c.Chunk(content)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	ch := chunks[0]
	if ch.Content != content {
		t.Errorf("content altered: %q", ch.Content)
	}
	if ch.Index != 0 || ch.Total != 1 {
		t.Errorf("expected index 0 of 1, got %d of %d", ch.Index, ch.Total)
	}
	if ch.Tokens != 4 {
		t.Errorf("expected 4 tokens, got %d", ch.Tokens)
	}
	if ch.Hash != fingerprint.ContentHash(content) {
		t.Errorf("hash does not match content hash")
	}
}

func TestChunkOverlapWindows(t *testing.T) {
	c := newTestChunker(t, 3, 1, wordCounter{})

	chunks, err := c.Chunk("a b c d e f")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	want := []string{"a b c ", "c d e ", "e f"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Content != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Content)
		}
		if chunks[i].Index != i {
			t.Errorf("chunk %d: index %d", i, chunks[i].Index)
		}
		if chunks[i].Total != len(want) {
			t.Errorf("chunk %d: total %d", i, chunks[i].Total)
		}
		if chunks[i].Tokens > 3 {
			t.Errorf("chunk %d exceeds budget: %d tokens", i, chunks[i].Tokens)
		}
	}
}

func TestChunkReassemblyWithoutOverlap(t *testing.T) {
	c := newTestChunker(t, 4, 0, wordCounter{})

	content := "first paragraph here\n\nsecond paragraph follows now\nthird line ends it"
	chunks, err := c.Chunk(content)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Content)
	}
	if b.String() != content {
		t.Errorf("reassembled content differs:\nwant %q\ngot  %q", content, b.String())
	}
}

func TestChunkPrefersCoarseSeparators(t *testing.T) {
	c := newTestChunker(t, 5, 1, wordCounter{})

	content := "one two three\n\nfour five six\n\nseven eight nine"
	chunks, err := c.Chunk(content)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	// Each 3-token paragraph plus a neighbor overflows the 5-token
	// budget, so every paragraph becomes its own chunk, uncut.
	want := []string{"one two three\n\n", "four five six\n\n", "seven eight nine"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Content != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Content)
		}
	}
}

func TestChunkHardSplit(t *testing.T) {
	c := newTestChunker(t, 4, 1, runeCounter{})

	chunks, err := c.Chunk("abcdefghij")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	var joined strings.Builder
	for i, ch := range chunks {
		if ch.Tokens > 4 {
			t.Errorf("chunk %d exceeds budget: %d tokens", i, ch.Tokens)
		}
		joined.WriteString(ch.Content)
	}
	for _, r := range "abcdefghij" {
		if !strings.ContainsRune(joined.String(), r) {
			t.Errorf("rune %q lost during hard split", r)
		}
	}
	// Adjacent windows share the overlap rune.
	if chunks[1].Content[0] != chunks[0].Content[len(chunks[0].Content)-1] {
		t.Errorf("expected overlap between %q and %q", chunks[0].Content, chunks[1].Content)
	}
}

func TestNeedsChunking(t *testing.T) {
	c := newTestChunker(t, 3, 1, wordCounter{})

	if c.NeedsChunking("one two three") {
		t.Error("content at the budget should not need chunking")
	}
	if !c.NeedsChunking("one two three four") {
		t.Error("content over the budget should need chunking")
	}
}

func TestChunkHashesAreContentHashes(t *testing.T) {
	c := newTestChunker(t, 3, 1, wordCounter{})

	chunks, err := c.Chunk("alpha beta gamma delta epsilon zeta")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i, ch := range chunks {
		if ch.Hash != fingerprint.ContentHash(ch.Content) {
			t.Errorf("chunk %d hash mismatch", i)
		}
	}
}

func storedFromChunks(chunks []Chunk) []Stored {
	stored := make([]Stored, len(chunks))
	for i, ch := range chunks {
		stored[i] = Stored{
			PointID: "point-" + string(rune('a'+i)),
			Index:   ch.Index,
			Hash:    ch.Hash,
		}
	}
	return stored
}

func TestDiffAllUnchanged(t *testing.T) {
	c := newTestChunker(t, 3, 1, wordCounter{})

	chunks, err := c.Chunk("a b c d e f")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	stored := storedFromChunks(chunks)

	d := Diff(stored, chunks)
	if !d.InPlace() {
		t.Errorf("identical chunking should be in place: %+v", d)
	}
	if len(d.Unchanged) != len(chunks) {
		t.Errorf("expected %d unchanged, got %d", len(chunks), len(d.Unchanged))
	}
	for i, s := range d.Unchanged {
		if s.PointID != stored[i].PointID {
			t.Errorf("unchanged chunk %d lost its point ID", i)
		}
	}
}

func TestDiffClassification(t *testing.T) {
	hash := func(s string) string { return fingerprint.ContentHash(s) }

	stored := []Stored{
		{PointID: "p0", Index: 0, Hash: hash("zero")},
		{PointID: "p1", Index: 1, Hash: hash("one")},
		{PointID: "p2", Index: 2, Hash: hash("two")},
		{PointID: "p3", Index: 3, Hash: hash("three")},
		{PointID: "p4", Index: 4, Hash: hash("four")},
		{PointID: "p5", Index: 5, Hash: hash("five")},
	}
	fresh := []Chunk{
		{Content: "zero", Index: 0, Hash: hash("zero")},
		{Content: "one CHANGED", Index: 1, Hash: hash("one CHANGED")},
		{Content: "two", Index: 2, Hash: hash("two")},
		{Content: "three CHANGED", Index: 3, Hash: hash("three CHANGED")},
		{Content: "four", Index: 4, Hash: hash("four")},
		{Content: "five", Index: 5, Hash: hash("five")},
		{Content: "six is new", Index: 6, Hash: hash("six is new")},
	}

	d := Diff(stored, fresh)

	unchanged, changed, added, deleted := d.Counts()
	if unchanged != 4 || changed != 2 || added != 1 || deleted != 0 {
		t.Fatalf("expected 4/2/1/0, got %d/%d/%d/%d", unchanged, changed, added, deleted)
	}
	if unchanged+changed+added != len(fresh) {
		t.Errorf("fresh chunks not fully classified")
	}
	if unchanged+changed+deleted != len(stored) {
		t.Errorf("stored chunks not fully accounted for")
	}

	if len(d.Superseded) != len(d.Changed) {
		t.Fatalf("superseded (%d) must parallel changed (%d)", len(d.Superseded), len(d.Changed))
	}
	for i, ch := range d.Changed {
		if d.Superseded[i].Index != ch.Index {
			t.Errorf("superseded[%d] index %d does not match changed index %d",
				i, d.Superseded[i].Index, ch.Index)
		}
	}
	if d.Superseded[0].PointID != "p1" || d.Superseded[1].PointID != "p3" {
		t.Errorf("unexpected superseded point IDs: %+v", d.Superseded)
	}
	if d.New[0].Index != 6 {
		t.Errorf("expected new chunk at index 6, got %d", d.New[0].Index)
	}
}

func TestDiffShrink(t *testing.T) {
	hash := func(s string) string { return fingerprint.ContentHash(s) }

	stored := []Stored{
		{PointID: "p0", Index: 0, Hash: hash("zero")},
		{PointID: "p1", Index: 1, Hash: hash("one")},
		{PointID: "p2", Index: 2, Hash: hash("two")},
		{PointID: "p3", Index: 3, Hash: hash("three")},
	}
	fresh := []Chunk{
		{Content: "zero", Index: 0, Hash: hash("zero")},
		{Content: "one", Index: 1, Hash: hash("one")},
	}

	d := Diff(stored, fresh)

	unchanged, changed, added, deleted := d.Counts()
	if unchanged != 2 || changed != 0 || added != 0 || deleted != 2 {
		t.Fatalf("expected 2/0/0/2, got %d/%d/%d/%d", unchanged, changed, added, deleted)
	}
	if d.Deleted[0].PointID != "p2" || d.Deleted[1].PointID != "p3" {
		t.Errorf("unexpected deleted point IDs: %+v", d.Deleted)
	}
	if d.InPlace() {
		t.Error("a shrink is not an in-place update")
	}
}

func TestDiffEmptyStored(t *testing.T) {
	fresh := []Chunk{
		{Content: "a", Index: 0, Hash: fingerprint.ContentHash("a")},
		{Content: "b", Index: 1, Hash: fingerprint.ContentHash("b")},
	}

	d := Diff(nil, fresh)
	if len(d.New) != 2 || len(d.Unchanged) != 0 || len(d.Deleted) != 0 {
		t.Errorf("all fresh chunks should be new: %+v", d)
	}
}
