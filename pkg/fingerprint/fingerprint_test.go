package fingerprint

import (
	"strings"
	"testing"
)

func TestNormalize_LineEndings(t *testing.T) {
	got := Normalize("line one\r\nline two\rline three\n")
	want := "line one\nline two\nline three"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalize_TrailingWhitespace(t *testing.T) {
	got := Normalize("content body  \n\t \n")
	if got != "content body" {
		t.Errorf("expected trailing whitespace stripped, got %q", got)
	}
}

func TestNormalize_RemovesMarkers(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"full content marker", "before [Full content from file...] after", "before  after"},
		{"ellipsis", "before [...] after", "before  after"},
		{"todo", "before [TODO: write this section] after", "before  after"},
		{"tbd case insensitive", "before [tbd: numbers] after", "before  after"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalize_Lowercases(t *testing.T) {
	if got := Normalize("MiXeD Case"); got != "mixed case" {
		t.Errorf("expected lowercased content, got %q", got)
	}
}

func TestContentHash_EquivalentInputs(t *testing.T) {
	a := ContentHash("Hello World\r\n")
	b := ContentHash("hello world")
	if a != b {
		t.Errorf("normalization-equivalent inputs should hash identically: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestContentHash_DifferentContent(t *testing.T) {
	if ContentHash("alpha") == ContentHash("beta") {
		t.Error("different contents must not collide")
	}
}

func TestMetadataHash_KeyOrderIndependent(t *testing.T) {
	a := MetadataHash(map[string]any{"doc_id": "d1", "category": "other", "repo": "r"})
	b := MetadataHash(map[string]any{"repo": "r", "category": "other", "doc_id": "d1"})
	if a != b {
		t.Error("metadata hash must not depend on key order")
	}
}

func TestMetadataHash_IgnoresVolatileFields(t *testing.T) {
	base := map[string]any{"doc_id": "d1", "category": "other"}
	churned := map[string]any{
		"doc_id":     "d1",
		"category":   "other",
		"created_at": "2026-01-01T00:00:00.000000Z",
		"updated_at": "2026-02-01T00:00:00.000000Z",
		"status":     "deprecated",
		"version":    "9",
	}
	if MetadataHash(base) != MetadataHash(churned) {
		t.Error("volatile lifecycle fields must not affect the metadata hash")
	}
}

func TestMetadataHash_IgnoresItself(t *testing.T) {
	base := map[string]any{"doc_id": "d1"}
	withHash := map[string]any{"doc_id": "d1", "metadata_hash": "deadbeef"}
	if MetadataHash(base) != MetadataHash(withHash) {
		t.Error("a previously stored metadata_hash must not feed its own recomputation")
	}
}

func TestMetadataHash_StableFieldsMatter(t *testing.T) {
	a := MetadataHash(map[string]any{"doc_id": "d1", "category": "other"})
	b := MetadataHash(map[string]any{"doc_id": "d2", "category": "other"})
	if a == b {
		t.Error("changing a stable field must change the metadata hash")
	}
}

func TestMetadataHash_NonSerializableValues(t *testing.T) {
	// Values the JSON encoder rejects are stringified instead of
	// failing the whole hash.
	a := MetadataHash(map[string]any{"doc_id": "d1", "weird": make(chan int)})
	if len(a) != 64 {
		t.Errorf("expected a valid hash despite non-serializable value, got %q", a)
	}
}

func TestCompositeKey(t *testing.T) {
	fp := New("some content", map[string]any{"doc_id": "d1"})
	if fp.CompositeKey != fp.ContentHash+":"+fp.MetadataHash {
		t.Errorf("composite key must be contentHash:metadataHash, got %q", fp.CompositeKey)
	}
	if !strings.Contains(fp.CompositeKey, ":") {
		t.Error("composite key must contain the separator")
	}
}

func TestNew_Deterministic(t *testing.T) {
	meta := map[string]any{"doc_id": "d1", "category": "design_doc", "nested": map[string]any{"a": 1}}
	a := New("body", meta)
	b := New("body", meta)
	if a != b {
		t.Errorf("fingerprints must be deterministic: %+v vs %+v", a, b)
	}
}
