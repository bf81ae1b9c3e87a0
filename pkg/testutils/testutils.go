// Package testutils provides the in-memory fakes shared by tests: a
// store adapter with qdrant-like filter and scroll semantics, a
// deterministic embedder that counts its calls, and a word-counting
// chunker.
package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Dhana009/haystack/pkg/chunking"
	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/filter"
)

// PointID derives the deterministic point UUID for a composite
// fingerprint key, matching what the pipeline writes, so fixtures can
// seed points under the IDs an ingest would produce.
func PointID(compositeKey string) string {
	return uuid.NewMD5(uuid.Nil, []byte(compositeKey)).String()
}

// TestConfig returns a configuration with defaults applied, suitable
// for constructing a pipeline over fakes.
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg
}

// memCollection is one named collection inside the fake store.
type memCollection struct {
	vectorSize uint64
	points     map[string]databases.Point
	indexes    []string
}

// MemoryStore is an in-memory databases.StoreAdapter. Scrolls page in
// deterministic ID order; filters evaluate with the same semantics the
// native translation produces (must_not matches absent fields, ranges
// need numeric values).
//
// Err arms failure injection: when set, every call whose operation is
// named in FailOps (or every call, when FailOps is empty) returns it.
// Calls counts operations by name for cost assertions.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	cursors     map[*databases.PointRef]string

	Err     error
	FailOps map[string]bool
	Calls   map[string]int
}

// NewMemoryStore returns an empty fake store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]*memCollection{},
		cursors:     map[*databases.PointRef]string{},
		Calls:       map[string]int{},
	}
}

// Seed loads points into a collection, creating it as needed. Intended
// for test setup; payloads are stored as given.
func (s *MemoryStore) Seed(collection string, points ...databases.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	for _, p := range points {
		c.points[p.ID] = clonePoint(p)
	}
}

// Len reports how many points a collection holds.
func (s *MemoryStore) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return 0
	}
	return len(c.points)
}

// Point returns a stored point by ID.
func (s *MemoryStore) Point(collection, id string) (databases.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return databases.Point{}, false
	}
	p, ok := c.points[id]
	if !ok {
		return databases.Point{}, false
	}
	return clonePoint(p), true
}

// collection returns the named collection, creating it on first use.
// Callers hold the lock.
func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{points: map[string]databases.Point{}}
		s.collections[name] = c
	}
	return c
}

// fail returns the armed error when op is selected for failure.
// Callers hold the lock.
func (s *MemoryStore) fail(op string) error {
	s.Calls[op]++
	if s.Err == nil {
		return nil
	}
	if len(s.FailOps) > 0 && !s.FailOps[op] {
		return nil
	}
	return s.Err
}

func (s *MemoryStore) Scroll(ctx context.Context, collection string, f filter.Node, limit uint32, offset *databases.PointRef, withPayload, withVectors bool) (*databases.ScrollPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("scroll"); err != nil {
		return nil, err
	}
	if limit == 0 || limit > databases.DefaultScrollLimit {
		limit = databases.DefaultScrollLimit
	}

	ids := s.matchingIDs(collection, f)

	start := 0
	if offset != nil {
		startID, ok := s.cursors[offset]
		delete(s.cursors, offset)
		if ok {
			for i, id := range ids {
				if id >= startID {
					start = i
					break
				}
			}
		}
	}

	end := start + int(limit)
	if end > len(ids) {
		end = len(ids)
	}

	page := &databases.ScrollPage{}
	c := s.collections[collection]
	for _, id := range ids[start:end] {
		page.Points = append(page.Points, s.view(c.points[id], withPayload, withVectors))
	}
	if end < len(ids) {
		ref := &databases.PointRef{}
		s.cursors[ref] = ids[end]
		page.NextOffset = ref
	}
	return page, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, points []databases.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("upsert"); err != nil {
		return err
	}
	c := s.collection(collection)
	for _, p := range points {
		c.points[p.ID] = clonePoint(p)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete"); err != nil {
		return err
	}
	c := s.collection(collection)
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func (s *MemoryStore) SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("set_payload"); err != nil {
		return err
	}
	c := s.collection(collection)
	for _, id := range ids {
		p, ok := c.points[id]
		if !ok {
			continue
		}
		if p.Payload == nil {
			p.Payload = map[string]any{}
		}
		for k, v := range payload {
			p.Payload[k] = cloneValue(v)
		}
		c.points[id] = p
	}
	return nil
}

func (s *MemoryStore) Retrieve(ctx context.Context, collection string, ids []string, withPayload, withVectors bool) ([]databases.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("retrieve"); err != nil {
		return nil, err
	}
	c := s.collection(collection)
	var out []databases.Point
	for _, id := range ids {
		p, ok := c.points[id]
		if !ok {
			continue
		}
		out = append(out, s.view(p, withPayload, withVectors))
	}
	return out, nil
}

func (s *MemoryStore) Search(ctx context.Context, collection string, vector []float32, f filter.Node, topK int) ([]databases.ScoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("search"); err != nil {
		return nil, err
	}

	var hits []databases.ScoredPoint
	for _, id := range s.matchingIDs(collection, f) {
		p := s.collections[collection].points[id]
		if len(p.Vector) == 0 {
			continue
		}
		hits = append(hits, databases.ScoredPoint{
			Point: s.view(p, true, false),
			Score: cosine(vector, p.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, f filter.Node) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("count"); err != nil {
		return 0, err
	}
	return uint64(len(s.matchingIDs(collection, f))), nil
}

func (s *MemoryStore) CollectionInfo(ctx context.Context, collection string) (*databases.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("collection_info"); err != nil {
		return nil, err
	}
	c := s.collection(collection)
	return &databases.CollectionInfo{
		PointsCount:   uint64(len(c.points)),
		VectorSize:    c.vectorSize,
		Status:        "green",
		IndexedFields: append([]string(nil), c.indexes...),
	}, nil
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ensure_collection"); err != nil {
		return err
	}
	c := s.collection(collection)
	if c.vectorSize == 0 {
		c.vectorSize = vectorSize
	}
	return nil
}

func (s *MemoryStore) EnsureKeywordIndex(ctx context.Context, collection string, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ensure_index"); err != nil {
		return err
	}
	c := s.collection(collection)
	for _, existing := range c.indexes {
		if existing == field {
			return nil
		}
	}
	c.indexes = append(c.indexes, field)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// matchingIDs returns the sorted IDs of every point in collection that
// satisfies the filter. Callers hold the lock.
func (s *MemoryStore) matchingIDs(collection string, f filter.Node) []string {
	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(c.points))
	for id, p := range c.points {
		if Match(f, p.Payload) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// view copies a point honoring the payload/vector flags.
func (s *MemoryStore) view(p databases.Point, withPayload, withVectors bool) databases.Point {
	out := databases.Point{ID: p.ID}
	if withPayload {
		out.Payload = cloneMap(p.Payload)
	}
	if withVectors {
		out.Vector = append([]float32(nil), p.Vector...)
	}
	return out
}

// Match reports whether a payload satisfies the filter tree, with the
// semantics the native filter translation produces: equality and
// membership need the field present, their negations also match absent
// fields, ranges compare numerically, NOT holds when no condition
// matches.
func Match(node filter.Node, payload map[string]any) bool {
	if node == nil {
		return true
	}
	switch n := node.(type) {
	case *filter.Comparison:
		return matchComparison(n, payload)
	case *filter.Logic:
		switch n.Operator {
		case filter.LogicAnd:
			for _, cond := range n.Conditions {
				if !Match(cond, payload) {
					return false
				}
			}
			return true
		case filter.LogicOr:
			for _, cond := range n.Conditions {
				if Match(cond, payload) {
					return true
				}
			}
			return false
		case filter.LogicNot:
			for _, cond := range n.Conditions {
				if Match(cond, payload) {
					return false
				}
			}
			return true
		}
	}
	return false
}

func matchComparison(n *filter.Comparison, payload map[string]any) bool {
	value, present := lookupPath(payload, n.Field)

	switch n.Operator {
	case filter.OpEq:
		return present && valuesEqual(value, n.Value)
	case filter.OpNe:
		return !(present && valuesEqual(value, n.Value))
	case filter.OpIn:
		return present && isMember(value, n.Value)
	case filter.OpNotIn:
		return !(present && isMember(value, n.Value))
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		if !present {
			return false
		}
		have, ok1 := toFloat(value)
		want, ok2 := toFloat(n.Value)
		if !ok1 || !ok2 {
			return false
		}
		switch n.Operator {
		case filter.OpGt:
			return have > want
		case filter.OpGte:
			return have >= want
		case filter.OpLt:
			return have < want
		default:
			return have <= want
		}
	}
	return false
}

// lookupPath resolves a dotted field path through nested maps.
func lookupPath(payload map[string]any, path string) (any, bool) {
	current := any(payload)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func isMember(value, members any) bool {
	list, ok := members.([]any)
	if !ok {
		switch v := members.(type) {
		case []string:
			for _, m := range v {
				if valuesEqual(value, m) {
					return true
				}
			}
		case []int:
			for _, m := range v {
				if valuesEqual(value, m) {
					return true
				}
			}
		}
		return false
	}
	for _, m := range list {
		if valuesEqual(value, m) {
			return true
		}
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func clonePoint(p databases.Point) databases.Point {
	return databases.Point{
		ID:      p.ID,
		Vector:  append([]float32(nil), p.Vector...),
		Payload: cloneMap(p.Payload),
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Embedder is a deterministic embedders.Provider: equal text embeds to
// the equal vector, and Calls counts embedding invocations so tests can
// assert how many embeddings an operation paid for.
type Embedder struct {
	mu    sync.Mutex
	dim   int
	model string

	Calls int
	Err   error
}

// NewEmbedder returns a fake embedder of the given dimension.
func NewEmbedder(model string, dim int) *Embedder {
	if dim <= 0 {
		dim = 8
	}
	return &Embedder{model: model, dim: dim}
}

func (e *Embedder) Embed(text string) ([]float32, error) {
	return e.EmbedWithContext(context.Background(), text)
}

func (e *Embedder) EmbedWithContext(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return deriveVector(text, e.dim), nil
}

func (e *Embedder) GetDimension() int { return e.dim }

func (e *Embedder) GetModelName() string { return e.model }

func (e *Embedder) Warmup(ctx context.Context) error {
	vector, err := e.EmbedWithContext(ctx, "warmup")
	if err != nil {
		return fmt.Errorf("warmup embed failed for %s: %w", e.model, err)
	}
	if len(vector) != e.dim {
		return fmt.Errorf("embedder %s returned %d dimensions, expected %d", e.model, len(vector), e.dim)
	}
	return nil
}

func (e *Embedder) Close() error { return nil }

// CallCount returns the number of embed calls so far.
func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls
}

// deriveVector builds a unit vector from the text hash. The generator
// is a plain LCG, good enough to keep distinct texts dissimilar.
func deriveVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// WordCounter is a chunking.Counter that treats whitespace-separated
// words as tokens, keeping tests independent of tiktoken encodings.
type WordCounter struct{}

func (WordCounter) Count(text string) int { return len(strings.Fields(text)) }

func (WordCounter) SplitByTokens(text string, size, overlap int) []string {
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

// NewChunker builds a word-counting chunker. The arguments are test
// constants, so construction failures panic rather than thread an
// error through every fixture.
func NewChunker(size, overlap int) *chunking.Chunker {
	c, err := chunking.NewWithCounter(chunking.Config{Size: size, Overlap: overlap}, WordCounter{})
	if err != nil {
		panic(err)
	}
	return c
}
