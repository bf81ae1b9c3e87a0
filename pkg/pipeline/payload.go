package pipeline

import (
	"github.com/Dhana009/haystack/pkg/databases"
)

// Shape is how a point lays out its metadata in the stored payload.
// Legacy points keep metadata fields at the payload top level; newer
// points nest them under a "meta" object. Writes re-emit whichever
// shape the point was read with; shapes are never silently normalized.
type Shape int

const (
	ShapeNested Shape = iota
	ShapeFlat
)

func (s Shape) String() string {
	if s == ShapeFlat {
		return "flat"
	}
	return "nested"
}

// Record is one stored document with its metadata lifted out of the
// payload shape the store returned. Meta aliases the underlying map,
// so patching it and calling ToPayload round-trips the point.
type Record struct {
	PointID string         `json:"id"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta"`
	Shape   Shape          `json:"-"`
	Vector  []float32      `json:"embedding,omitempty"`
}

// RecordFromPayload detects the payload shape and extracts the record.
func RecordFromPayload(id string, payload map[string]any) Record {
	rec := Record{PointID: id, Meta: map[string]any{}}
	if c, ok := payload["content"].(string); ok {
		rec.Content = c
	}

	if meta, ok := payload["meta"].(map[string]any); ok {
		rec.Shape = ShapeNested
		rec.Meta = meta
		return rec
	}

	rec.Shape = ShapeFlat
	for k, v := range payload {
		if k == "content" || k == "id" {
			continue
		}
		rec.Meta[k] = v
	}
	return rec
}

// RecordFromPoint extracts the record and carries the vector along.
func RecordFromPoint(p databases.Point) Record {
	rec := RecordFromPayload(p.ID, p.Payload)
	rec.Vector = p.Vector
	return rec
}

// ToPayload re-emits the payload in the record's shape.
func (r Record) ToPayload() map[string]any {
	if r.Shape == ShapeFlat {
		payload := make(map[string]any, len(r.Meta)+1)
		for k, v := range r.Meta {
			payload[k] = v
		}
		payload["content"] = r.Content
		return payload
	}
	return map[string]any{
		"content": r.Content,
		"meta":    r.Meta,
	}
}

// Field returns a string metadata field, or "" when absent or not a
// string.
func (r Record) Field(key string) string {
	s, _ := r.Meta[key].(string)
	return s
}

func (r Record) DocID() string    { return r.Field("doc_id") }
func (r Record) Category() string { return r.Field("category") }
func (r Record) Status() string   { return r.Field("status") }
func (r Record) Version() string  { return r.Field("version") }
func (r Record) CreatedAt() string { return r.Field("created_at") }

// ContentHash reads hash_content, falling back to the legacy
// content_hash alias.
func (r Record) ContentHash() string {
	if h := r.Field("hash_content"); h != "" {
		return h
	}
	return r.Field("content_hash")
}

func (r Record) MetadataHash() string { return r.Field("metadata_hash") }

// FilePath reads file_path, falling back to the legacy path alias.
func (r Record) FilePath() string {
	if p := r.Field("file_path"); p != "" {
		return p
	}
	return r.Field("path")
}

// ChunkIndex returns the chunk_index field when the record is a chunk.
// Stores hand back integers in whatever width the client decodes, so
// the usual numeric types are accepted.
func (r Record) ChunkIndex() (int, bool) {
	return intField(r.Meta, "chunk_index")
}

func (r Record) IsChunk() bool {
	b, _ := r.Meta["is_chunk"].(bool)
	return b
}

func intField(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

func recordsFromPoints(points []databases.Point) []Record {
	recs := make([]Record, 0, len(points))
	for _, p := range points {
		recs = append(recs, RecordFromPoint(p))
	}
	return recs
}
