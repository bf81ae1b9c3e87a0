package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dhana009/haystack/pkg/pipeline"
)

func TestRecordFromPayload(t *testing.T) {
	t.Run("nested shape", func(t *testing.T) {
		rec := pipeline.RecordFromPayload("p1", map[string]any{
			"content": "hello",
			"meta": map[string]any{
				"doc_id": "d1",
				"status": "active",
			},
		})
		assert.Equal(t, pipeline.ShapeNested, rec.Shape)
		assert.Equal(t, "hello", rec.Content)
		assert.Equal(t, "d1", rec.DocID())
		assert.Equal(t, "active", rec.Status())
	})

	t.Run("flat shape", func(t *testing.T) {
		rec := pipeline.RecordFromPayload("p1", map[string]any{
			"content": "hello",
			"doc_id":  "d1",
			"status":  "deprecated",
		})
		assert.Equal(t, pipeline.ShapeFlat, rec.Shape)
		assert.Equal(t, "d1", rec.DocID())
		assert.Equal(t, "deprecated", rec.Status())
	})

	t.Run("round trip preserves shape", func(t *testing.T) {
		flat := map[string]any{"content": "hello", "doc_id": "d1"}
		rec := pipeline.RecordFromPayload("p1", flat)
		out := rec.ToPayload()
		assert.Equal(t, "d1", out["doc_id"], "flat payload stays flat")
		_, hasMeta := out["meta"]
		assert.False(t, hasMeta)

		nested := map[string]any{"content": "hello", "meta": map[string]any{"doc_id": "d1"}}
		rec = pipeline.RecordFromPayload("p1", nested)
		out = rec.ToPayload()
		_, hasMeta = out["meta"]
		assert.True(t, hasMeta, "nested payload stays nested")
	})
}

func TestRecordFieldFallbacks(t *testing.T) {
	t.Run("hash_content preferred over content_hash", func(t *testing.T) {
		rec := pipeline.Record{Meta: map[string]any{"hash_content": "a", "content_hash": "b"}}
		assert.Equal(t, "a", rec.ContentHash())
	})

	t.Run("content_hash alias honored", func(t *testing.T) {
		rec := pipeline.Record{Meta: map[string]any{"content_hash": "b"}}
		assert.Equal(t, "b", rec.ContentHash())
	})

	t.Run("path alias honored", func(t *testing.T) {
		rec := pipeline.Record{Meta: map[string]any{"path": "/tmp/x.md"}}
		assert.Equal(t, "/tmp/x.md", rec.FilePath())
	})

	t.Run("chunk index numeric widths", func(t *testing.T) {
		for _, v := range []any{3, int64(3), float64(3)} {
			rec := pipeline.Record{Meta: map[string]any{"chunk_index": v}}
			idx, ok := rec.ChunkIndex()
			assert.True(t, ok)
			assert.Equal(t, 3, idx)
		}
		rec := pipeline.Record{Meta: map[string]any{}}
		_, ok := rec.ChunkIndex()
		assert.False(t, ok)
	})
}
