package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
)

func TestUpdateContent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	id := f.seedDocument(coll, "d1", schema.CategoryDesignDoc, "first draft", nil)
	before, _ := f.store.Point(coll, id)
	vectorBefore := append([]float32(nil), before.Vector...)

	res, err := f.p.UpdateContent(ctx, coll, id, "second draft", map[string]any{"source": schema.SourceGenerated})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, id, res.PointID)
	assert.Contains(t, res.Updated, "content")
	assert.Contains(t, res.Updated, "hash_content")
	assert.Contains(t, res.Updated, "source")

	pt, ok := f.store.Point(coll, id)
	require.True(t, ok, "content updates keep the point ID")
	rec := pipeline.RecordFromPoint(pt)
	assert.Equal(t, "second draft", rec.Content)
	assert.Equal(t, fingerprint.ContentHash("second draft"), rec.ContentHash())
	assert.Equal(t, schema.SourceGenerated, rec.Field("source"))
	assert.NotEqual(t, vectorBefore, pt.Vector, "new content gets a new embedding")

	t.Run("unknown point is NotFound", func(t *testing.T) {
		_, err := f.p.UpdateContent(ctx, coll, "missing", "text", nil)
		assert.Equal(t, pipeline.KindNotFound, pipeline.KindOf(err))
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := f.p.UpdateContent(ctx, coll, id, "", nil)
		assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))
	})
}

func TestUpdateMetadata(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	id := f.seedDocument(coll, "d1", schema.CategoryUserRule, "rule body", nil)
	before, _ := f.store.Point(coll, id)

	res, err := f.p.UpdateMetadata(ctx, coll, id, map[string]any{
		"tags":   []string{"reviewed"},
		"source": schema.SourceImported,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "tags"}, res.Updated)

	pt, _ := f.store.Point(coll, id)
	rec := pipeline.RecordFromPoint(pt)
	assert.Equal(t, schema.SourceImported, rec.Field("source"))
	assert.Equal(t, "rule body", rec.Content, "content untouched")
	assert.Equal(t, before.Vector, pt.Vector, "vector untouched")
	assert.NotEqual(t,
		pipeline.RecordFromPoint(before).MetadataHash(), rec.MetadataHash())

	t.Run("empty patch rejected", func(t *testing.T) {
		_, err := f.p.UpdateMetadata(ctx, coll, id, nil)
		assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))
	})

	t.Run("vectorless point is VectorMissing", func(t *testing.T) {
		f.store.Seed(coll, databases.Point{
			ID: "no-vector",
			Payload: map[string]any{
				"content": "ghost",
				"meta":    map[string]any{"doc_id": "ghost", "status": schema.StatusActive},
			},
		})
		_, err := f.p.UpdateMetadata(ctx, coll, "no-vector", map[string]any{"source": schema.SourceManual})
		assert.Equal(t, pipeline.KindVectorMissing, pipeline.KindOf(err))
	})
}

func TestUpdateMetadataPreservesFlatShape(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	f.store.Seed(coll, databases.Point{
		ID:     "flat-1",
		Vector: []float32{1, 0, 0, 0, 0, 0, 0, 1},
		Payload: map[string]any{
			"content": "flat layout",
			"doc_id":  "legacy",
			"status":  schema.StatusActive,
		},
	})

	_, err := f.p.UpdateMetadata(ctx, coll, "flat-1", map[string]any{"category": schema.CategoryOther})
	require.NoError(t, err)

	pt, _ := f.store.Point(coll, "flat-1")
	_, nested := pt.Payload["meta"]
	assert.False(t, nested, "flat points stay flat after a patch")
	assert.Equal(t, schema.CategoryOther, pt.Payload["category"])
	assert.Equal(t, "flat layout", pt.Payload["content"])
}

func TestDeprecate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	id := f.seedDocument(coll, "d1", schema.CategoryOther, "soon obsolete", nil)

	res, err := f.p.Deprecate(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)

	pt, ok := f.store.Point(coll, id)
	require.True(t, ok, "deprecation keeps the record for history")
	rec := pipeline.RecordFromPoint(pt)
	assert.Equal(t, schema.StatusDeprecated, rec.Status())
	assert.NotEmpty(t, pt.Vector)
}

func TestVersionHistorySorting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	f.seedDocument(coll, "vh", schema.CategoryOther, "v1 body", map[string]any{
		"version": "2026-01-01T00:00:00.000000Z",
		"status":  schema.StatusDeprecated,
	})
	f.seedDocument(coll, "vh", schema.CategoryOther, "v2 body", map[string]any{
		"version": "2026-02-01T00:00:00.000000Z",
	})
	f.seedDocument(coll, "vh", schema.CategoryOther, "v3 body", map[string]any{
		"version": "2026-03-01T00:00:00.000000Z",
		"status":  schema.StatusDeprecated,
	})

	t.Run("full history in version order", func(t *testing.T) {
		recs, err := f.p.VersionHistory(ctx, coll, "vh", "", true)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "2026-01-01T00:00:00.000000Z", recs[0].Version())
		assert.Equal(t, "2026-02-01T00:00:00.000000Z", recs[1].Version())
		assert.Equal(t, "2026-03-01T00:00:00.000000Z", recs[2].Version())
	})

	t.Run("active only", func(t *testing.T) {
		recs, err := f.p.VersionHistory(ctx, coll, "vh", "", false)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "v2 body", recs[0].Content)
	})

	t.Run("missing doc_id rejected", func(t *testing.T) {
		_, err := f.p.VersionHistory(ctx, coll, "", "", true)
		assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))
	})
}
