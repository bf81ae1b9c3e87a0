package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
)

func TestLookupByDocID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	active := f.seedDocument(coll, "d1", schema.CategoryUserRule, "active body", nil)
	f.seedDocument(coll, "d1", schema.CategoryUserRule, "old body",
		map[string]any{"status": schema.StatusDeprecated})
	f.seedDocument(coll, "d2", schema.CategoryOther, "unrelated", nil)

	t.Run("status defaults to active", func(t *testing.T) {
		recs, err := f.p.LookupByDocID(ctx, coll, "d1", "", "")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, active, recs[0].PointID)
	})

	t.Run("explicit deprecated status", func(t *testing.T) {
		recs, err := f.p.LookupByDocID(ctx, coll, "d1", "", schema.StatusDeprecated)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, schema.StatusDeprecated, recs[0].Status())
	})

	t.Run("category narrows", func(t *testing.T) {
		recs, err := f.p.LookupByDocID(ctx, coll, "d1", schema.CategoryDesignDoc, "")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("empty doc_id rejected", func(t *testing.T) {
		_, err := f.p.LookupByDocID(ctx, coll, "", "", "")
		assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))
	})
}

func TestLookupByContentHashFallsBackToLegacyField(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	hash := fingerprint.ContentHash("legacy body")
	f.store.Seed(coll, databases.Point{
		ID:     "legacy-1",
		Vector: []float32{1, 0, 0, 0, 0, 0, 0, 1},
		Payload: map[string]any{
			"content":      "legacy body",
			"doc_id":       "legacy",
			"category":     schema.CategoryOther,
			"content_hash": hash,
			"status":       schema.StatusActive,
		},
	})

	recs, err := f.p.LookupByContentHash(ctx, coll, hash, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "legacy-1", recs[0].PointID)
	assert.Equal(t, pipeline.ShapeFlat, recs[0].Shape)
	assert.Equal(t, hash, recs[0].ContentHash())
}

func TestLookupByFilePathFallsBackToLegacyField(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	f.store.Seed(coll, databases.Point{
		ID:     "legacy-2",
		Vector: []float32{0, 1, 0, 0, 0, 0, 0, 1},
		Payload: map[string]any{
			"content": "legacy rule",
			"doc_id":  "rule-1",
			"path":    "/rules/old.md",
			"status":  schema.StatusActive,
		},
	})

	recs, err := f.p.LookupByFilePath(ctx, coll, "/rules/old.md", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "/rules/old.md", recs[0].FilePath())
}

func TestSearchWithFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	for i := 0; i < 15; i++ {
		f.seedDocument(coll, fmt.Sprintf("doc-%02d", i), schema.CategoryDesignDoc,
			fmt.Sprintf("design notes number %02d", i), nil)
	}
	f.seedDocument(coll, "other-doc", schema.CategoryOther, "off topic", nil)

	t.Run("topK defaults to ten", func(t *testing.T) {
		hits, err := f.p.SearchWithFilters(ctx, coll, "design notes", nil, 0)
		require.NoError(t, err)
		assert.Len(t, hits, pipeline.DefaultTopK)
		for i, hit := range hits {
			assert.Equal(t, i+1, hit.Rank)
			if i > 0 {
				assert.GreaterOrEqual(t, hits[i-1].Score, hit.Score)
			}
		}
	})

	t.Run("filter narrows candidates", func(t *testing.T) {
		hits, err := f.p.SearchWithFilters(ctx, coll, "anything",
			filter.Eq("meta.category", schema.CategoryOther), 50)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "off topic", hits[0].Content)
		assert.Equal(t, "documentation", hits[0].Source)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		_, err := f.p.SearchWithFilters(ctx, coll, "", nil, 5)
		assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))
	})
}

func TestAggregate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	f.seedDocument(coll, "a", schema.CategoryUserRule, "content a", nil)
	f.seedDocument(coll, "b", schema.CategoryUserRule, "content b", nil)
	f.seedDocument(coll, "c", schema.CategoryDesignDoc, "content c", nil)
	// A point with no source field lands in the unknown bucket.
	f.store.Seed(coll, databases.Point{
		ID:     "bare",
		Vector: []float32{1, 0, 0, 0, 0, 0, 0, 0},
		Payload: map[string]any{
			"content": "bare point",
			"meta": map[string]any{
				"doc_id":   "bare",
				"category": schema.CategoryOther,
				"status":   schema.StatusActive,
			},
		},
	})

	res, err := f.p.Aggregate(ctx, coll, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)

	categories := res.Fields["category"]
	assert.Equal(t, 3, categories.UniqueCount)
	assert.Equal(t, 2, categories.Values[schema.CategoryUserRule])
	assert.Equal(t, 1, categories.Values[schema.CategoryDesignDoc])

	sources := res.Fields["source"]
	assert.Equal(t, 1, sources.Values["unknown"])
	assert.Equal(t, 3, sources.Values[schema.SourceManual])

	t.Run("explicit group_by", func(t *testing.T) {
		res, err := f.p.Aggregate(ctx, coll, nil, []string{"status"})
		require.NoError(t, err)
		assert.Len(t, res.Fields, 1)
		assert.Equal(t, 4, res.Fields["status"].Values[schema.StatusActive])
	})
}

func TestRecordsPagesThroughLargeCollections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coll := f.docsCollection()

	for i := 0; i < 2*databases.DefaultScrollLimit+5; i++ {
		f.seedDocument(coll, fmt.Sprintf("bulk-%03d", i), schema.CategoryOther,
			fmt.Sprintf("bulk content %03d", i), nil)
	}

	recs, err := f.p.Records(ctx, coll, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2*databases.DefaultScrollLimit+5)
	assert.Equal(t, 3, f.store.Calls["scroll"])
}
