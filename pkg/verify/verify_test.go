package verify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/extract"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/metadata"
	"github.com/Dhana009/haystack/pkg/observability"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
	"github.com/Dhana009/haystack/pkg/testutils"
	"github.com/Dhana009/haystack/pkg/verify"
)

// longBody clears the minimum content length.
var longBody = strings.Repeat("A thoroughly documented paragraph. ", 5)

func newPipeline(t *testing.T) (*pipeline.PipelineContext, *testutils.MemoryStore) {
	t.Helper()
	store := testutils.NewMemoryStore()
	return &pipeline.PipelineContext{
		Config:       testutils.TestConfig(),
		Store:        store,
		DocEmbedder:  testutils.NewEmbedder("docs-test", 8),
		CodeEmbedder: testutils.NewEmbedder("code-test", 8),
		Chunker:      testutils.NewChunker(64, 0),
		Extractors:   extract.NewRegistry(),
		Observer:     observability.NoopMetrics{},
	}, store
}

// record builds a stored record with valid metadata for content. Pass
// overrides to corrupt individual fields.
func record(t *testing.T, docID, category, content string, overrides map[string]any) pipeline.Record {
	t.Helper()
	meta, err := metadata.Build(metadata.BuildInput{
		DocID:       docID,
		Category:    category,
		HashContent: fingerprint.ContentHash(content),
		Extra:       overrides,
	})
	require.NoError(t, err)
	return pipeline.Record{
		PointID: testutils.PointID(docID),
		Content: content,
		Meta:    meta,
		Shape:   pipeline.ShapeNested,
	}
}

func seed(store *testutils.MemoryStore, collection string, rec pipeline.Record) {
	store.Seed(collection, databases.Point{
		ID:      rec.PointID,
		Vector:  []float32{1, 0, 0, 0, 0, 0, 0, 1},
		Payload: rec.ToPayload(),
	})
}

func TestDetectPlaceholders(t *testing.T) {
	t.Run("clean content", func(t *testing.T) {
		info := verify.DetectPlaceholders("Nothing suspicious in this paragraph.")
		assert.False(t, info.Found)
		assert.Equal(t, 0, info.Count)
	})

	t.Run("markers found with positions", func(t *testing.T) {
		info := verify.DetectPlaceholders("Intro [TODO: write the rest] and a placeholder marker.")
		assert.True(t, info.Found)
		assert.Equal(t, 2, info.Count)
		assert.Len(t, info.Positions, 2)
		assert.Contains(t, info.Types, "TODO:")
		assert.Contains(t, info.Types, "placeholder")
	})

	t.Run("case insensitive", func(t *testing.T) {
		info := verify.DetectPlaceholders("content WILL BE stored later")
		assert.True(t, info.Found)
	})
}

func TestVerifyHash(t *testing.T) {
	content := "stable content"
	hash := fingerprint.ContentHash(content)

	assert.True(t, verify.VerifyHash(content, hash).Valid)
	assert.False(t, verify.VerifyHash("tampered", hash).Valid)

	missing := verify.VerifyHash(content, "")
	assert.False(t, missing.Valid)
	assert.NotEmpty(t, missing.Error)
}

func TestDocumentQualityChecks(t *testing.T) {
	t.Run("healthy document passes", func(t *testing.T) {
		rep := verify.Document(record(t, "good", schema.CategoryDesignDoc, longBody, nil))
		assert.Equal(t, "pass", rep.Status)
		assert.Equal(t, 1.0, rep.QualityScore)
		assert.Empty(t, rep.Issues)
		assert.True(t, rep.Checks.HashValid)
	})

	t.Run("issues force fail even above the threshold", func(t *testing.T) {
		rep := verify.Document(record(t, "short", schema.CategoryDesignDoc, "tiny placeholder", nil))
		assert.Equal(t, "fail", rep.Status)
		assert.GreaterOrEqual(t, rep.QualityScore, verify.PassThreshold)
		assert.False(t, rep.Checks.MinLength)
		assert.False(t, rep.Checks.NoPlaceholders)
	})

	t.Run("hash mismatch drops a critical check", func(t *testing.T) {
		rec := record(t, "corrupt", schema.CategoryDesignDoc, longBody, nil)
		rec.Meta["hash_content"] = fingerprint.ContentHash("something else")
		rec.Meta["content_hash"] = rec.Meta["hash_content"]
		rep := verify.Document(rec)
		assert.Equal(t, "fail", rep.Status)
		assert.False(t, rep.Checks.HashValid)
		assert.Less(t, rep.QualityScore, verify.PassThreshold)
	})

	t.Run("rule categories need a file_path", func(t *testing.T) {
		rep := verify.Document(record(t, "rule", schema.CategoryUserRule, longBody, nil))
		assert.False(t, rep.Checks.HasFilePath)
		assert.Equal(t, "fail", rep.Status)

		withPath := record(t, "rule2", schema.CategoryUserRule, longBody,
			map[string]any{"file_path": "/rules/r.md"})
		assert.True(t, verify.Document(withPath).Checks.HasFilePath)
	})

	t.Run("missing required metadata", func(t *testing.T) {
		rec := record(t, "bare", schema.CategoryOther, longBody, nil)
		delete(rec.Meta, "version")
		rep := verify.Document(rec)
		assert.False(t, rep.Checks.HasRequiredMetadata)
		assert.Contains(t, strings.Join(rep.Issues, "\n"), "version")
	})
}

func TestCategory(t *testing.T) {
	p, store := newPipeline(t)
	ctx := context.Background()
	coll := p.Config.Collections.Documents

	seed(store, coll, record(t, "ok-1", schema.CategoryDesignDoc, longBody+"one", nil))
	seed(store, coll, record(t, "ok-2", schema.CategoryDesignDoc, longBody+"two", nil))
	seed(store, coll, record(t, "bad-1", schema.CategoryDesignDoc, "too short", nil))
	seed(store, coll, record(t, "other", schema.CategoryOther, longBody, nil))

	rep, err := verify.Category(ctx, p, schema.CategoryDesignDoc, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Passed)
	assert.Equal(t, 1, rep.Failed)
	assert.InDelta(t, 66.67, rep.PassRate, 0.01)
	require.Len(t, rep.Issues, 1)
	assert.Equal(t, "bad-1", rep.Issues[0].DocID)
	assert.NotEmpty(t, rep.Summary.TopIssues)

	t.Run("limit caps the scan", func(t *testing.T) {
		rep, err := verify.Category(ctx, p, schema.CategoryDesignDoc, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Total)
	})

	t.Run("category required", func(t *testing.T) {
		_, err := verify.Category(ctx, p, "", 0)
		assert.Error(t, err)
	})
}
