package verify_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/schema"
	"github.com/Dhana009/haystack/pkg/verify"
)

func TestAuditAgainstSourceDirectory(t *testing.T) {
	p, store := newPipeline(t)
	ctx := context.Background()
	coll := p.Config.Collections.Documents

	dir := t.TempDir()
	matched := filepath.Join(dir, "matched.md")
	drifted := filepath.Join(dir, "drifted.md")
	unstored := filepath.Join(dir, "unstored.md")

	matchedBody := longBody + "matched"
	require.NoError(t, os.WriteFile(matched, []byte(matchedBody), 0o644))
	require.NoError(t, os.WriteFile(drifted, []byte(longBody+"on disk"), 0o644))
	require.NoError(t, os.WriteFile(unstored, []byte(longBody+"never ingested"), 0o644))

	seed(store, coll, record(t, "matched", schema.CategoryDesignDoc, matchedBody,
		map[string]any{"file_path": matched}))
	seed(store, coll, record(t, "drifted", schema.CategoryDesignDoc, longBody+"in store",
		map[string]any{"file_path": drifted}))

	rep, err := verify.Audit(ctx, p, dir, true, []string{"md"})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.TotalFiles)
	assert.Equal(t, 2, rep.TotalDocuments)
	assert.Equal(t, 2, rep.StoredFiles)

	require.Len(t, rep.MissingFiles, 1)
	assert.Equal(t, unstored, rep.MissingFiles[0].FilePath)

	require.Len(t, rep.ContentMismatches, 1)
	mismatch := rep.ContentMismatches[0]
	assert.Equal(t, drifted, mismatch.FilePath)
	assert.Equal(t, fingerprint.ContentHash(longBody+"in store"), mismatch.StoredHash)
	assert.Equal(t, fingerprint.ContentHash(longBody+"on disk"), mismatch.SourceHash)

	// One of three files matches cleanly.
	assert.InDelta(t, 0.333, rep.IntegrityScore, 0.001)

	assert.Len(t, rep.IssuesByType["missing_file"], 1)
	assert.Len(t, rep.IssuesByType["content_mismatch"], 1)
}

func TestAuditWithoutSourceUsesPassRatio(t *testing.T) {
	p, store := newPipeline(t)
	ctx := context.Background()
	coll := p.Config.Collections.Documents

	seed(store, coll, record(t, "ok", schema.CategoryDesignDoc, longBody, nil))
	seed(store, coll, record(t, "bad", schema.CategoryDesignDoc, "stub", nil))

	rep, err := verify.Audit(ctx, p, "", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalDocuments)
	assert.Equal(t, 1, rep.Passed)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.TotalFiles)
	assert.InDelta(t, 0.5, rep.IntegrityScore, 0.001)
	require.Len(t, rep.FailedDocuments, 1)
	assert.Equal(t, "bad", rep.FailedDocuments[0].DocID)
}

func TestAuditMissingSourceDirectory(t *testing.T) {
	p, _ := newPipeline(t)

	rep, err := verify.Audit(context.Background(), p, "/does/not/exist", true, nil)
	require.NoError(t, err)
	require.Len(t, rep.Issues, 1)
	assert.Equal(t, "source_directory_not_found", rep.Issues[0].Type)
}
