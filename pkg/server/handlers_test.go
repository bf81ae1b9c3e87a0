package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhana009/haystack/pkg/extract"
	"github.com/Dhana009/haystack/pkg/observability"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/testutils"
)

// handlerFixture is a full server over in-memory fakes, so handlers
// run end to end without a vector store or embedding backend.
type handlerFixture struct {
	s     *Server
	store *testutils.MemoryStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	cfg := testutils.TestConfig()
	store := testutils.NewMemoryStore()
	p := &pipeline.PipelineContext{
		Config:       cfg,
		Store:        store,
		DocEmbedder:  testutils.NewEmbedder("docs-test", 8),
		CodeEmbedder: testutils.NewEmbedder("code-test", 8),
		Chunker:      testutils.NewChunker(200, 0),
		Extractors:   extract.NewRegistry(),
		Observer:     observability.NoopMetrics{},
	}
	s, err := New(cfg, p)
	require.NoError(t, err)
	return &handlerFixture{s: s, store: store}
}

// payload decodes the JSON text body every tool handler answers with.
func payload(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func (f *handlerFixture) addDoc(t *testing.T, docID, content string, extra map[string]any) string {
	t.Helper()
	meta := map[string]any{"doc_id": docID, "category": "design_doc"}
	for k, v := range extra {
		meta[k] = v
	}
	out := payload(t, f.s.handleAddDocument(context.Background(), &addDocumentArgs{
		Content:  content,
		Metadata: meta,
	}))
	require.Equal(t, "success", out["status"])
	id, _ := out["document_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestNewValidatesInputs(t *testing.T) {
	cfg := testutils.TestConfig()
	p := &pipeline.PipelineContext{Config: cfg, Store: testutils.NewMemoryStore()}

	_, err := New(nil, p)
	require.Error(t, err)

	_, err = New(cfg, nil)
	require.Error(t, err)

	s, err := New(cfg, p)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestHandleAddDocument(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	t.Run("stores a new document", func(t *testing.T) {
		out := payload(t, f.s.handleAddDocument(ctx, &addDocumentArgs{
			Content:  "Deployment runbook for the staging cluster.",
			Metadata: map[string]any{"doc_id": "runbook", "category": "design_doc"},
		}))
		assert.Equal(t, "success", out["status"])
		assert.Equal(t, "store", out["action"])
		assert.Equal(t, "runbook", out["doc_id"])
		assert.NotEmpty(t, out["document_id"])
	})

	t.Run("skips an exact duplicate", func(t *testing.T) {
		first := payload(t, f.s.handleAddDocument(ctx, &addDocumentArgs{
			Content:  "Retry policy for outbound webhooks.",
			Metadata: map[string]any{"doc_id": "retries", "category": "design_doc"},
		}))
		require.Equal(t, "success", first["status"])

		second := payload(t, f.s.handleAddDocument(ctx, &addDocumentArgs{
			Content:  "Retry policy for outbound webhooks.",
			Metadata: map[string]any{"doc_id": "retries", "category": "design_doc"},
		}))
		assert.Equal(t, "skipped", second["status"])
		assert.Equal(t, "skip", second["action"])
		assert.Equal(t, first["document_id"], second["existing_document_id"])
	})

	t.Run("rejects empty content", func(t *testing.T) {
		out := payload(t, f.s.handleAddDocument(ctx, &addDocumentArgs{Content: "   "}))
		assert.Equal(t, "content is required", out["error"])
	})

	t.Run("reports invalid metadata in the error envelope", func(t *testing.T) {
		out := payload(t, f.s.handleAddDocument(ctx, &addDocumentArgs{
			Content:  "Some content.",
			Metadata: map[string]any{"doc_id": "bad", "category": "not_a_category"},
		}))
		assert.Contains(t, out, "error")
	})
}

func TestHandleSearchDocuments(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	f.addDoc(t, "auth-guide", "How authentication tokens are issued.", nil)
	f.addDoc(t, "rate-limits", "Rate limiting rules for the public API.", nil)

	codeFile := filepath.Join(t.TempDir(), "limiter.go")
	require.NoError(t, os.WriteFile(codeFile, []byte("package limiter\n\nfunc Allow() bool { return true }\n"), 0o644))
	_, err := f.s.pipeline.AddCode(ctx, codeFile, "", nil)
	require.NoError(t, err)

	t.Run("merges both collections by default", func(t *testing.T) {
		out := payload(t, f.s.handleSearchDocuments(ctx, &searchArgs{Query: "limits"}))
		require.Equal(t, "success", out["status"])
		assert.Equal(t, "all", out["content_type"])
		assert.Equal(t, float64(3), out["results_count"])

		results := out["results"].([]any)
		require.Len(t, results, 3)
		for i, raw := range results {
			hit := raw.(map[string]any)
			assert.Equal(t, float64(i+1), hit["rank"])
		}
	})

	t.Run("narrows to one collection", func(t *testing.T) {
		docs := payload(t, f.s.handleSearchDocuments(ctx, &searchArgs{Query: "limits", ContentType: "docs"}))
		assert.Equal(t, float64(2), docs["results_count"])

		code := payload(t, f.s.handleSearchDocuments(ctx, &searchArgs{Query: "limits", ContentType: "code"}))
		assert.Equal(t, float64(1), code["results_count"])
	})

	t.Run("caps results at top_k", func(t *testing.T) {
		out := payload(t, f.s.handleSearchDocuments(ctx, &searchArgs{Query: "limits", TopK: 1}))
		assert.Equal(t, float64(1), out["results_count"])
	})

	t.Run("rejects an empty query", func(t *testing.T) {
		out := payload(t, f.s.handleSearchDocuments(ctx, &searchArgs{Query: ""}))
		assert.Equal(t, "query is required", out["error"])
	})
}

func TestHandleDeleteDocument(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	id := f.addDoc(t, "ephemeral", "Short-lived note scheduled for deletion.", nil)

	out := payload(t, f.s.handleDeleteDocument(ctx, &deleteDocumentArgs{DocumentID: id}))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "documentation", out["deleted_from"])

	t.Run("second delete reports not found", func(t *testing.T) {
		out := payload(t, f.s.handleDeleteDocument(ctx, &deleteDocumentArgs{DocumentID: id}))
		assert.Equal(t, "error", out["status"])
		assert.Contains(t, out["message"], "not found in any collection")
	})

	t.Run("rejects a blank id", func(t *testing.T) {
		out := payload(t, f.s.handleDeleteDocument(ctx, &deleteDocumentArgs{DocumentID: " "}))
		assert.Equal(t, "document_id is required", out["error"])
	})
}

func TestHandleGetVersionHistory(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	f.addDoc(t, "changelog", "Initial release notes.", nil)
	out := payload(t, f.s.handleAddDocument(ctx, &addDocumentArgs{
		Content:  "Initial release notes, now with the hotfix appended.",
		Metadata: map[string]any{"doc_id": "changelog", "category": "design_doc"},
	}))
	require.Equal(t, "success", out["status"])
	require.Equal(t, "update", out["action"])

	t.Run("includes deprecated versions by default", func(t *testing.T) {
		out := payload(t, f.s.handleGetVersionHistory(ctx, &getVersionHistoryArgs{DocID: "changelog"}))
		require.Equal(t, "success", out["status"])
		assert.Equal(t, "changelog", out["doc_id"])
		assert.Equal(t, float64(2), out["version_count"])

		versions := out["versions"].([]any)
		require.Len(t, versions, 2)
		entry := versions[0].(map[string]any)
		assert.NotEmpty(t, entry["id"])
		assert.Contains(t, entry, "status")
		assert.Contains(t, entry, "created_at")
	})

	t.Run("filters deprecated versions on request", func(t *testing.T) {
		activeOnly := false
		out := payload(t, f.s.handleGetVersionHistory(ctx, &getVersionHistoryArgs{
			DocID:             "changelog",
			IncludeDeprecated: &activeOnly,
		}))
		assert.Equal(t, float64(1), out["version_count"])
	})

	t.Run("rejects a blank doc_id", func(t *testing.T) {
		out := payload(t, f.s.handleGetVersionHistory(ctx, &getVersionHistoryArgs{DocID: ""}))
		assert.Equal(t, "doc_id is required", out["error"])
	})
}

func TestHandleGetDocumentByPath(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	t.Run("reports not_found for an unknown path", func(t *testing.T) {
		out := payload(t, f.s.handleGetDocumentByPath(ctx, &getDocumentByPathArgs{FilePath: "/missing/doc.md"}))
		assert.Equal(t, "not_found", out["status"])
	})

	t.Run("returns the stored document", func(t *testing.T) {
		f.addDoc(t, "alpha-notes", "Notes kept alongside the alpha build.", map[string]any{
			"file_path": "/notes/alpha.md",
		})

		out := payload(t, f.s.handleGetDocumentByPath(ctx, &getDocumentByPathArgs{FilePath: "/notes/alpha.md"}))
		require.Equal(t, "success", out["status"])
		doc := out["document"].(map[string]any)
		assert.Equal(t, "Notes kept alongside the alpha build.", doc["content"])
	})

	t.Run("rejects a blank path", func(t *testing.T) {
		out := payload(t, f.s.handleGetDocumentByPath(ctx, &getDocumentByPathArgs{FilePath: ""}))
		assert.Equal(t, "file_path is required", out["error"])
	})
}

func TestHandleUpdateMetadata(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	id := f.addDoc(t, "ownership", "Which team owns the billing service.", nil)

	out := payload(t, f.s.handleUpdateMetadata(ctx, &updateMetadataArgs{
		DocumentID:      id,
		MetadataUpdates: map[string]any{"source": "manual"},
	}))
	require.Equal(t, "success", out["status"])
	assert.Equal(t, []any{"source"}, out["updated_fields"])

	t.Run("rejects an empty patch", func(t *testing.T) {
		out := payload(t, f.s.handleUpdateMetadata(ctx, &updateMetadataArgs{DocumentID: id}))
		assert.Equal(t, "document_id and metadata_updates are required", out["error"])
	})
}

func TestHandleClearAll(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	f.addDoc(t, "first", "First document slated for removal.", nil)
	f.addDoc(t, "second", "Second document slated for removal.", nil)

	out := payload(t, f.s.handleClearAll(ctx, &clearAllArgs{}))
	require.Equal(t, "success", out["status"])
	deleted := out["deleted"].(map[string]any)
	assert.Equal(t, float64(2), deleted["total"])
	assert.Equal(t, 0, f.store.Len(f.s.cfg.Collections.Documents))
}
