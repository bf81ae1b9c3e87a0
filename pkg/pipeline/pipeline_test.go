package pipeline_test

import (
	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/extract"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/metadata"
	"github.com/Dhana009/haystack/pkg/observability"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/testutils"
)

// fixture bundles a pipeline over in-memory fakes with handles on the
// fakes themselves, so tests can count calls and inspect stored points.
type fixture struct {
	p     *pipeline.PipelineContext
	store *testutils.MemoryStore
	docs  *testutils.Embedder
	code  *testutils.Embedder
}

// chunk budget for tests: ten words per chunk, no overlap, so any
// multi-section document splits deterministically.
const testChunkSize = 10

func newFixture() *fixture {
	cfg := testutils.TestConfig()
	cfg.Chunking.Threshold = testChunkSize

	store := testutils.NewMemoryStore()
	docs := testutils.NewEmbedder("docs-test", 8)
	code := testutils.NewEmbedder("code-test", 8)

	return &fixture{
		p: &pipeline.PipelineContext{
			Config:       cfg,
			Store:        store,
			DocEmbedder:  docs,
			CodeEmbedder: code,
			Chunker:      testutils.NewChunker(testChunkSize, 0),
			Extractors:   extract.NewRegistry(),
			Observer:     observability.NoopMetrics{},
		},
		store: store,
		docs:  docs,
		code:  code,
	}
}

func (f *fixture) docsCollection() string { return f.p.Config.Collections.Documents }
func (f *fixture) codeCollection() string { return f.p.Config.Collections.Code }

// seedDocument builds real metadata for content and seeds it as one
// active nested-shape point, returning its point ID.
func (f *fixture) seedDocument(collection, docID, category, content string, extra map[string]any) string {
	meta, err := metadata.Build(metadata.BuildInput{
		DocID:       docID,
		Category:    category,
		HashContent: fingerprint.ContentHash(content),
		Extra:       extra,
	})
	if err != nil {
		panic(err)
	}
	metaHash, _ := meta["metadata_hash"].(string)
	id := testutils.PointID(fingerprint.CompositeKey(fingerprint.ContentHash(content), metaHash))
	rec := pipeline.Record{PointID: id, Content: content, Meta: meta, Shape: pipeline.ShapeNested}
	f.store.Seed(collection, databases.Point{
		ID:      id,
		Vector:  []float32{1, 0, 0, 0, 0, 0, 0, 1},
		Payload: rec.ToPayload(),
	})
	return id
}
