// Package pipeline implements the document indexing pipeline: lookup,
// duplicate classification, ingestion, chunked incremental updates,
// point updates, and bulk operations against the vector store.
//
// Operations return result envelopes rather than bare values so the
// tool surface can serialize them directly. Failures carry a Kind from
// the closed taxonomy in errors.go.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhana009/haystack/pkg/chunking"
	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/embedders"
	"github.com/Dhana009/haystack/pkg/extract"
	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/observability"
)

// nowFunc is a seam for tests that assert timing-adjacent behavior.
var nowFunc = time.Now

// Content types selecting the embedder and collection for a write.
const (
	ContentTypeDocs = "documentation"
	ContentTypeCode = "code"
)

// PipelineContext owns the store adapter, both embedders, the chunker,
// and configuration. Every operation threads through it; there is no
// package-level state.
type PipelineContext struct {
	Config       *config.Config
	Store        databases.StoreAdapter
	DocEmbedder  embedders.Provider
	CodeEmbedder embedders.Provider
	Chunker      *chunking.Chunker
	Extractors   *extract.Registry
	Observer     observability.Metrics
}

// NewPipelineContext builds the pipeline in a fixed order: config
// validation, store connection, collection and index assertion for
// both collections, then embedder construction and warmup. The first
// failure aborts and releases whatever was already open.
func NewPipelineContext(ctx context.Context, cfg *config.Config) (*PipelineContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.Get()

	store, err := databases.NewStoreFromConfig(&cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store provider: %w", err)
	}

	collections := []struct {
		name string
		dim  int
	}{
		{cfg.Collections.Documents, cfg.Embedders.Docs.Dimension},
		{cfg.Collections.Code, cfg.Embedders.Code.Dimension},
	}
	for _, c := range collections {
		if err := store.EnsureCollection(ctx, c.name, uint64(c.dim)); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to ensure collection %s: %w", c.name, err)
		}
		databases.AssertIndexes(ctx, store, c.name)
	}

	docEmbedder, err := embedders.NewFromConfig(&cfg.Embedders.Docs)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create docs embedder: %w", err)
	}
	if err := docEmbedder.Warmup(ctx); err != nil {
		docEmbedder.Close()
		store.Close()
		return nil, fmt.Errorf("docs embedder warmup failed: %w", err)
	}

	codeEmbedder, err := embedders.NewFromConfig(&cfg.Embedders.Code)
	if err != nil {
		docEmbedder.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create code embedder: %w", err)
	}
	if err := codeEmbedder.Warmup(ctx); err != nil {
		codeEmbedder.Close()
		docEmbedder.Close()
		store.Close()
		return nil, fmt.Errorf("code embedder warmup failed: %w", err)
	}

	chunker, err := chunking.New(chunking.Config{
		Size:       cfg.Chunking.Size,
		Overlap:    cfg.Chunking.Overlap,
		Separators: cfg.Chunking.Separators,
	})
	if err != nil {
		codeEmbedder.Close()
		docEmbedder.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	log.Info("pipeline initialized",
		"documents_collection", cfg.Collections.Documents,
		"code_collection", cfg.Collections.Code,
		"docs_model", docEmbedder.GetModelName(),
		"code_model", codeEmbedder.GetModelName())

	return &PipelineContext{
		Config:       cfg,
		Store:        store,
		DocEmbedder:  docEmbedder,
		CodeEmbedder: codeEmbedder,
		Chunker:      chunker,
		Extractors:   extract.NewRegistry(),
		Observer:     observability.GetGlobalMetrics(),
	}, nil
}

// Close releases the embedders and the store connection.
func (p *PipelineContext) Close() error {
	var firstErr error
	if p.DocEmbedder != nil {
		if err := p.DocEmbedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.CodeEmbedder != nil {
		if err := p.CodeEmbedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.Store != nil {
		if err := p.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CollectionFor maps a content type to its collection.
func (p *PipelineContext) CollectionFor(contentType string) string {
	if contentType == ContentTypeCode {
		return p.Config.Collections.Code
	}
	return p.Config.Collections.Documents
}

// EmbedderFor maps a content type to its embedder.
func (p *PipelineContext) EmbedderFor(contentType string) embedders.Provider {
	if contentType == ContentTypeCode {
		return p.CodeEmbedder
	}
	return p.DocEmbedder
}

// embedderForCollection picks the embedder that produced a
// collection's vectors.
func (p *PipelineContext) embedderForCollection(collection string) embedders.Provider {
	if collection == p.Config.Collections.Code {
		return p.CodeEmbedder
	}
	return p.DocEmbedder
}

// observer never returns nil so call sites skip the check.
func (p *PipelineContext) observer() observability.Metrics {
	if p.Observer == nil {
		return observability.NoopMetrics{}
	}
	return p.Observer
}

// shouldChunk reports whether content exceeds the chunking threshold.
func (p *PipelineContext) shouldChunk(content string) bool {
	if p.Chunker == nil {
		return false
	}
	threshold := p.Config.Chunking.Threshold
	if threshold <= 0 {
		return p.Chunker.NeedsChunking(content)
	}
	return p.Chunker.CountTokens(content) > threshold
}

// embed runs one embedding call and records its outcome.
func (p *PipelineContext) embed(ctx context.Context, provider embedders.Provider, op, text string) ([]float32, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanEmbed)
	defer span.End()

	start := nowFunc()
	vector, err := provider.EmbedWithContext(ctx, text)
	p.observer().RecordEmbedding(ctx, provider.GetModelName(), nowFunc().Sub(start), err)
	if err != nil {
		return nil, embedderFailed(op, err)
	}
	return vector, nil
}

// upsertPoints writes points through the store, recording the call.
func (p *PipelineContext) upsertPoints(ctx context.Context, op, collection string, points []databases.Point) error {
	if len(points) == 0 {
		return nil
	}
	start := nowFunc()
	err := p.Store.Upsert(ctx, collection, points)
	p.observer().RecordStoreCall(ctx, "upsert", nowFunc().Sub(start), err)
	return wrapStoreErr(op, err)
}

// deletePoints removes points by ID, recording the call.
func (p *PipelineContext) deletePoints(ctx context.Context, op, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	start := nowFunc()
	err := p.Store.Delete(ctx, collection, ids)
	p.observer().RecordStoreCall(ctx, "delete", nowFunc().Sub(start), err)
	return wrapStoreErr(op, err)
}

// retrievePoints fetches points by ID, recording the call.
func (p *PipelineContext) retrievePoints(ctx context.Context, op, collection string, ids []string, withPayload, withVectors bool) ([]databases.Point, error) {
	start := nowFunc()
	points, err := p.Store.Retrieve(ctx, collection, ids, withPayload, withVectors)
	p.observer().RecordStoreCall(ctx, "retrieve", nowFunc().Sub(start), err)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return points, nil
}
