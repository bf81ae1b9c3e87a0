package pipeline

import (
	"context"

	"github.com/Dhana009/haystack/pkg/embedders"
	"github.com/Dhana009/haystack/pkg/filter"
)

// CollectionStats describes one collection: live point count, vector
// geometry, and the embedder serving it.
type CollectionStats struct {
	Collection     string   `json:"collection"`
	Documents      uint64   `json:"documents"`
	VectorSize     uint64   `json:"vector_size,omitempty"`
	Status         string   `json:"status,omitempty"`
	IndexedFields  []string `json:"indexed_fields,omitempty"`
	EmbeddingModel string   `json:"embedding_model,omitempty"`
}

// StatsResult is the two-collection summary behind get_stats.
type StatsResult struct {
	Status                  string            `json:"status"`
	TotalDocuments          uint64            `json:"total_documents"`
	DocumentationDocuments  uint64            `json:"documentation_documents"`
	CodeDocuments           uint64            `json:"code_documents"`
	DocumentationCollection string            `json:"documentation_collection"`
	CodeCollection          string            `json:"code_collection"`
	Collections             []CollectionStats `json:"collections,omitempty"`
}

// Stats counts both collections and reports their configuration.
func (p *PipelineContext) Stats(ctx context.Context) (*StatsResult, error) {
	const op = "get_stats"

	docs, err := p.collectionStats(ctx, op, p.CollectionFor(ContentTypeDocs), p.DocEmbedder)
	if err != nil {
		return nil, err
	}
	code, err := p.collectionStats(ctx, op, p.CollectionFor(ContentTypeCode), p.CodeEmbedder)
	if err != nil {
		return nil, err
	}

	return &StatsResult{
		Status:                  "success",
		TotalDocuments:          docs.Documents + code.Documents,
		DocumentationDocuments:  docs.Documents,
		CodeDocuments:           code.Documents,
		DocumentationCollection: docs.Collection,
		CodeCollection:          code.Collection,
		Collections:             []CollectionStats{docs, code},
	}, nil
}

func (p *PipelineContext) collectionStats(ctx context.Context, op, collection string, provider embedders.Provider) (CollectionStats, error) {
	start := nowFunc()
	count, err := p.Store.Count(ctx, collection, nil)
	p.observer().RecordStoreCall(ctx, "count", nowFunc().Sub(start), err)
	if err != nil {
		return CollectionStats{}, wrapStoreErr(op, err)
	}

	stats := CollectionStats{Collection: collection, Documents: count}
	if provider != nil {
		stats.EmbeddingModel = provider.GetModelName()
	}

	// Describe is best-effort; the count above is the authoritative figure.
	if info, err := p.Store.CollectionInfo(ctx, collection); err == nil && info != nil {
		stats.VectorSize = info.VectorSize
		stats.Status = info.Status
		stats.IndexedFields = info.IndexedFields
	}
	return stats, nil
}

// MetadataStats aggregates metadata value histograms over the
// collection serving the given content type.
func (p *PipelineContext) MetadataStats(ctx context.Context, contentType string, f filter.Node, groupBy []string) (*AggregateResult, error) {
	return p.Aggregate(ctx, p.CollectionFor(contentType), f, groupBy)
}
