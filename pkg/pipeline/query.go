package pipeline

import (
	"context"
	"fmt"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/schema"
)

// DefaultTopK is the search result budget when the caller gives none.
const DefaultTopK = 10

// scrollAll pages a filtered scroll to exhaustion, recording each page.
func (p *PipelineContext) scrollAll(ctx context.Context, collection string, f filter.Node, withPayload, withVectors bool, fn func([]databases.Point) error) error {
	obs := p.observer()
	return databases.ScrollAll(ctx, p.Store, collection, f, withPayload, withVectors, func(points []databases.Point) error {
		obs.RecordScrollPage(ctx, collection)
		return fn(points)
	})
}

// collectRecords gathers every record matching the filter.
func (p *PipelineContext) collectRecords(ctx context.Context, op, collection string, f filter.Node, withVectors bool) ([]Record, error) {
	var recs []Record
	err := p.scrollAll(ctx, collection, f, true, withVectors, func(points []databases.Point) error {
		recs = append(recs, recordsFromPoints(points)...)
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return recs, nil
}

// Records gathers every record matching the filter. A nil filter
// matches the whole collection.
func (p *PipelineContext) Records(ctx context.Context, collection string, f filter.Node) ([]Record, error) {
	return p.collectRecords(ctx, "scroll_records", collection, f, false)
}

// LookupByDocID returns the points whose metadata matches doc_id, and
// optionally category. Status defaults to active when empty.
func (p *PipelineContext) LookupByDocID(ctx context.Context, collection, docID, category, status string) ([]Record, error) {
	const op = "lookup_by_doc_id"
	if docID == "" {
		return nil, invalidInput(op, "doc_id is required")
	}
	if status == "" {
		status = schema.StatusActive
	}
	f := filter.And(
		filter.Eq("meta.doc_id", docID),
		eqIfSet("meta.category", category),
		filter.Eq("meta.status", status),
	)
	return p.collectRecords(ctx, op, collection, f, false)
}

// LookupByContentHash matches on hash_content, falling back to the
// legacy content_hash field when nothing matches.
func (p *PipelineContext) LookupByContentHash(ctx context.Context, collection, hash, status string) ([]Record, error) {
	const op = "lookup_by_content_hash"
	if hash == "" {
		return nil, invalidInput(op, "content hash is required")
	}
	if status == "" {
		status = schema.StatusActive
	}

	recs, err := p.collectRecords(ctx, op, collection,
		filter.And(filter.Eq("meta.hash_content", hash), filter.Eq("meta.status", status)), false)
	if err != nil || len(recs) > 0 {
		return recs, err
	}
	return p.collectRecords(ctx, op, collection,
		filter.And(filter.Eq("meta.content_hash", hash), filter.Eq("meta.status", status)), false)
}

// LookupByFilePath matches on file_path, falling back to the legacy
// path field when nothing matches.
func (p *PipelineContext) LookupByFilePath(ctx context.Context, collection, path, status string) ([]Record, error) {
	const op = "lookup_by_file_path"
	if path == "" {
		return nil, invalidInput(op, "file path is required")
	}
	if status == "" {
		status = schema.StatusActive
	}

	recs, err := p.collectRecords(ctx, op, collection,
		filter.And(filter.Eq("meta.file_path", path), filter.Eq("meta.status", status)), false)
	if err != nil || len(recs) > 0 {
		return recs, err
	}
	return p.collectRecords(ctx, op, collection,
		filter.And(filter.Eq("meta.path", path), filter.Eq("meta.status", status)), false)
}

// SearchHit is one ranked search result.
type SearchHit struct {
	Rank     int            `json:"rank"`
	Score    float32        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	ID       string         `json:"id"`
	Source   string         `json:"source"`
}

// SearchWithFilters embeds the query with the collection's embedder
// and returns the topK nearest points under the filter, ranked by
// score descending.
func (p *PipelineContext) SearchWithFilters(ctx context.Context, collection, query string, f filter.Node, topK int) ([]SearchHit, error) {
	const op = "search_with_filters"
	if query == "" {
		return nil, invalidInput(op, "query is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	provider := p.embedderForCollection(collection)
	vector, err := p.embed(ctx, provider, op, query)
	if err != nil {
		return nil, err
	}

	scored, err := p.Store.Search(ctx, collection, vector, f, topK)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}

	source := ContentTypeDocs
	if collection == p.Config.Collections.Code {
		source = ContentTypeCode
	}

	hits := make([]SearchHit, 0, len(scored))
	for i, sp := range scored {
		rec := RecordFromPoint(sp.Point)
		hits = append(hits, SearchHit{
			Rank:     i + 1,
			Score:    sp.Score,
			Content:  rec.Content,
			Metadata: rec.Meta,
			ID:       rec.PointID,
			Source:   source,
		})
	}
	return hits, nil
}

// FieldStats is the value histogram for one grouped field.
type FieldStats struct {
	UniqueCount int            `json:"unique_count"`
	Values      map[string]int `json:"values"`
}

// AggregateResult is a scroll-based metadata aggregation.
type AggregateResult struct {
	Total  int                   `json:"total_documents"`
	Fields map[string]FieldStats `json:"field_values"`
}

// DefaultGroupBy returns the default aggregation fields.
func DefaultGroupBy() []string {
	return []string{"category", "status", "source"}
}

// Aggregate scrolls the matching points and counts the values of each
// groupBy field. Missing fields count under "unknown". This walks the
// whole match set; it is an administrative operation.
func (p *PipelineContext) Aggregate(ctx context.Context, collection string, f filter.Node, groupBy []string) (*AggregateResult, error) {
	const op = "aggregate"
	if len(groupBy) == 0 {
		groupBy = DefaultGroupBy()
	}

	counts := make(map[string]map[string]int, len(groupBy))
	for _, field := range groupBy {
		counts[field] = map[string]int{}
	}

	total := 0
	err := p.scrollAll(ctx, collection, f, true, false, func(points []databases.Point) error {
		for _, pt := range points {
			rec := RecordFromPoint(pt)
			total++
			for _, field := range groupBy {
				value := "unknown"
				if v, ok := rec.Meta[field]; ok && v != nil {
					if s, isStr := v.(string); isStr {
						value = s
					} else {
						value = fmt.Sprintf("%v", v)
					}
				}
				counts[field][value]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}

	result := &AggregateResult{Total: total, Fields: make(map[string]FieldStats, len(groupBy))}
	for field, values := range counts {
		result.Fields[field] = FieldStats{UniqueCount: len(values), Values: values}
	}
	return result, nil
}

// eqIfSet builds an equality comparison, or nil for an empty value so
// filter.And drops it.
func eqIfSet(field, value string) filter.Node {
	if value == "" {
		return nil
	}
	return filter.Eq(field, value)
}
