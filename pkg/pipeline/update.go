package pipeline

import (
	"context"
	"sort"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/schema"
)

// UpdateContent replaces a point's content in place: recompute the
// content hash, apply the metadata patch, refresh updated_at, rebuild
// metadata_hash, re-embed, and upsert under the same point ID. The
// upsert is atomic, so an interrupted call leaves pre-state or
// post-state, never a mixed vector and payload.
func (p *PipelineContext) UpdateContent(ctx context.Context, collection, pointID, newContent string, patch map[string]any) (*Result, error) {
	const op = "update_content"
	if pointID == "" {
		return nil, invalidInput(op, "document_id is required")
	}
	if newContent == "" {
		return nil, invalidInput(op, "new_content is required")
	}

	points, err := p.retrievePoints(ctx, op, collection, []string{pointID}, true, true)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, notFound(op, "Document not found: %s", pointID)
	}

	rec := RecordFromPoint(points[0])
	contentHash := fingerprint.ContentHash(newContent)
	rec.Content = newContent
	rec.Meta["hash_content"] = contentHash
	rec.Meta["content_hash"] = contentHash
	for k, v := range patch {
		rec.Meta[k] = v
	}
	rec.Meta["updated_at"] = schema.NowUTC()
	rec.Meta["metadata_hash"] = fingerprint.MetadataHash(rec.Meta)

	vector, err := p.embed(ctx, p.embedderForCollection(collection), op, newContent)
	if err != nil {
		return nil, err
	}

	point := databases.Point{ID: pointID, Vector: vector, Payload: rec.ToPayload()}
	if err := p.upsertPoints(ctx, op, collection, []databases.Point{point}); err != nil {
		return nil, err
	}

	updated := append([]string{"content", "hash_content", "updated_at"}, sortedKeys(patch)...)
	return &Result{
		Status:  "success",
		Message: "Document content updated successfully",
		PointID: pointID,
		Updated: updated,
	}, nil
}

// UpdateMetadata patches a point's metadata, keeping content and
// vector. The stored vector must come back from the retrieve; when the
// store returns none the update fails with VectorMissing rather than
// writing a zero vector over a real one.
func (p *PipelineContext) UpdateMetadata(ctx context.Context, collection, pointID string, patch map[string]any) (*Result, error) {
	const op = "update_metadata"
	if pointID == "" {
		return nil, invalidInput(op, "document_id is required")
	}
	if len(patch) == 0 {
		return nil, invalidInput(op, "metadata_updates is required")
	}

	points, err := p.retrievePoints(ctx, op, collection, []string{pointID}, true, true)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, notFound(op, "Document not found: %s", pointID)
	}
	if len(points[0].Vector) == 0 {
		return nil, vectorMissing(op, pointID)
	}

	rec := RecordFromPoint(points[0])
	for k, v := range patch {
		rec.Meta[k] = v
	}
	rec.Meta["updated_at"] = schema.NowUTC()
	rec.Meta["metadata_hash"] = fingerprint.MetadataHash(rec.Meta)

	point := databases.Point{ID: pointID, Vector: points[0].Vector, Payload: rec.ToPayload()}
	if err := p.upsertPoints(ctx, op, collection, []databases.Point{point}); err != nil {
		return nil, err
	}

	return &Result{
		Status:  "success",
		Message: "Document metadata updated successfully",
		PointID: pointID,
		Updated: sortedKeys(patch),
	}, nil
}

// Deprecate marks one point deprecated. It is a metadata update, so
// the record and its vector survive for version history.
func (p *PipelineContext) Deprecate(ctx context.Context, collection, pointID string) (*Result, error) {
	return p.UpdateMetadata(ctx, collection, pointID, map[string]any{"status": schema.StatusDeprecated})
}

// VersionHistory returns every point sharing a doc_id, optionally
// narrowed by category, sorted lexicographically by (version,
// created_at). Deprecated versions are included unless excluded.
func (p *PipelineContext) VersionHistory(ctx context.Context, collection, docID, category string, includeDeprecated bool) ([]Record, error) {
	const op = "get_version_history"
	if docID == "" {
		return nil, invalidInput(op, "doc_id is required")
	}

	f := filter.And(
		filter.Eq("meta.doc_id", docID),
		eqIfSet("meta.category", category),
	)
	if !includeDeprecated {
		f = filter.And(f, filter.Eq("meta.status", schema.StatusActive))
	}

	recs, err := p.collectRecords(ctx, op, collection, f, false)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if vi, vj := recs[i].Version(), recs[j].Version(); vi != vj {
			return vi < vj
		}
		return recs[i].CreatedAt() < recs[j].CreatedAt()
	})
	return recs, nil
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
