package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/schema"
)

// bulkBatchSize is the write/delete batch width for bulk operations.
const bulkBatchSize = 100

// Duplicate policies accepted by ImportDocuments.
const (
	PolicySkip   = "skip"
	PolicyUpdate = "update"
	PolicyError  = "error"
)

// ExportRecord is the JSON shape of one exported document. Import
// accepts the same shape, so an export can round-trip.
type ExportRecord struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// DeleteByFilter removes every point matching the filter: collect the
// IDs first in scroll pages, then delete in batches. Deleting an ID
// that vanished mid-operation is a no-op, so the call is idempotent.
func (p *PipelineContext) DeleteByFilter(ctx context.Context, collection string, f filter.Node) (*BulkResult, error) {
	const op = "delete_by_filter"
	if f == nil {
		return nil, invalidFilter(op, errors.New("filter is required"))
	}

	deleted, matched, err := p.deleteMatching(ctx, op, collection, f)
	p.observer().RecordBulkDelete(ctx, collection, deleted)

	result := &BulkResult{Deleted: deleted, Total: matched}
	if err != nil {
		result.Errors = append(result.Errors, ItemError{Error: err.Error()})
	}
	result.finalize()
	result.Message = fmt.Sprintf("Successfully deleted %d documents", deleted)
	return result, err
}

// deleteMatching collects the IDs of every point matching f (nil
// matches the whole collection), then deletes them in batches.
// Returns how many were deleted alongside how many matched; the two
// differ only when err is non-nil.
func (p *PipelineContext) deleteMatching(ctx context.Context, op, collection string, f filter.Node) (deleted, matched int, err error) {
	var ids []string
	err = p.scrollAll(ctx, collection, f, false, false, func(points []databases.Point) error {
		for _, pt := range points {
			ids = append(ids, pt.ID)
		}
		return nil
	})
	if err != nil {
		return 0, 0, wrapStoreErr(op, err)
	}

	for start := 0; start < len(ids); start += bulkBatchSize {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return deleted, len(ids), ctxErr
		}
		end := min(start+bulkBatchSize, len(ids))
		if err := p.deletePoints(ctx, op, collection, ids[start:end]); err != nil {
			return deleted, len(ids), err
		}
		deleted += end - start
	}
	return deleted, len(ids), nil
}

// UpdateMetadataByFilter patches every matching point's metadata,
// preserving each point's payload shape and vector. Each patched point
// also gets a fresh updated_at and metadata_hash, the same refresh a
// single-point metadata update performs. Points the store returns
// without a vector are reported, not overwritten. Pages upsert as they
// scroll; a failure reports the progress made.
func (p *PipelineContext) UpdateMetadataByFilter(ctx context.Context, collection string, f filter.Node, patch map[string]any) (*BulkResult, error) {
	const op = "bulk_update_metadata"
	if f == nil {
		return nil, invalidFilter(op, errors.New("filter is required"))
	}
	if len(patch) == 0 {
		return nil, invalidInput(op, "metadata_updates is required")
	}

	result := &BulkResult{}
	err := p.scrollAll(ctx, collection, f, true, true, func(points []databases.Point) error {
		page := make([]databases.Point, 0, len(points))
		for _, pt := range points {
			if len(pt.Vector) == 0 {
				result.Errors = append(result.Errors, ItemError{ID: pt.ID, Error: vectorMissing(op, pt.ID).Error()})
				continue
			}
			rec := RecordFromPoint(pt)
			for k, v := range patch {
				rec.Meta[k] = v
			}
			rec.Meta["updated_at"] = schema.NowUTC()
			rec.Meta["metadata_hash"] = fingerprint.MetadataHash(rec.Meta)
			page = append(page, databases.Point{ID: pt.ID, Vector: pt.Vector, Payload: rec.ToPayload()})
		}
		if err := p.upsertPoints(ctx, op, collection, page); err != nil {
			return err
		}
		result.Updated += len(page)
		return nil
	})

	result.finalize()
	result.Message = fmt.Sprintf("Successfully updated metadata for %d documents", result.Updated)
	if err != nil {
		result.Errors = append(result.Errors, ItemError{Error: err.Error()})
		result.finalize()
		var pe *Error
		if errors.As(err, &pe) {
			return result, err
		}
		return result, wrapStoreErr(op, err)
	}
	return result, nil
}

// ExportDocuments serializes every matching point. Embeddings ride
// along only when asked for.
func (p *PipelineContext) ExportDocuments(ctx context.Context, collection string, f filter.Node, includeEmbeddings bool) ([]ExportRecord, error) {
	const op = "export_documents"
	out := []ExportRecord{}
	err := p.scrollAll(ctx, collection, f, true, includeEmbeddings, func(points []databases.Point) error {
		for _, pt := range points {
			rec := RecordFromPoint(pt)
			exp := ExportRecord{ID: rec.PointID, Content: rec.Content, Meta: rec.Meta}
			if includeEmbeddings && len(pt.Vector) > 0 {
				exp.Embedding = pt.Vector
			}
			out = append(out, exp)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	return out, nil
}

// ImportDocuments writes records under a duplicate policy. Each record
// is looked up by doc_id and category across all statuses; existing
// matches are skipped, rejected, or updated in place depending on the
// policy. New records keep their exported point ID, so an export
// imports back onto the same points. Records without an embedding are
// re-embedded.
func (p *PipelineContext) ImportDocuments(ctx context.Context, collection string, records []ExportRecord, policy string) (*BulkResult, error) {
	const op = "import_documents"
	switch policy {
	case "":
		policy = PolicySkip
	case PolicySkip, PolicyUpdate, PolicyError:
	default:
		return nil, invalidInput(op, "duplicate_strategy must be one of skip, update, error; got %q", policy)
	}

	provider := p.embedderForCollection(collection)
	result := &BulkResult{Total: len(records)}
	batch := make([]databases.Point, 0, bulkBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.upsertPoints(ctx, op, collection, batch); err != nil {
			return err
		}
		result.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, rec := range records {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.finalize()
			return result, ctxErr
		}

		docID := firstString(rec.Meta, "doc_id", "id")
		if docID == "" {
			result.Errors = append(result.Errors, ItemError{ID: rec.ID, Error: "Missing doc_id in metadata"})
			continue
		}
		category := stringField(rec.Meta, "category")
		if category == "" {
			category = schema.DefaultCategory
		}

		existing, err := p.lookupAnyStatus(ctx, collection, docID, category)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{DocID: docID, Error: err.Error()})
			continue
		}

		if len(existing) > 0 {
			switch policy {
			case PolicySkip:
				result.Skipped++
				continue
			case PolicyError:
				result.Errors = append(result.Errors, ItemError{DocID: docID, Error: fmt.Sprintf("Duplicate document found: %s", docID)})
				continue
			case PolicyUpdate:
				if _, err := p.UpdateContent(ctx, collection, existing[0].PointID, rec.Content, rec.Meta); err != nil {
					result.Errors = append(result.Errors, ItemError{DocID: docID, Error: err.Error()})
					continue
				}
				result.Updated++
				continue
			}
		}

		vector := rec.Embedding
		if len(vector) == 0 {
			vector, err = p.embed(ctx, provider, op, rec.Content)
			if err != nil {
				result.Errors = append(result.Errors, ItemError{DocID: docID, Error: err.Error()})
				continue
			}
		}

		id := rec.ID
		if id == "" {
			id = pointIDFor(fingerprint.CompositeKey(
				fingerprint.ContentHash(rec.Content), fingerprint.MetadataHash(rec.Meta)))
		}
		point := Record{PointID: id, Content: rec.Content, Meta: rec.Meta, Shape: ShapeNested}
		batch = append(batch, databases.Point{ID: id, Vector: vector, Payload: point.ToPayload()})

		if len(batch) >= bulkBatchSize {
			if err := flush(); err != nil {
				result.Errors = append(result.Errors, ItemError{Error: err.Error()})
				result.finalize()
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		result.Errors = append(result.Errors, ItemError{Error: err.Error()})
		result.finalize()
		return result, err
	}

	result.finalize()
	return result, nil
}

// lookupAnyStatus matches doc_id and category across every lifecycle
// status, the candidate set import policies decide against.
func (p *PipelineContext) lookupAnyStatus(ctx context.Context, collection, docID, category string) ([]Record, error) {
	const op = "lookup_by_doc_id"
	f := filter.And(
		filter.Eq("meta.doc_id", docID),
		eqIfSet("meta.category", category),
	)
	return p.collectRecords(ctx, op, collection, f, false)
}
