package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhana009/haystack/pkg/chunking"
	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/embedders"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/metadata"
	"github.com/Dhana009/haystack/pkg/schema"
)

// ChunkUpdateRequest carries a new content revision for a chunked
// document.
type ChunkUpdateRequest struct {
	DocID       string
	Content     string
	Category    string
	Version     string
	FilePath    string
	Source      string
	Tags        []string
	ParentMeta  map[string]any
	ContentType string
}

// ChunkUpdateResult reports an incremental chunk update. ChunkIDs
// lists the chunks actually rewritten (changed and new); unchanged
// chunks keep their stored points untouched.
type ChunkUpdateResult struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	DocID     string      `json:"doc_id,omitempty"`
	Total     int         `json:"total_chunks"`
	Unchanged int         `json:"unchanged_count"`
	Changed   int         `json:"changed_count"`
	New       int         `json:"new_count"`
	Deleted   int         `json:"deleted_count"`
	ChunkIDs  []string    `json:"chunk_ids"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// chunkWrite bundles the invariants of one update batch.
type chunkWrite struct {
	collection string
	provider   embedders.Provider
	req        ChunkUpdateRequest
	category   string
	total      int
}

// UpdateChunked applies a new content revision to a chunked document,
// touching only what changed: unchanged chunks keep their stored
// embeddings, changed chunks deprecate the old point and write a new
// one, new chunks are written, vanished chunks are deprecated. Only
// changed and new chunks are embedded. Per-chunk failures are
// collected and do not abort the batch; cancellation stops between
// chunks and reports partial progress.
func (p *PipelineContext) UpdateChunked(ctx context.Context, req ChunkUpdateRequest) (*ChunkUpdateResult, error) {
	const op = "update_chunked"
	if req.DocID == "" {
		return nil, invalidInput(op, "doc_id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, invalidInput(op, "content is required")
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = ContentTypeDocs
	}
	category := req.Category
	if category == "" {
		category = schema.DefaultCategory
	}

	w := chunkWrite{
		collection: p.CollectionFor(contentType),
		provider:   p.EmbedderFor(contentType),
		req:        req,
		category:   category,
	}

	f := filter.And(
		filter.Eq("meta.parent_doc_id", req.DocID),
		filter.Eq("meta.status", schema.StatusActive),
	)
	recs, err := p.collectRecords(ctx, op, w.collection, f, false)
	if err != nil {
		return nil, err
	}

	stored := make([]chunking.Stored, 0, len(recs))
	for _, rec := range recs {
		idx, ok := rec.ChunkIndex()
		if !ok {
			// A record claiming this parent without a chunk index is
			// outside the diff's key space; the auditor reports it.
			continue
		}
		stored = append(stored, chunking.Stored{
			PointID: rec.PointID,
			Index:   idx,
			Hash:    rec.ContentHash(),
			Payload: rec.Meta,
		})
	}

	fresh, err := p.Chunker.Chunk(req.Content)
	if err != nil {
		return nil, chunkingFailed(op, err)
	}
	if len(fresh) == 0 {
		return nil, chunkingFailed(op, chunking.ErrNoChunks)
	}
	w.total = len(fresh)

	diff := chunking.Diff(stored, fresh)

	result := &ChunkUpdateResult{
		DocID:     req.DocID,
		Total:     len(fresh),
		Unchanged: len(diff.Unchanged),
		ChunkIDs:  []string{},
	}

	for i, chunk := range diff.Changed {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return interrupted(result, ctxErr)
		}
		old := diff.Superseded[i]
		if _, err := p.Deprecate(ctx, w.collection, old.PointID); err != nil {
			result.Errors = append(result.Errors, ItemError{ID: old.PointID, Error: err.Error()})
		}
		chunkID, err := p.writeChunk(ctx, op, w, chunk)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{DocID: chunkID, Error: err.Error()})
			continue
		}
		result.Changed++
		result.ChunkIDs = append(result.ChunkIDs, chunkID)
	}

	for _, chunk := range diff.New {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return interrupted(result, ctxErr)
		}
		chunkID, err := p.writeChunk(ctx, op, w, chunk)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{DocID: chunkID, Error: err.Error()})
			continue
		}
		result.New++
		result.ChunkIDs = append(result.ChunkIDs, chunkID)
	}

	for _, old := range diff.Deleted {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return interrupted(result, ctxErr)
		}
		if _, err := p.Deprecate(ctx, w.collection, old.PointID); err != nil {
			result.Errors = append(result.Errors, ItemError{ID: old.PointID, Error: err.Error()})
			continue
		}
		result.Deleted++
	}

	result.Status = "success"
	result.Message = chunkUpdateMessage(result)
	return result, nil
}

// writeChunk builds one chunk's metadata, embeds its content, and
// upserts the point. The returned chunk ID identifies the chunk even
// when the write fails.
func (p *PipelineContext) writeChunk(ctx context.Context, op string, w chunkWrite, chunk chunking.Chunk) (string, error) {
	chunkID := metadata.ChunkID(w.req.DocID, chunk.Index)

	chunkMeta, err := metadata.BuildChunk(metadata.ChunkInput{
		ParentDocID: w.req.DocID,
		ChunkIndex:  chunk.Index,
		TotalChunks: w.total,
		Category:    w.category,
		HashContent: chunk.Hash,
		Version:     w.req.Version,
		FilePath:    w.req.FilePath,
		Source:      w.req.Source,
		Tags:        w.req.Tags,
		Status:      schema.StatusActive,
		ParentMeta:  w.req.ParentMeta,
	})
	if err != nil {
		return chunkID, invalidMetadata(op, err)
	}

	vector, err := p.embed(ctx, w.provider, op, chunk.Content)
	if err != nil {
		return chunkID, err
	}

	metaHash, _ := chunkMeta["metadata_hash"].(string)
	id := pointIDFor(fingerprint.CompositeKey(chunk.Hash, metaHash))
	rec := Record{PointID: id, Content: chunk.Content, Meta: chunkMeta, Shape: ShapeNested}
	point := databases.Point{ID: id, Vector: vector, Payload: rec.ToPayload()}
	if err := p.upsertPoints(ctx, op, w.collection, []databases.Point{point}); err != nil {
		return chunkID, err
	}
	return chunkID, nil
}

func chunkUpdateMessage(r *ChunkUpdateResult) string {
	return fmt.Sprintf(
		"Incremental update completed. Total chunks: %d, Unchanged: %d (preserved), Changed: %d (updated), New: %d (added), Deleted: %d (deprecated)",
		r.Total, r.Unchanged, r.Changed, r.New, r.Deleted,
	)
}

// interrupted finalizes a partially applied update after cancellation.
func interrupted(r *ChunkUpdateResult, err error) (*ChunkUpdateResult, error) {
	r.Status = "error"
	r.Message = "update interrupted: " + err.Error()
	return r, err
}
