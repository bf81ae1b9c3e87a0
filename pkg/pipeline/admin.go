package pipeline

import (
	"context"
	"fmt"
)

// GetDocument retrieves one point by ID, checking the documentation
// collection first, then code. The second return names the content
// type that held it.
func (p *PipelineContext) GetDocument(ctx context.Context, pointID string) (*Record, string, error) {
	const op = "get_document"
	if pointID == "" {
		return nil, "", invalidInput(op, "document_id is required")
	}
	for _, ct := range []string{ContentTypeDocs, ContentTypeCode} {
		points, err := p.retrievePoints(ctx, op, p.CollectionFor(ct), []string{pointID}, true, false)
		if err != nil {
			return nil, "", err
		}
		if len(points) > 0 {
			rec := RecordFromPoint(points[0])
			return &rec, ct, nil
		}
	}
	return nil, "", notFound(op, "Document not found: %s", pointID)
}

// DeleteResult reports a single-document delete.
type DeleteResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	DeletedFrom string `json:"deleted_from,omitempty"`
}

// DeleteDocument removes a point by ID from whichever collection holds
// it. Both collections are tried; a point present in both is removed
// from both and reported under the documentation collection.
func (p *PipelineContext) DeleteDocument(ctx context.Context, pointID string) (*DeleteResult, error) {
	const op = "delete_document"
	if pointID == "" {
		return nil, invalidInput(op, "document_id is required")
	}

	var deletedFrom string
	for _, ct := range []string{ContentTypeDocs, ContentTypeCode} {
		collection := p.CollectionFor(ct)
		points, err := p.retrievePoints(ctx, op, collection, []string{pointID}, false, false)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			continue
		}
		if err := p.deletePoints(ctx, op, collection, []string{pointID}); err != nil {
			return nil, err
		}
		if deletedFrom == "" {
			deletedFrom = ct
		}
	}

	if deletedFrom == "" {
		return nil, notFound(op, "Document %s not found in any collection", pointID)
	}
	return &DeleteResult{
		Status:      "success",
		Message:     fmt.Sprintf("Document %s deleted successfully", pointID),
		DeletedFrom: deletedFrom,
	}, nil
}

// ClearCounts tallies both collections.
type ClearCounts struct {
	DocumentationDocuments int `json:"documentation_documents"`
	CodeDocuments          int `json:"code_documents"`
	Total                  int `json:"total"`
}

// ClearAllResult reports a full wipe, with the counts observed before
// it started.
type ClearAllResult struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Deleted ClearCounts `json:"deleted"`
	Before  ClearCounts `json:"before"`
}

// ClearAll deletes every point from both collections. A failure
// partway through still reports what was deleted before it.
func (p *PipelineContext) ClearAll(ctx context.Context) (*ClearAllResult, error) {
	const op = "clear_all"

	docsCollection := p.CollectionFor(ContentTypeDocs)
	codeCollection := p.CollectionFor(ContentTypeCode)

	docsBefore, err := p.Store.Count(ctx, docsCollection, nil)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	codeBefore, err := p.Store.Count(ctx, codeCollection, nil)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}

	result := &ClearAllResult{
		Before: ClearCounts{
			DocumentationDocuments: int(docsBefore),
			CodeDocuments:          int(codeBefore),
			Total:                  int(docsBefore + codeBefore),
		},
	}
	fill := func() {
		result.Deleted.Total = result.Deleted.DocumentationDocuments + result.Deleted.CodeDocuments
	}

	deleted, _, err := p.deleteMatching(ctx, op, docsCollection, nil)
	p.observer().RecordBulkDelete(ctx, docsCollection, deleted)
	result.Deleted.DocumentationDocuments = deleted
	if err != nil {
		fill()
		result.Status = "error"
		result.Message = "Failed to clear collections: " + err.Error()
		return result, err
	}

	deleted, _, err = p.deleteMatching(ctx, op, codeCollection, nil)
	p.observer().RecordBulkDelete(ctx, codeCollection, deleted)
	result.Deleted.CodeDocuments = deleted
	fill()
	if err != nil {
		result.Status = "error"
		result.Message = "Failed to clear collections: " + err.Error()
		return result, err
	}

	result.Status = "success"
	result.Message = "All documents cleared successfully"
	return result, nil
}
