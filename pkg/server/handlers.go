package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/verify"
)

// defaultSearchTopK is the result count used when top_k is omitted.
const defaultSearchTopK = 5

// textResult serializes v as indented JSON into a text result. Every
// tool response, success or failure, goes through here.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// errorText renders a plain {"error": ...} envelope. Used for argument
// validation, where no classified error exists yet.
func errorText(msg string) *mcp.CallToolResult {
	return textResult(map[string]any{"error": msg})
}

// errorMessage extracts the human-readable message from err, without
// the operation prefix pipeline.Error adds to Error().
func errorMessage(err error) string {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		switch {
		case perr.Message != "" && perr.Err != nil:
			return perr.Message + ": " + perr.Err.Error()
		case perr.Message != "":
			return perr.Message
		case perr.Err != nil:
			return perr.Err.Error()
		}
	}
	return err.Error()
}

// failure renders err into the error envelope. A non-empty prefix is a
// printf format applied to the message. The pipeline kind travels as
// "type" so clients can branch without parsing text.
func failure(prefix string, err error) *mcp.CallToolResult {
	msg := errorMessage(err)
	if prefix != "" {
		msg = fmt.Sprintf(prefix, msg)
	}
	payload := map[string]any{"error": msg}
	if kind := pipeline.KindOf(err); kind != "" {
		payload["type"] = string(kind)
	}
	return textResult(payload)
}

// parseFilter converts a raw filter argument into a filter node,
// classifying parse failures so they carry a kind through the error
// envelope. An empty argument means no filter.
func parseFilter(op string, raw map[string]any) (filter.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	node, err := filter.Parse(raw)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInvalidFilter, op, "%v", err)
	}
	return node, nil
}

func (s *Server) handleAddDocument(ctx context.Context, args *addDocumentArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.Content) == "" {
		return errorText("content is required")
	}
	res, err := s.pipeline.AddDocument(ctx, pipeline.AddDocumentRequest{
		Content:  args.Content,
		Metadata: args.Metadata,
	})
	if err != nil {
		switch pipeline.KindOf(err) {
		case pipeline.KindInvalidInput, pipeline.KindInvalidMetadata:
			return errorText(errorMessage(err))
		}
		return failure("Failed to add document: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleAddFile(ctx context.Context, args *addFileArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.FilePath) == "" {
		return errorText("file_path is required")
	}
	res, err := s.pipeline.AddFile(ctx, args.FilePath, args.Metadata)
	if err != nil {
		switch pipeline.KindOf(err) {
		case pipeline.KindNotFound, pipeline.KindInvalidInput, pipeline.KindInvalidMetadata:
			return errorText(errorMessage(err))
		}
		return failure("Failed to add file: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleAddCode(ctx context.Context, args *addCodeArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.FilePath) == "" {
		return errorText("file_path is required")
	}
	res, err := s.pipeline.AddCode(ctx, args.FilePath, args.Language, args.Metadata)
	if err != nil {
		switch pipeline.KindOf(err) {
		case pipeline.KindNotFound, pipeline.KindInvalidInput, pipeline.KindInvalidMetadata:
			return errorText(errorMessage(err))
		}
		return failure("Failed to add code file: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleAddCodeDirectory(ctx context.Context, args *addCodeDirectoryArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.DirectoryPath) == "" {
		return errorText("directory_path is required")
	}
	res, err := s.pipeline.AddCodeDirectory(ctx, args.DirectoryPath, args.Extensions, args.ExcludePatterns, args.Metadata)
	if err != nil {
		if pipeline.KindOf(err) == pipeline.KindNotFound {
			return errorText(errorMessage(err))
		}
		return failure("", err)
	}
	return textResult(res)
}

func (s *Server) handleSearchDocuments(ctx context.Context, args *searchArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.Query) == "" {
		return errorText("query is required")
	}
	topK := args.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	contentType := args.ContentType
	if contentType == "" {
		contentType = "all"
	}

	f, err := parseFilter("search_documents", args.MetadataFilters)
	if err != nil {
		return failure("", err)
	}

	// Documentation hits come first so they win score ties in the
	// stable sort below.
	hits := []pipeline.SearchHit{}
	if contentType == "all" || contentType == "docs" {
		docHits, err := s.pipeline.SearchWithFilters(ctx, s.pipeline.CollectionFor(pipeline.ContentTypeDocs), args.Query, f, topK)
		if err != nil {
			return failure("", err)
		}
		hits = append(hits, docHits...)
	}
	if contentType == "all" || contentType == "code" {
		codeHits, err := s.pipeline.SearchWithFilters(ctx, s.pipeline.CollectionFor(pipeline.ContentTypeCode), args.Query, f, topK)
		if err != nil {
			return failure("", err)
		}
		hits = append(hits, codeHits...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}

	return textResult(map[string]any{
		"status":           "success",
		"query":            args.Query,
		"content_type":     contentType,
		"metadata_filters": args.MetadataFilters,
		"results_count":    len(hits),
		"results":          hits,
	})
}

func (s *Server) handleGetStats(ctx context.Context, _ *getStatsArgs) *mcp.CallToolResult {
	res, err := s.pipeline.Stats(ctx)
	if err != nil {
		return failure("", err)
	}
	return textResult(res)
}

func (s *Server) handleDeleteDocument(ctx context.Context, args *deleteDocumentArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.DocumentID) == "" {
		return errorText("document_id is required")
	}
	res, err := s.pipeline.DeleteDocument(ctx, args.DocumentID)
	if err != nil {
		if pipeline.KindOf(err) == pipeline.KindNotFound {
			return textResult(map[string]any{
				"status":  "error",
				"message": fmt.Sprintf("Document %s not found in any collection", args.DocumentID),
			})
		}
		return failure("", err)
	}
	return textResult(res)
}

func (s *Server) handleClearAll(ctx context.Context, _ *clearAllArgs) *mcp.CallToolResult {
	res, err := s.pipeline.ClearAll(ctx)
	if err != nil {
		payload := map[string]any{
			"error": "Failed to clear collections: " + errorMessage(err),
		}
		if kind := pipeline.KindOf(err); kind != "" {
			payload["type"] = string(kind)
		}
		if res != nil {
			payload["deleted_so_far"] = res.Deleted
		}
		return textResult(payload)
	}
	return textResult(res)
}

func (s *Server) handleVerifyDocument(ctx context.Context, args *verifyDocumentArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.DocumentID) == "" {
		return errorText("document_id is required")
	}
	rec, _, err := s.pipeline.GetDocument(ctx, args.DocumentID)
	if err != nil {
		switch pipeline.KindOf(err) {
		case pipeline.KindNotFound, pipeline.KindInvalidInput:
			return errorText(errorMessage(err))
		}
		return failure("Failed to verify document: %v", err)
	}
	return textResult(verify.Document(*rec))
}

func (s *Server) handleVerifyCategory(ctx context.Context, args *verifyCategoryArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.Category) == "" {
		return errorText("category is required")
	}
	report, err := verify.Category(ctx, s.pipeline, args.Category, args.MaxDocuments)
	if err != nil {
		return failure("Failed to verify category: %v", err)
	}
	return textResult(report)
}

func (s *Server) handleGetDocumentByPath(ctx context.Context, args *getDocumentByPathArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.FilePath) == "" {
		return errorText("file_path is required")
	}
	status := args.Status
	if status == "" {
		status = "active"
	}
	recs, err := s.pipeline.LookupByFilePath(ctx, s.pipeline.CollectionFor(pipeline.ContentTypeDocs), args.FilePath, status)
	if err != nil {
		return failure("Failed to get document: %v", err)
	}
	if len(recs) == 0 {
		return textResult(map[string]any{
			"status":  "not_found",
			"message": fmt.Sprintf("Document not found: %s", args.FilePath),
		})
	}
	return textResult(map[string]any{
		"status":   "success",
		"document": recs[0],
	})
}

func (s *Server) handleGetMetadataStats(ctx context.Context, args *getMetadataStatsArgs) *mcp.CallToolResult {
	f, err := parseFilter("get_metadata_stats", args.Filters)
	if err != nil {
		return failure("Failed to get metadata stats: %v", err)
	}
	res, err := s.pipeline.MetadataStats(ctx, args.ContentType, f, args.GroupByFields)
	if err != nil {
		return failure("Failed to get metadata stats: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleUpdateDocument(ctx context.Context, args *updateDocumentArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.DocumentID) == "" || strings.TrimSpace(args.Content) == "" {
		return errorText("document_id and content are required")
	}
	_, contentType, err := s.pipeline.GetDocument(ctx, args.DocumentID)
	if err != nil {
		return failure("Failed to update document: %v", err)
	}
	res, err := s.pipeline.UpdateContent(ctx, s.pipeline.CollectionFor(contentType), args.DocumentID, args.Content, args.MetadataUpdates)
	if err != nil {
		return failure("Failed to update document: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleUpdateMetadata(ctx context.Context, args *updateMetadataArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.DocumentID) == "" || len(args.MetadataUpdates) == 0 {
		return errorText("document_id and metadata_updates are required")
	}
	_, contentType, err := s.pipeline.GetDocument(ctx, args.DocumentID)
	if err != nil {
		return failure("Failed to update metadata: %v", err)
	}
	res, err := s.pipeline.UpdateMetadata(ctx, s.pipeline.CollectionFor(contentType), args.DocumentID, args.MetadataUpdates)
	if err != nil {
		return failure("Failed to update metadata: %v", err)
	}
	return textResult(res)
}

// versionEntry mirrors one version history row. Fields come straight
// from stored metadata, so a missing field serializes as null.
type versionEntry struct {
	ID        string `json:"id"`
	Version   any    `json:"version"`
	Status    any    `json:"status"`
	CreatedAt any    `json:"created_at"`
	UpdatedAt any    `json:"updated_at"`
}

func (s *Server) handleGetVersionHistory(ctx context.Context, args *getVersionHistoryArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.DocID) == "" {
		return errorText("doc_id is required")
	}
	includeDeprecated := true
	if args.IncludeDeprecated != nil {
		includeDeprecated = *args.IncludeDeprecated
	}

	recs, err := s.pipeline.VersionHistory(ctx, s.pipeline.CollectionFor(pipeline.ContentTypeDocs), args.DocID, args.Category, includeDeprecated)
	if err != nil {
		return failure("Failed to get version history: %v", err)
	}

	versions := make([]versionEntry, 0, len(recs))
	for _, rec := range recs {
		versions = append(versions, versionEntry{
			ID:        rec.PointID,
			Version:   rec.Meta["version"],
			Status:    rec.Meta["status"],
			CreatedAt: rec.Meta["created_at"],
			UpdatedAt: rec.Meta["updated_at"],
		})
	}
	return textResult(map[string]any{
		"status":        "success",
		"doc_id":        args.DocID,
		"version_count": len(versions),
		"versions":      versions,
	})
}
