package server

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Dhana009/haystack/pkg/backup"
	"github.com/Dhana009/haystack/pkg/verify"
)

func (s *Server) handleDeleteByFilter(ctx context.Context, args *deleteByFilterArgs) *mcp.CallToolResult {
	if len(args.Filters) == 0 {
		return errorText("filters are required")
	}
	f, err := parseFilter("delete_by_filter", args.Filters)
	if err != nil {
		return failure("Failed to delete by filter: %v", err)
	}
	res, err := s.pipeline.DeleteByFilter(ctx, s.pipeline.CollectionFor(args.ContentType), f)
	if err != nil {
		return failure("Failed to delete by filter: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleBulkUpdateMetadata(ctx context.Context, args *bulkUpdateMetadataArgs) *mcp.CallToolResult {
	if len(args.Filters) == 0 || len(args.MetadataUpdates) == 0 {
		return errorText("filters and metadata_updates are required")
	}
	f, err := parseFilter("bulk_update_metadata", args.Filters)
	if err != nil {
		return failure("Failed to update metadata: %v", err)
	}
	res, err := s.pipeline.UpdateMetadataByFilter(ctx, s.pipeline.CollectionFor(args.ContentType), f, args.MetadataUpdates)
	if err != nil {
		return failure("Failed to update metadata: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleExportDocuments(ctx context.Context, args *exportDocumentsArgs) *mcp.CallToolResult {
	f, err := parseFilter("export_documents", args.Filters)
	if err != nil {
		return failure("Failed to export documents: %v", err)
	}
	docs, err := s.pipeline.ExportDocuments(ctx, s.pipeline.CollectionFor(args.ContentType), f, args.IncludeEmbeddings)
	if err != nil {
		return failure("Failed to export documents: %v", err)
	}
	return textResult(map[string]any{
		"status":    "success",
		"count":     len(docs),
		"documents": docs,
	})
}

func (s *Server) handleImportDocuments(ctx context.Context, args *importDocumentsArgs) *mcp.CallToolResult {
	if len(args.DocumentsData) == 0 {
		return errorText("documents_data is required")
	}
	res, err := s.pipeline.ImportDocuments(ctx, s.pipeline.CollectionFor(args.ContentType), args.DocumentsData, args.DuplicateStrategy)
	if err != nil {
		return failure("Failed to import documents: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleCreateBackup(ctx context.Context, args *createBackupArgs) *mcp.CallToolResult {
	f, err := parseFilter("create_backup", args.Filters)
	if err != nil {
		return failure("Failed to create backup: %v", err)
	}
	includeCode := true
	if args.IncludeCode != nil {
		includeCode = *args.IncludeCode
	}
	dir := args.BackupDirectory
	if dir == "" {
		dir = s.cfg.Backup.Directory
	}

	res, err := backup.Create(ctx, s.pipeline, backup.CreateOptions{
		Dir:               dir,
		IncludeEmbeddings: args.IncludeEmbeddings,
		IncludeCode:       includeCode,
		Filter:            f,
	})
	if err != nil {
		return failure("Failed to create backup: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleRestoreBackup(ctx context.Context, args *restoreBackupArgs) *mcp.CallToolResult {
	if strings.TrimSpace(args.BackupPath) == "" {
		return errorText("backup_path is required")
	}
	verifyAfter := true
	if args.VerifyAfterRestore != nil {
		verifyAfter = *args.VerifyAfterRestore
	}

	res, err := backup.Restore(ctx, s.pipeline, args.BackupPath, backup.RestoreOptions{
		Policy:           args.DuplicateStrategy,
		SkipVerification: !verifyAfter,
	})
	if err != nil {
		return failure("Failed to restore backup: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleListBackups(_ context.Context, args *listBackupsArgs) *mcp.CallToolResult {
	dir := args.BackupDirectory
	if dir == "" {
		dir = s.cfg.Backup.Directory
	}
	res, err := backup.List(dir)
	if err != nil {
		return failure("Failed to list backups: %v", err)
	}
	return textResult(res)
}

func (s *Server) handleAuditStorageIntegrity(ctx context.Context, args *auditStorageIntegrityArgs) *mcp.CallToolResult {
	recursive := true
	if args.Recursive != nil {
		recursive = *args.Recursive
	}
	report, err := verify.Audit(ctx, s.pipeline, args.SourceDirectory, recursive, args.FileExtensions)
	if err != nil {
		return failure("Failed to audit storage integrity: %v", err)
	}
	return textResult(report)
}
