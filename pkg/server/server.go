// Package server exposes the ingestion pipeline as an MCP tool server.
// Tools are registered with JSON schemas reflected from typed argument
// structs, and every handler answers with a JSON text payload, folding
// pipeline failures into an error envelope instead of a protocol
// error. The server speaks stdio by default and streamable HTTP when
// configured.
package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Dhana009/haystack/pkg/auth"
	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/observability"
	"github.com/Dhana009/haystack/pkg/pipeline"
)

// serverName is the identity announced during the MCP initialize
// handshake.
const serverName = "haystack"

// Server exposes the ingestion pipeline as an MCP tool server over
// stdio or streamable HTTP.
type Server struct {
	cfg       *config.Config
	pipeline  *pipeline.PipelineContext
	obs       *observability.Manager
	validator *auth.JWTValidator
	version   string

	mcp *mcpserver.MCPServer
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithObservability attaches an initialized observability manager.
func WithObservability(m *observability.Manager) Option {
	return func(s *Server) { s.obs = m }
}

// WithAuthValidator attaches a JWT validator for the HTTP transport.
// A nil validator leaves the endpoint unauthenticated.
func WithAuthValidator(v *auth.JWTValidator) Option {
	return func(s *Server) { s.validator = v }
}

// WithVersion overrides the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// New builds the MCP server and registers the tool surface.
func New(cfg *config.Config, p *pipeline.PipelineContext, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if p == nil {
		return nil, errors.New("server: pipeline is required")
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		version:  Version(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.obs == nil {
		s.obs = observability.NoopManager()
	}

	s.mcp = mcpserver.NewMCPServer(serverName, s.version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Version reports the module version embedded at build time, or "dev"
// when built from a working tree.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}

// Run serves until the context is cancelled or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Server.Transport {
	case config.TransportHTTP:
		return s.serveHTTP(ctx)
	default:
		return s.serveStdio(ctx)
	}
}

func (s *Server) serveStdio(ctx context.Context) error {
	logger.Get().Info("starting MCP server on stdio",
		"server", serverName,
		"version", s.version,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- mcpserver.ServeStdio(s.mcp)
	}()

	select {
	case <-ctx.Done():
		logger.Get().Info("MCP server shutting down")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server error: %w", err)
		}
		return nil
	}
}

// addTool reflects the argument struct into a JSON schema, registers
// the tool, and wraps the handler with argument decoding. Handlers
// report failures inside the result payload; the error return is
// reserved for protocol-level problems.
func addTool[T any](s *Server, name, description string, handler func(context.Context, *T) *mcp.CallToolResult) error {
	schema, err := toolSchema[T]()
	if err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}
	tool := mcp.NewToolWithRawSchema(name, description, schema)

	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := request.GetRawArguments()
		if raw == nil {
			raw = map[string]any{}
		}
		argsMap, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		args := new(T)
		if err := decodeArgs(argsMap, args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		return handler(ctx, args), nil
	})
	return nil
}

func (s *Server) registerTools() error {
	return errors.Join(
		addTool(s, "add_document",
			"Add a document to the Haystack RAG system. The document will be embedded and stored in Qdrant. Use for storing new documents or content for future search.",
			s.handleAddDocument),
		addTool(s, "add_file",
			"Add a file to the Haystack RAG system by reading its content. Use for storing new files for future search.",
			s.handleAddFile),
		addTool(s, "add_code",
			"Add a code file to the Haystack RAG system with language detection and code-specific metadata. Automatically detects programming language from file extension. Use for storing code files for future search.",
			s.handleAddCode),
		addTool(s, "add_code_directory",
			"Add all code files from a directory recursively to the Haystack RAG system. Supports common code file extensions (.py, .js, .ts, .java, .cpp, .go, .rs, etc.). Use for storing multiple code files for future search.",
			s.handleAddCodeDirectory),
		addTool(s, "search_documents",
			"Search for documents and code using semantic similarity. Use for finding relevant documents, code snippets, or content based on meaning. Can search documentation, code, or both. Supports metadata filtering.",
			s.handleSearchDocuments),
		addTool(s, "get_stats",
			"Get statistics about indexed documents. Use for checking how many documents are stored, collection info, etc.",
			s.handleGetStats),
		addTool(s, "delete_document",
			"Delete a document from the vector store by ID. Use when user wants to remove a specific document.",
			s.handleDeleteDocument),
		addTool(s, "clear_all",
			"Delete all documents from both documentation and code collections. Use when user wants to clear all data from the Haystack RAG system.",
			s.handleClearAll),
		addTool(s, "verify_document",
			"Verify the quality and integrity of a single document. Checks for placeholders, validates hash, verifies metadata, and returns a quality score.",
			s.handleVerifyDocument),
		addTool(s, "verify_category",
			"Bulk verify all documents in a category. Returns statistics on quality scores, failed documents, and common issues.",
			s.handleVerifyCategory),
		addTool(s, "delete_by_filter",
			"Delete documents matching metadata filters. Use for bulk deletion by category, status, file_path, etc.",
			s.handleDeleteByFilter),
		addTool(s, "bulk_update_metadata",
			"Update metadata for multiple documents matching a filter. Efficient bulk metadata updates.",
			s.handleBulkUpdateMetadata),
		addTool(s, "export_documents",
			"Export documents with metadata to JSON format. Useful for backup and migration.",
			s.handleExportDocuments),
		addTool(s, "import_documents",
			"Bulk import documents with duplicate handling strategy (skip/update/error).",
			s.handleImportDocuments),
		addTool(s, "get_document_by_path",
			"Retrieve a document by file path using a metadata filter.",
			s.handleGetDocumentByPath),
		addTool(s, "get_metadata_stats",
			"Get statistics aggregated by metadata fields. Returns counts by category, status, source, etc.",
			s.handleGetMetadataStats),
		addTool(s, "update_document",
			"Atomically update document content and optionally metadata. Regenerates embedding and updates hash.",
			s.handleUpdateDocument),
		addTool(s, "update_metadata",
			"Update only metadata fields without changing content. Efficient for metadata-only updates.",
			s.handleUpdateMetadata),
		addTool(s, "get_version_history",
			"Retrieve version history for a document by doc_id. Returns all versions sorted by version/created_at.",
			s.handleGetVersionHistory),
		addTool(s, "create_backup",
			"Create a local backup of a Qdrant collection. Backs up to timestamped directory with documents, metadata, and manifest files.",
			s.handleCreateBackup),
		addTool(s, "restore_backup",
			"Restore a collection from a local backup. Verifies backup integrity and optionally verifies restored documents.",
			s.handleRestoreBackup),
		addTool(s, "list_backups",
			"List all available backups in the backup directory with their metadata.",
			s.handleListBackups),
		addTool(s, "audit_storage_integrity",
			"Audit storage integrity by comparing stored documents with source files. Detects missing files, content mismatches, and quality issues.",
			s.handleAuditStorageIntegrity),
	)
}
