package server

import "github.com/Dhana009/haystack/pkg/pipeline"

// Argument structs for the tool surface. The json tags name the wire
// fields, jsonschema tags drive schema generation, and defaults are
// applied by the handlers so omitted arguments behave the way the
// schema advertises. Booleans whose default is true are pointers;
// a plain bool cannot distinguish "false" from "omitted".

type addDocumentArgs struct {
	Content  string         `json:"content" jsonschema:"required" jsonschema_description:"The text content of the document to index"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema_description:"Optional metadata for the document (e.g., file_path, source, etc.)"`
}

type addFileArgs struct {
	FilePath string         `json:"file_path" jsonschema:"required" jsonschema_description:"Path to the file to index"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema_description:"Optional additional metadata"`
}

type addCodeArgs struct {
	FilePath string         `json:"file_path" jsonschema:"required" jsonschema_description:"Path to the code file to index"`
	Language string         `json:"language,omitempty" jsonschema_description:"Optional programming language (e.g., 'python', 'javascript', 'typescript'). Auto-detected from extension if not provided."`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema_description:"Optional additional metadata"`
}

type addCodeDirectoryArgs struct {
	DirectoryPath   string         `json:"directory_path" jsonschema:"required" jsonschema_description:"Path to the directory containing code files"`
	Extensions      []string       `json:"extensions,omitempty" jsonschema_description:"Optional list of file extensions to include (e.g., ['.py', '.js']). If not provided, uses common code extensions."`
	ExcludePatterns []string       `json:"exclude_patterns,omitempty" jsonschema_description:"Optional patterns to exclude (e.g., ['__pycache__', 'node_modules', '.git'])"`
	Metadata        map[string]any `json:"metadata,omitempty" jsonschema_description:"Optional additional metadata to add to all indexed files"`
}

type searchArgs struct {
	Query           string         `json:"query" jsonschema:"required" jsonschema_description:"The search query"`
	TopK            int            `json:"top_k,omitempty" jsonschema:"default=5,minimum=1,maximum=50" jsonschema_description:"Number of results to return (default: 5)"`
	ContentType     string         `json:"content_type,omitempty" jsonschema:"enum=all,enum=code,enum=docs,default=all" jsonschema_description:"Type of content to search: 'all' (default), 'code', or 'docs'"`
	MetadataFilters map[string]any `json:"metadata_filters,omitempty" jsonschema_description:"Optional metadata filters (Haystack filter format). Example: {'field': 'meta.category', 'operator': '==', 'value': 'user_rule'}"`
}

type getStatsArgs struct{}

type deleteDocumentArgs struct {
	DocumentID string `json:"document_id" jsonschema:"required" jsonschema_description:"The ID of the document to delete"`
}

type clearAllArgs struct{}

type verifyDocumentArgs struct {
	DocumentID string `json:"document_id" jsonschema:"required" jsonschema_description:"The ID of the document to verify"`
}

type verifyCategoryArgs struct {
	Category     string `json:"category" jsonschema:"required" jsonschema_description:"Category to verify (e.g., 'user_rule', 'project_rule', 'other')"`
	MaxDocuments int    `json:"max_documents,omitempty" jsonschema:"minimum=1" jsonschema_description:"Maximum number of documents to verify (optional, defaults to all)"`
}

type deleteByFilterArgs struct {
	Filters     map[string]any `json:"filters" jsonschema:"required" jsonschema_description:"Haystack filter dictionary. Example: {'field': 'meta.category', 'operator': '==', 'value': 'user_rule'}"`
	ContentType string         `json:"content_type,omitempty" jsonschema:"enum=docs,enum=code,default=docs" jsonschema_description:"Which collection to delete from: 'docs' (default) or 'code'"`
}

type bulkUpdateMetadataArgs struct {
	Filters         map[string]any `json:"filters" jsonschema:"required" jsonschema_description:"Haystack filter dictionary to match documents"`
	MetadataUpdates map[string]any `json:"metadata_updates" jsonschema:"required" jsonschema_description:"Dictionary of metadata fields to update"`
	ContentType     string         `json:"content_type,omitempty" jsonschema:"enum=docs,enum=code,default=docs" jsonschema_description:"Which collection to update: 'docs' (default) or 'code'"`
}

type exportDocumentsArgs struct {
	Filters           map[string]any `json:"filters,omitempty" jsonschema_description:"Optional Haystack filter dictionary to filter documents"`
	IncludeEmbeddings bool           `json:"include_embeddings,omitempty" jsonschema:"default=false" jsonschema_description:"Whether to include embeddings in export (default: false)"`
	ContentType       string         `json:"content_type,omitempty" jsonschema:"enum=docs,enum=code,default=docs" jsonschema_description:"Which collection to export: 'docs' (default) or 'code'"`
}

type importDocumentsArgs struct {
	DocumentsData     []pipeline.ExportRecord `json:"documents_data" jsonschema:"required" jsonschema_description:"Array of document dictionaries with content, meta, etc."`
	DuplicateStrategy string                  `json:"duplicate_strategy,omitempty" jsonschema:"enum=skip,enum=update,enum=error,default=skip" jsonschema_description:"How to handle duplicates: 'skip', 'update', or 'error'"`
	ContentType       string                  `json:"content_type,omitempty" jsonschema:"enum=docs,enum=code,default=docs" jsonschema_description:"Which collection to import into: 'docs' (default) or 'code'"`
}

type getDocumentByPathArgs struct {
	FilePath string `json:"file_path" jsonschema:"required" jsonschema_description:"File path to search for"`
	Status   string `json:"status,omitempty" jsonschema:"enum=active,enum=deprecated,enum=draft,default=active" jsonschema_description:"Optional status filter (default: 'active')"`
}

type getMetadataStatsArgs struct {
	Filters       map[string]any `json:"filters,omitempty" jsonschema_description:"Optional Haystack filter dictionary"`
	GroupByFields []string       `json:"group_by_fields,omitempty" jsonschema_description:"List of metadata fields to group by (e.g., ['category', 'status'])"`
	ContentType   string         `json:"content_type,omitempty" jsonschema:"enum=docs,enum=code,default=docs" jsonschema_description:"Which collection to aggregate: 'docs' (default) or 'code'"`
}

type updateDocumentArgs struct {
	DocumentID      string         `json:"document_id" jsonschema:"required" jsonschema_description:"Document ID (Qdrant point ID)"`
	Content         string         `json:"content" jsonschema:"required" jsonschema_description:"New document content"`
	MetadataUpdates map[string]any `json:"metadata_updates,omitempty" jsonschema_description:"Optional metadata fields to update"`
}

type updateMetadataArgs struct {
	DocumentID      string         `json:"document_id" jsonschema:"required" jsonschema_description:"Document ID (Qdrant point ID)"`
	MetadataUpdates map[string]any `json:"metadata_updates" jsonschema:"required" jsonschema_description:"Dictionary of metadata fields to update"`
}

type getVersionHistoryArgs struct {
	DocID             string `json:"doc_id" jsonschema:"required" jsonschema_description:"Logical document ID (not Qdrant point ID)"`
	Category          string `json:"category,omitempty" jsonschema_description:"Optional category filter"`
	IncludeDeprecated *bool  `json:"include_deprecated,omitempty" jsonschema:"default=true" jsonschema_description:"Whether to include deprecated versions (default: true)"`
}

type createBackupArgs struct {
	BackupDirectory   string         `json:"backup_directory,omitempty" jsonschema:"default=./backups" jsonschema_description:"Directory to store backups (default: './backups')"`
	IncludeEmbeddings bool           `json:"include_embeddings,omitempty" jsonschema:"default=false" jsonschema_description:"Whether to include embeddings in backup (default: false)"`
	IncludeCode       *bool          `json:"include_code,omitempty" jsonschema:"default=true" jsonschema_description:"Whether to back up the code collection alongside documentation (default: true)"`
	Filters           map[string]any `json:"filters,omitempty" jsonschema_description:"Optional Haystack filter dictionary to filter documents for backup"`
}

type restoreBackupArgs struct {
	BackupPath         string `json:"backup_path" jsonschema:"required" jsonschema_description:"Path to backup directory"`
	VerifyAfterRestore *bool  `json:"verify_after_restore,omitempty" jsonschema:"default=true" jsonschema_description:"Whether to verify documents after restore (default: true)"`
	DuplicateStrategy  string `json:"duplicate_strategy,omitempty" jsonschema:"enum=skip,enum=update,enum=error,default=skip" jsonschema_description:"How to handle duplicates: 'skip', 'update', or 'error'"`
}

type listBackupsArgs struct {
	BackupDirectory string `json:"backup_directory,omitempty" jsonschema:"default=./backups" jsonschema_description:"Directory containing backups (default: './backups')"`
}

type auditStorageIntegrityArgs struct {
	SourceDirectory string   `json:"source_directory,omitempty" jsonschema_description:"Optional source directory to compare against stored documents"`
	Recursive       *bool    `json:"recursive,omitempty" jsonschema:"default=true" jsonschema_description:"Whether to scan source directory recursively (default: true)"`
	FileExtensions  []string `json:"file_extensions,omitempty" jsonschema_description:"Optional list of file extensions to include (e.g., ['.md', '.txt'])"`
}
