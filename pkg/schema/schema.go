// Package schema defines the metadata vocabulary shared across the
// indexing pipeline: valid categories, sources and statuses, required
// and volatile fields, the payload fields that must carry keyword
// indexes, and the language table used for code ingestion.
package schema

import "time"

// Document categories.
const (
	CategoryUserRule       = "user_rule"
	CategoryProjectRule    = "project_rule"
	CategoryProjectCommand = "project_command"
	CategoryDesignDoc      = "design_doc"
	CategoryDebugSummary   = "debug_summary"
	CategoryTestPattern    = "test_pattern"
	CategoryOther          = "other"
)

// Document sources.
const (
	SourceManual    = "manual"
	SourceGenerated = "generated"
	SourceImported  = "imported"
)

// Document statuses.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
	StatusDraft      = "draft"
)

// Defaults applied when the caller omits a field.
const (
	DefaultRepo     = "qdrant_haystack"
	DefaultSource   = SourceManual
	DefaultStatus   = StatusActive
	DefaultCategory = CategoryOther
)

// TimestampFormat renders UTC instants with microsecond precision and a
// literal Z suffix, the format stored in version/created_at/updated_at.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// NowUTC returns the current UTC time in TimestampFormat.
func NowUTC() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// ValidCategories lists the accepted category values.
var ValidCategories = []string{
	CategoryUserRule,
	CategoryProjectRule,
	CategoryProjectCommand,
	CategoryDesignDoc,
	CategoryDebugSummary,
	CategoryTestPattern,
	CategoryOther,
}

// ValidSources lists the accepted source values.
var ValidSources = []string{SourceManual, SourceGenerated, SourceImported}

// ValidStatuses lists the accepted status values.
var ValidStatuses = []string{StatusActive, StatusDeprecated, StatusDraft}

// RuleCategories are the categories whose documents are expected to
// carry a file_path.
var RuleCategories = []string{
	CategoryUserRule,
	CategoryProjectRule,
	CategoryProjectCommand,
}

// RequiredFields must be present and non-empty in every stored record's
// metadata.
var RequiredFields = []string{"doc_id", "version", "category", "hash_content"}

// MinContentLength is the quality floor for stored content, in
// characters.
const MinContentLength = 100

// PlaceholderPatterns are case-insensitive regular expressions that
// match markers of incomplete content.
var PlaceholderPatterns = []string{
	`\[Full content from file\.\.\.\]`,
	`\[Full content\.\.\.\]`,
	`\[\.\.\.\]`,
	`\[TODO:.*?\]`,
	`\[TBD:.*?\]`,
	`\[PLACEHOLDER:.*?\]`,
	`\[WRITE HERE\]`,
	`\[CONTENT TO BE ADDED\]`,
	`placeholder`,
	`will be stored`,
	`content will be`,
	`to be filled`,
	`to be added`,
	`to be completed`,
}

// VolatileFields are excluded from the metadata hash so that lifecycle
// churn does not change a document's identity.
var VolatileFields = []string{"created_at", "updated_at", "status", "version"}

// IndexedFields are the payload fields that need keyword indexes before
// filtered scroll, delete and count operations work against the store.
var IndexedFields = []string{
	"meta.doc_id",
	"meta.category",
	"meta.status",
	"meta.repo",
	"meta.version",
	"meta.file_path",
	"meta.hash_content",
	"meta.content_hash",
	"meta.metadata_hash",
}

// ChunkFields are the chunk bookkeeping keys. They are never copied
// from a parent document into its chunks.
var ChunkFields = []string{
	"chunk_id", "chunk_index", "parent_doc_id", "is_chunk", "total_chunks",
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidCategory reports whether s is an accepted category.
func IsValidCategory(s string) bool { return contains(ValidCategories, s) }

// IsValidSource reports whether s is an accepted source.
func IsValidSource(s string) bool { return contains(ValidSources, s) }

// IsValidStatus reports whether s is an accepted status.
func IsValidStatus(s string) bool { return contains(ValidStatuses, s) }

// IsRuleCategory reports whether documents of this category should
// carry a file_path.
func IsRuleCategory(s string) bool { return contains(RuleCategories, s) }

// LanguageByExtension maps file extensions to programming language
// names for code ingestion.
var LanguageByExtension = map[string]string{
	".py":     "python",
	".js":     "javascript",
	".ts":     "typescript",
	".jsx":    "javascript",
	".tsx":    "typescript",
	".java":   "java",
	".cpp":    "cpp",
	".c":      "c",
	".h":      "c",
	".hpp":    "cpp",
	".go":     "go",
	".rs":     "rust",
	".rb":     "ruby",
	".php":    "php",
	".swift":  "swift",
	".kt":     "kotlin",
	".scala":  "scala",
	".r":      "r",
	".m":      "matlab",
	".sql":    "sql",
	".sh":     "bash",
	".bash":   "bash",
	".zsh":    "zsh",
	".ps1":    "powershell",
	".yaml":   "yaml",
	".yml":    "yaml",
	".json":   "json",
	".xml":    "xml",
	".html":   "html",
	".css":    "css",
	".scss":   "scss",
	".less":   "less",
	".vue":    "vue",
	".svelte": "svelte",
}

// DetectLanguage returns the language for a file extension, or
// "unknown" when the extension is not recognized.
func DetectLanguage(ext string) string {
	if lang, ok := LanguageByExtension[ext]; ok {
		return lang
	}
	return "unknown"
}

// DefaultCodeExtensions is the extension set scanned by directory
// ingestion when the caller does not narrow it.
var DefaultCodeExtensions = []string{
	".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".cpp", ".c", ".h", ".hpp",
	".go", ".rs", ".rb", ".php", ".swift", ".kt", ".scala", ".r", ".m", ".sql",
	".sh", ".bash", ".yaml", ".yml", ".json", ".xml", ".html", ".css", ".scss",
	".less", ".vue", ".svelte", ".ps1",
}

// DefaultExcludePatterns are path substrings skipped during directory
// ingestion.
var DefaultExcludePatterns = []string{
	"__pycache__", "node_modules", ".git", ".venv", "venv", "env", ".env",
	"dist", "build", ".pytest_cache", ".mypy_cache",
}
