package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhana009/haystack/pkg/databases"
)

// Kind classifies pipeline failures. The set is closed; the tool
// boundary serializes the kind verbatim into the error envelope.
type Kind string

const (
	KindInvalidInput     Kind = "InvalidInput"
	KindInvalidMetadata  Kind = "InvalidMetadata"
	KindInvalidFilter    Kind = "InvalidFilter"
	KindNotFound         Kind = "NotFound"
	KindVectorMissing    Kind = "VectorMissing"
	KindIndexRequired    Kind = "IndexRequired"
	KindBackupCorrupted  Kind = "BackupCorrupted"
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindEmbedderFailed   Kind = "EmbedderFailed"
	KindChunkingFailed   Kind = "ChunkingFailed"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, string(e.Kind))
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by kind, so callers can test
// errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the classification of err, or "" when err carries no
// pipeline kind.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// NewError builds a classified Error. Packages layered above the
// pipeline (backup, server) use it to participate in the taxonomy.
func NewError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

func invalidMetadata(op string, err error) *Error {
	return &Error{Kind: KindInvalidMetadata, Op: op, Message: "metadata validation failed", Err: err}
}

func invalidFilter(op string, err error) *Error {
	return &Error{Kind: KindInvalidFilter, Op: op, Message: "invalid filter", Err: err}
}

func notFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func vectorMissing(op, pointID string) *Error {
	return &Error{Kind: KindVectorMissing, Op: op,
		Message: fmt.Sprintf("store returned no vector for point %s; refusing to write a zero vector", pointID)}
}

func backupCorrupted(op, format string, args ...any) *Error {
	return &Error{Kind: KindBackupCorrupted, Op: op, Message: fmt.Sprintf(format, args...)}
}

func embedderFailed(op string, err error) *Error {
	return &Error{Kind: KindEmbedderFailed, Op: op, Message: "embedding failed", Err: err}
}

func chunkingFailed(op string, err error) *Error {
	return &Error{Kind: KindChunkingFailed, Op: op, Message: "chunking produced no chunks", Err: err}
}

// storeFailed maps a store adapter failure onto the pipeline taxonomy.
// Unclassified store errors surface as StoreUnavailable: from the
// pipeline's view the call did not complete.
func storeFailed(op string, err error) *Error {
	kind := KindStoreUnavailable
	switch databases.KindOf(err) {
	case databases.KindNotFound:
		kind = KindNotFound
	case databases.KindIndexRequired:
		kind = KindIndexRequired
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// wrapStoreErr classifies a store failure but lets context cancellation
// pass through unwrapped.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return storeFailed(op, err)
}

// Result is the envelope returned by single-document operations. JSON
// field names follow the tool surface; zero fields are omitted.
type Result struct {
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	PointID     string   `json:"document_id,omitempty"`
	DocID       string   `json:"doc_id,omitempty"`
	Category    string   `json:"category,omitempty"`
	Version     string   `json:"version,omitempty"`
	Action      string   `json:"action,omitempty"`
	Level       int      `json:"duplicate_level,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Existing    string   `json:"existing_document_id,omitempty"`
	FilePath    string   `json:"file_path,omitempty"`
	Language    string   `json:"language,omitempty"`
	ChunksTotal int      `json:"total_chunks,omitempty"`
	Updated     []string `json:"updated_fields,omitempty"`
}

// ItemError is one failed item inside a bulk operation.
type ItemError struct {
	ID    string `json:"id,omitempty"`
	DocID string `json:"doc_id,omitempty"`
	Error string `json:"error"`
}

// BulkResult reports a bulk operation. Counts quantify partial
// progress precisely; Errors carries the items that failed.
type BulkResult struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Deleted  int         `json:"deleted_count,omitempty"`
	Updated  int         `json:"updated_count,omitempty"`
	Imported int         `json:"imported_count,omitempty"`
	Skipped  int         `json:"skipped_count,omitempty"`
	Total    int         `json:"total_processed,omitempty"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// finalize sets Status from the counts: success when at least one item
// succeeded or nothing failed, error when every item failed.
func (b *BulkResult) finalize() {
	succeeded := b.Deleted + b.Updated + b.Imported + b.Skipped
	if len(b.Errors) > 0 && succeeded == 0 {
		b.Status = "error"
		return
	}
	b.Status = "success"
}
