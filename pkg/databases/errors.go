package databases

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies store failures so the pipeline can map them to
// its own error taxonomy without inspecting gRPC details.
type ErrorKind string

const (
	KindUnavailable   ErrorKind = "unavailable"
	KindNotFound      ErrorKind = "not_found"
	KindIndexRequired ErrorKind = "index_required"
	KindInternal      ErrorKind = "internal"
)

// StoreError wraps a provider failure with the operation that raised
// it and its classification.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapErr classifies and wraps a provider error. Nil stays nil.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Kind: classify(err), Err: err}
}

// classify maps gRPC status codes onto error kinds. A failed
// precondition or invalid argument that mentions an index means a
// filtered operation hit an unindexed payload field.
func classify(err error) ErrorKind {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return KindUnavailable
	case codes.NotFound:
		return KindNotFound
	case codes.FailedPrecondition, codes.InvalidArgument:
		if strings.Contains(strings.ToLower(err.Error()), "index") {
			return KindIndexRequired
		}
		return KindInternal
	default:
		return KindInternal
	}
}

// KindOf returns the classification of err, or KindInternal when err
// is not a StoreError.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsIndexRequired(err error) bool {
	return KindOf(err) == KindIndexRequired
}
