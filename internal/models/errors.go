package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestionFailure marks a single book that could not be extracted or chunked.
	ErrIngestionFailure = errors.New("ingestion failure")
	// ErrVersionMismatch means the index was built by a different embedder.
	ErrVersionMismatch = errors.New("index embedding version mismatch")
	// ErrCorruptIndex means the persisted index artifacts are inconsistent.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrInvalidParameter means a request parameter was rejected before any work.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrBuildInProgress means another build or add holds the index lock.
	ErrBuildInProgress = errors.New("index build in progress")
	// ErrIndexNotFound means no persisted index exists for the embedder version.
	ErrIndexNotFound = errors.New("index not found")
	// ErrUnknownConcept means a concept name is not in the concept table.
	ErrUnknownConcept = errors.New("unknown concept")
	// ErrBookNotFound means no book with the given id is stored.
	ErrBookNotFound = errors.New("book not found")
)

// IngestionFailure describes why one book was skipped during ingestion.
type IngestionFailure struct {
	BookID string
	Reason string
	Err    error
}

func (e *IngestionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.BookID, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", e.BookID, e.Reason)
}

// Is reports ErrIngestionFailure so callers can match with errors.Is.
func (e *IngestionFailure) Is(target error) bool {
	return target == ErrIngestionFailure
}

func (e *IngestionFailure) Unwrap() error {
	return e.Err
}

// ParamError names the request field that failed validation.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// Is reports ErrInvalidParameter so callers can match with errors.Is.
func (e *ParamError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// UnknownConceptError carries close matches for a concept name that is not known.
type UnknownConceptError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownConceptError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown concept %q", e.Name)
	}
	return fmt.Sprintf("unknown concept %q (did you mean: %v)", e.Name, e.Suggestions)
}

func (e *UnknownConceptError) Is(target error) bool {
	return target == ErrUnknownConcept
}
