// Package errors defines the typed error taxonomy described in spec.md §7.
// Each error type implements Unwrap so callers can use errors.Is/errors.As
// against the underlying cause.
package errors

import (
	"fmt"
	"time"

	"github.com/standardbeagle/graphindex/internal/types"
)

// ErrorType classifies an error for metrics and log filtering.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeResolve    ErrorType = "resolve"
	ErrorTypeChunk      ErrorType = "chunk"
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeEmbedding  ErrorType = "embedding"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeWatcher    ErrorType = "watcher"
)

// ValidationError covers §7 "Input validation": invalid path, path escapes
// project root, unknown project handle.
type ValidationError struct {
	Field      string
	Value      string
	Underlying error
}

func NewValidationError(field, value string, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Underlying: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s=%q: %v", e.Field, e.Value, e.Underlying)
}

func (e *ValidationError) Unwrap() error { return e.Underlying }

// ParseError represents a single-file parse failure (§7 "Parse error").
// It never aborts the overall parse; the file simply contributes no nodes.
type ParseError struct {
	FilePath   string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

func NewParseError(path string, line, column int, err error) *ParseError {
	return &ParseError{FilePath: path, Line: line, Column: column, Underlying: err, Timestamp: time.Now()}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d:%d: %v", e.FilePath, e.Line, e.Column, e.Underlying)
}

func (e *ParseError) Unwrap() error { return e.Underlying }

// ChunkError represents a fatal chunk failure: worker timeout, memory
// overrun, or an AST-corrupting parse error (§4.7, §7). It is re-thrown from
// the coordinator and fails the overall parse.
type ChunkError struct {
	ChunkIndex int
	Files      []string
	Reason     string
	Underlying error
}

func NewChunkError(index int, files []string, reason string, err error) *ChunkError {
	return &ChunkError{ChunkIndex: index, Files: files, Reason: reason, Underlying: err}
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed (%s, %d files): %v", e.ChunkIndex, e.Reason, len(e.Files), e.Underlying)
}

func (e *ChunkError) Unwrap() error { return e.Underlying }

// StoreError represents a logical (non-transient) graph-store failure:
// query syntax, constraint violation, or timeout exhaustion after retries
// (§7 "Store logical"). It carries the batch index so the importer's caller
// can identify which write failed.
type StoreError struct {
	Operation  string
	BatchIndex int
	Underlying error
}

func NewStoreError(op string, batchIndex int, err error) *StoreError {
	return &StoreError{Operation: op, BatchIndex: batchIndex, Underlying: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed at batch %d: %v", e.Operation, e.BatchIndex, e.Underlying)
}

func (e *StoreError) Unwrap() error { return e.Underlying }

// EmbeddingError is propagated, never swallowed (§7 "Embedding error"): the
// importer surfaces it to the caller rather than silently skipping bodies.
type EmbeddingError struct {
	NodeCount  int
	Underlying error
}

func NewEmbeddingError(nodeCount int, err error) *EmbeddingError {
	return &EmbeddingError{NodeCount: nodeCount, Underlying: err}
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for batch of %d nodes: %v", e.NodeCount, e.Underlying)
}

func (e *EmbeddingError) Unwrap() error { return e.Underlying }

// ConfigError represents a configuration-load or validation failure.
type ConfigError struct {
	Field      string
	Underlying error
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Underlying: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %s: %v", e.Field, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// WatcherError marks the watcher's transition to the `error` state (§4.12,
// §7): self-cleanup attempts to unsubscribe and the next startWatching call
// recreates the subscription.
type WatcherError struct {
	ProjectID  types.ProjectID
	Underlying error
}

func NewWatcherError(projectID types.ProjectID, err error) *WatcherError {
	return &WatcherError{ProjectID: projectID, Underlying: err}
}

func (e *WatcherError) Error() string {
	return fmt.Sprintf("watcher error for project %s: %v", e.ProjectID, e.Underlying)
}

func (e *WatcherError) Unwrap() error { return e.Underlying }

// MultiError aggregates independent errors that don't abort the overall
// operation, e.g. per-file parse failures collected across a chunk.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %v", len(e.Errors), e.Errors[0])
}

func (e *MultiError) Unwrap() []error { return e.Errors }
