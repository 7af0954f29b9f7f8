// Package errors defines the typed error taxonomy for memory operations so
// that callers can degrade gracefully instead of crashing on a generic error.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for memory operations.
type ErrorCode string

const (
	// ErrCodeEmbeddingUnavailable indicates the embedding provider is
	// unreachable or errored.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrCodeExtractionUnavailable indicates the fact extractor is unreachable.
	ErrCodeExtractionUnavailable ErrorCode = "EXTRACTION_UNAVAILABLE"
	// ErrCodeStoreUnavailable indicates a connection/query failure against the
	// vector store.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRecordNotFound indicates an operation named an unknown record id.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
)

// MemoryError represents a structured error for memory operations.
type MemoryError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *MemoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MemoryError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *MemoryError) GetCode() ErrorCode {
	return e.Code
}

// CodeOf returns the error code carried by err, or empty when err is not a
// MemoryError.
func CodeOf(err error) ErrorCode {
	var memErr *MemoryError
	if errors.As(err, &memErr) {
		return memErr.Code
	}
	return ""
}

// Convenience constructors for common error types.

// EmbeddingUnavailable creates an embedding unavailable error.
func EmbeddingUnavailable(msg string, cause error) *MemoryError {
	return &MemoryError{Code: ErrCodeEmbeddingUnavailable, Message: msg, Cause: cause}
}

// ExtractionUnavailable creates an extraction unavailable error.
func ExtractionUnavailable(msg string, cause error) *MemoryError {
	return &MemoryError{Code: ErrCodeExtractionUnavailable, Message: msg, Cause: cause}
}

// StoreUnavailable creates a store unavailable error.
func StoreUnavailable(msg string, cause error) *MemoryError {
	return &MemoryError{Code: ErrCodeStoreUnavailable, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *MemoryError {
	return &MemoryError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RecordNotFound creates a record not found error.
func RecordNotFound(id string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeRecordNotFound,
		Message: fmt.Sprintf("memory record not found: %s", id),
	}
}
