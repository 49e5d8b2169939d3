package loom

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/catalog"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the engine configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrThreadNotFound is returned when a thread does not exist
	ErrThreadNotFound = errors.New("thread not found")

	// ErrUnknownModel is returned when a resolved model is not in the
	// catalog. Re-exported from the catalog package so callers can match
	// it without importing catalog.
	ErrUnknownModel = catalog.ErrUnknownModel

	// ErrContextOverflow marks the condition where even the single most
	// recent message exceeds the token budget. The engine surfaces this
	// via the Truncated flag on SendResult rather than failing the send;
	// the sentinel exists for callers that enforce a hard policy.
	ErrContextOverflow = errors.New("context overflow")

	// ErrEmptyContent is returned when a message has no content
	ErrEmptyContent = errors.New("message content is empty")
)

// ThreadError represents an error with thread context
type ThreadError struct {
	Op       string    // Operation that failed
	ThreadID uuid.UUID // Thread ID if applicable
	Err      error     // Underlying error
}

// Error implements the error interface
func (e *ThreadError) Error() string {
	if e.ThreadID != uuid.Nil {
		return fmt.Sprintf("%s (thread=%s): %v", e.Op, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ThreadError) Unwrap() error {
	return e.Err
}

// NewThreadError creates a new ThreadError
func NewThreadError(op string, threadID uuid.UUID, err error) *ThreadError {
	return &ThreadError{Op: op, ThreadID: threadID, Err: err}
}
