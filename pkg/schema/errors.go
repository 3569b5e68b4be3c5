package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
//
// The codec codes (invalid_json through invalid_edge) are part of the wire
// contract: every import entry point (clipboard paste, duplicate, file import)
// switches on them to produce a scenario-specific user message.
const (
	ErrCodeInvalidJSON  = "invalid_json"
	ErrCodeInvalidGraph = "invalid_graph"
	ErrCodeMissingNodes = "missing_nodes"
	ErrCodeInvalidNode  = "invalid_node"
	ErrCodeInvalidEdge  = "invalid_edge"

	ErrCodeValidation = "validation_error"
	ErrCodeExpression = "expression_error"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeStore      = "store_error"
	ErrCodeClipboard  = "clipboard_error"
	ErrCodeCanceled   = "canceled"
)

// EaselError is the structured error type for all easel operations.
type EaselError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Slug    string         `json:"slug,omitempty"`
	Cause   error          `json:"-"`
}

func (e *EaselError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.Slug, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EaselError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EaselError.
func NewError(code, message string) *EaselError {
	return &EaselError{Code: code, Message: message}
}

// NewErrorf creates a new EaselError with a formatted message.
func NewErrorf(code, format string, args ...any) *EaselError {
	return &EaselError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithSlug attaches the slug of the offending node to the error.
func (e *EaselError) WithSlug(slug string) *EaselError {
	e.Slug = slug
	return e
}

// WithCause attaches an underlying cause.
func (e *EaselError) WithCause(err error) *EaselError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *EaselError) WithDetails(details map[string]any) *EaselError {
	e.Details = details
	return e
}

// ErrorCode extracts the easel error code from err, or "" if no *EaselError
// is in its chain. Call sites use it to pick a user-facing message per
// scenario.
func ErrorCode(err error) string {
	var ee *EaselError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
