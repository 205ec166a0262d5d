package models

import (
	"fmt"
	"strings"
)

// Error codes used in API responses and internal error handling.
const (
	// Fatal kinds: these abort the extraction run.
	ErrCodeLoadTimeout   = "LOAD_TIMEOUT"
	ErrCodeBlocked       = "BLOCKED"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeTableNotFound = "TABLE_NOT_FOUND"
	ErrCodeBrowserCrash  = "BROWSER_CRASH"

	// API-level kinds.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
//
// Attempted is populated for TABLE_NOT_FOUND with the identifier variants
// that were tried, so the failure can be diagnosed without re-running.
type ExtractError struct {
	Code      string
	Message   string
	Attempted []string
	Err       error // wrapped original error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError creates a new ExtractError.
func NewExtractError(code, message string, err error) *ExtractError {
	return &ExtractError{Code: code, Message: message, Err: err}
}

// NewTableNotFound creates a TABLE_NOT_FOUND error carrying the identifier
// variants that were searched, in the order they were attempted.
func NewTableNotFound(attempted []string) *ExtractError {
	return &ExtractError{
		Code:      ErrCodeTableNotFound,
		Message:   fmt.Sprintf("no table matched identifiers [%s] in live DOM or comment-embedded markup", strings.Join(attempted, ", ")),
		Attempted: attempted,
	}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ExtractError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsExtractError coerces any error into an *ExtractError, wrapping unknown
// errors under INTERNAL_ERROR.
func AsExtractError(err error) *ExtractError {
	if ee, ok := err.(*ExtractError); ok {
		return ee
	}
	return NewExtractError(ErrCodeInternal, err.Error(), err)
}
