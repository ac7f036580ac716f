// Package errors provides custom error types for the SkillShield SDK.
// Remote collaborators (file fetchers, semantic providers, the rule store)
// classify their failures through these types so callers can decide
// whether to fail over, degrade, or give up.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// Base Error Types
// =============================================================================

// Error is the base error type for all SDK errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "fetch.FetchFiles")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindAuthentication
	KindNotFound
	KindRateLimit
	KindTimeout
	KindNetwork
	KindServer
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// =============================================================================
// API Error
// =============================================================================

// APIError represents an error returned by a remote HTTP API
// (GitHub, GitLab, or one of the semantic analysis providers).
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int `json:"status_code"`

	// Provider identifies the remote API ("github", "deepseek", ...)
	Provider string `json:"provider"`

	// Message is the error message from the API
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, http.StatusText(e.StatusCode), e.Message)
}

// =============================================================================
// Constructors
// =============================================================================

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op, then Message), error.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// New creates a new simple error.
func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// =============================================================================
// Error Checkers
// =============================================================================

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsAPIError checks if err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFoundError checks if the error is a not found error.
func IsNotFoundError(err error) bool {
	if GetKind(err) == KindNotFound {
		return true
	}
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsTimeoutError checks if the error is a timeout error.
func IsTimeoutError(err error) bool {
	return GetKind(err) == KindTimeout
}

// =============================================================================
// Common Errors
// =============================================================================

var (
	// ErrClosed is returned when an operation is attempted on a closed
	// engine or store. This is a programming error, not a retry target.
	ErrClosed = &Error{Kind: KindInternal, Message: "use after Close"}

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}

	// ErrInvalidRepoURL is returned for repository URLs the fetchers
	// do not understand.
	ErrInvalidRepoURL = &Error{Kind: KindInvalidInput, Message: "invalid repository URL"}
)
