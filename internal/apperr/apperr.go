// Package apperr defines the error kinds surfaced to HTTP callers.
package apperr

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindUnsafeContent    Kind = "unsafe_content"
	KindDecode           Kind = "decode_error"
	KindModelUnavailable Kind = "model_unavailable"
	KindUnauthorized     Kind = "ms_token_invalid_or_expired"
	KindNotAuthenticated Kind = "ms_not_authenticated"
	KindNotFound         Kind = "not_found"
	KindExecutionFailed  Kind = "execution_failed"
	KindUnknownAction    Kind = "unknown_action"
	KindGraph            Kind = "graph_error"
	KindInternal         Kind = "internal_error"

	KindInvalidState       Kind = "invalid_state"
	KindMissingCode        Kind = "missing_code"
	KindTokenExchange      Kind = "token_exchange_failed"
	KindProvider           Kind = "provider_error"
	KindMissingCredentials Kind = "missing_credentials"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthenticated    Kind = "unauthenticated"
	KindConflict           Kind = "conflict"
)

// Status returns the HTTP status a kind maps to.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindUnsafeContent, KindDecode, KindUnknownAction,
		KindInvalidState, KindMissingCode, KindTokenExchange, KindProvider, KindMissingCredentials:
		return http.StatusBadRequest
	case KindUnauthorized, KindNotAuthenticated, KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindModelUnavailable, KindExecutionFailed, KindGraph:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind, a human message and optional upstream context.
type Error struct {
	Kind    Kind
	Message string
	// Upstream HTTP status, zero when the failure was local.
	Upstream int
	Detail   string
	Plan     any
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error around cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithPlan annotates err with the attempted plan. Non-apperr errors become internal errors.
func WithPlan(err error, plan any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Plan = plan
		return &cp
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Plan: plan, Cause: err}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns err's kind, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Truncate shortens upstream bodies before they are exposed to callers.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}
