package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind categorizes an error for HTTP mapping and logging.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAccessDenied   Kind = "access_denied"
	KindNotFound       Kind = "not_found"
	KindRateLimit      Kind = "rate_limit"
	KindInvariant      Kind = "invariant"
	KindBackend        Kind = "backend"
)

// Machine-readable error codes carried in responses.
const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeProfileNotFound   = "PROFILE_NOT_FOUND"
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeLastOwner         = "LAST_OWNER"
	CodeNotAMember        = "NOT_A_MEMBER"
	CodeNoTenantAccess    = "NO_TENANT_ACCESS"
	CodeEmptyUpdate       = "EMPTY_UPDATE"
	CodeBackendError      = "BACKEND_ERROR"
)

// Error is the structured error surfaced by every service in this
// module. The wrapped cause is logged but never sent to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	// ResetAt is set for rate-limit errors only.
	ResetAt time.Time

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches a key/value detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying cause for logging.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindInvariant:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a malformed-input error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// FieldValidation builds a validation error carrying a field detail.
func FieldValidation(field, message string) *Error {
	return Validation(CodeValidationFailed, message).WithDetail("field", field)
}

// InvalidIdentifier flags a malformed id before it reaches storage.
func InvalidIdentifier(field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidIdentifier,
		Message: fmt.Sprintf("%s is not a well-formed identifier", field),
		Details: map[string]any{"field": field},
	}
}

// Authentication builds an unauthenticated error.
func Authentication(code, message string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: message}
}

// AuthRequired is the canonical "no session" error.
func AuthRequired() *Error {
	return Authentication(CodeAuthRequired, "authentication required")
}

// AccessDenied builds an insufficient-privilege error. The message is
// deliberately generic so a denial never reveals whether the resource
// exists.
func AccessDenied(message string) *Error {
	if message == "" {
		message = "access denied"
	}
	return &Error{Kind: KindAccessDenied, Code: CodeAccessDenied, Message: message}
}

// NotFound builds an entity-absent error.
func NotFound(entity string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
	}
}

// RateLimited builds a rate-limit error with a reset hint.
func RateLimited(resetAt time.Time) *Error {
	return &Error{
		Kind:    KindRateLimit,
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
		ResetAt: resetAt,
	}
}

// Invariant builds a business-invariant violation error.
func Invariant(code, message string) *Error {
	return &Error{Kind: KindInvariant, Code: code, Message: message}
}

// Backend wraps an unclassified backend failure. The cause is kept for
// logs; clients only ever see the generic message.
func Backend(err error) *Error {
	return &Error{
		Kind:    KindBackend,
		Code:    CodeBackendError,
		Message: "internal error",
		cause:   err,
	}
}

// Classify converts any error to a structured *Error. Already-typed
// errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Backend(err)
}

// IsKind reports whether err is a structured error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
