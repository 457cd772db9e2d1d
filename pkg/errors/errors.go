package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error class surfaced to API clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeUnavailable   Code = "SERVICE_UNAVAILABLE"

	// CodeFanoutIncomplete reports an order that was persisted but could not be
	// propagated to every seller's worklist.
	CodeFanoutIncomplete Code = "FANOUT_INCOMPLETE"
)

// Metadata describes how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// PublicMessage replaces the error's own message unless PassThrough is set.
	PublicMessage  string
	PassThrough    bool
	DetailsAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	passThrough
	withDetails
)

func describe(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		PassThrough:    flags&passThrough != 0,
		DetailsAllowed: flags&withDetails != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       describe(http.StatusBadRequest, "validation failed", passThrough|withDetails),
	CodeUnauthorized:     describe(http.StatusUnauthorized, "authentication required", passThrough),
	CodeForbidden:        describe(http.StatusForbidden, "access denied", passThrough),
	CodeNotFound:         describe(http.StatusNotFound, "resource not found", passThrough),
	CodeConflict:         describe(http.StatusBadRequest, "conflict detected", passThrough),
	CodeStateConflict:    describe(http.StatusBadRequest, "state transition disallowed", passThrough|withDetails),
	CodeIdempotency:      describe(http.StatusConflict, "idempotency key reused", passThrough|withDetails),
	CodeRateLimit:        describe(http.StatusTooManyRequests, "rate limit exceeded", passThrough),
	CodeInternal:         describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeUnavailable:      describe(http.StatusServiceUnavailable, "service unavailable", retryable|passThrough|withDetails),
	CodeFanoutIncomplete: describe(http.StatusInternalServerError, "order saved but seller propagation incomplete", retryable|passThrough|withDetails),
}

// MetadataFor returns the rendering rules for code. Unknown codes are treated
// as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional client-facing payload.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets the details payload and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// ClientMessage is the text safe to show to API callers.
func (e *Error) ClientMessage() string {
	meta := MetadataFor(e.Code())
	if meta.PassThrough && e.Message() != "" {
		return e.message
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
