// Package apperr defines the error kinds surfaced to API callers. Each kind
// has a stable code and HTTP status; wrapped causes stay server-side.
package apperr

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

// Kind classifies a failure for callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthHeaderMissing
	KindInvalidEntityID
	KindEntityNotFound
	KindEntityInactive
	KindAccessDenied
	KindInvalidCredentials
	KindFetch
	KindParse
	KindAnalysis
	KindRateLimited
	KindNotFound
	KindConflict
)

type kindInfo struct {
	code   string
	status int
}

var kinds = map[Kind]kindInfo{
	KindInternal:           {"INTERNAL_ERROR", http.StatusInternalServerError},
	KindValidation:         {"VALIDATION_ERROR", http.StatusBadRequest},
	KindAuthHeaderMissing:  {"AUTH_HEADER_MISSING", http.StatusUnauthorized},
	KindInvalidEntityID:    {"INVALID_ENTITY_ID", http.StatusBadRequest},
	KindEntityNotFound:     {"ENTITY_NOT_FOUND", http.StatusNotFound},
	KindEntityInactive:     {"ENTITY_INACTIVE", http.StatusForbidden},
	KindAccessDenied:       {"ACCESS_DENIED", http.StatusForbidden},
	KindInvalidCredentials: {"INVALID_CREDENTIALS", http.StatusUnauthorized},
	KindFetch:              {"FETCH_ERROR", http.StatusBadGateway},
	KindParse:              {"PARSE_ERROR", http.StatusUnprocessableEntity},
	KindAnalysis:           {"ANALYSIS_ERROR", http.StatusBadGateway},
	KindRateLimited:        {"RATE_LIMIT_ERROR", http.StatusTooManyRequests},
	KindNotFound:           {"NOT_FOUND", http.StatusNotFound},
	KindConflict:           {"CONFLICT", http.StatusConflict},
}

// Code returns the stable machine-readable code.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return kinds[KindInternal].code
}

// HTTPStatus returns the status code served for this kind.
func (k Kind) HTTPStatus() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string { return k.Code() }

// Error is a classified failure. Message is safe to show callers; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Kind.Code() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.Code() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with no underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message, Err: eris.New(message)}
}

// Wrap classifies err. A nil err yields nil. The cause is kept as-is so
// errors.As still reaches markers such as resilience.TransientError.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "An unexpected error occurred"
}
