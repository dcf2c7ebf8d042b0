package domain

import (
	"errors"
	"fmt"
)

// Kind classifies assistant failures. The web layer maps each kind to a
// transport status; nothing below it knows about HTTP.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindQuotaExceeded
	KindRefusal
	KindServiceUnavailable
	KindConnectionFailed
	KindTimeout
	KindEmptyResponse
	KindDecode
	KindSchemaMismatch
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindRefusal:
		return "refusal"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindConnectionFailed:
		return "connection_failed"
	case KindTimeout:
		return "timeout"
	case KindEmptyResponse:
		return "empty_response"
	case KindDecode:
		return "decode_error"
	case KindSchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// Error is the typed error raised by the assistant pipeline. Detail is safe
// to show to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrQuotaExceeded      = &Error{Kind: KindQuotaExceeded}
	ErrRefusal            = &Error{Kind: KindRefusal}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrConnectionFailed   = &Error{Kind: KindConnectionFailed}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrEmptyResponse      = &Error{Kind: KindEmptyResponse}
	ErrDecode             = &Error{Kind: KindDecode}
	ErrSchemaMismatch     = &Error{Kind: KindSchemaMismatch}
)

func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func WrapError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel (or any *Error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailOf returns the caller-facing detail of the first *Error in err's chain.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
