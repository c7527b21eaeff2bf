package types

import (
	"context"
	"errors"
)

// Kind classifies a resolution failure
type Kind int

const (
	KindUnknown   Kind = iota
	KindFetch          // feed unreachable or non-2xx
	KindNotFound       // currency absent from the feed for the date
	KindParse          // malformed numeric or structural field
	KindCache          // cache backend read / write failure
	KindBroker         // queue connection / channel failure
	KindDecode         // malformed queue message
	KindTimedOut       // no message within the total allowed wait
	KindCancelled      // caller cancelled while awaiting delivery
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindNotFound:
		return "not_found"
	case KindParse:
		return "parse"
	case KindCache:
		return "cache"
	case KindBroker:
		return "broker"
	case KindDecode:
		return "decode"
	case KindTimedOut:
		return "timed_out"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind
var (
	ErrFetch     = &Error{Kind: KindFetch}
	ErrNotFound  = &Error{Kind: KindNotFound}
	ErrParse     = &Error{Kind: KindParse}
	ErrCache     = &Error{Kind: KindCache}
	ErrBroker    = &Error{Kind: KindBroker}
	ErrDecode    = &Error{Kind: KindDecode}
	ErrTimedOut  = &Error{Kind: KindTimedOut}
	ErrCancelled = &Error{Kind: KindCancelled}
)

// Error is a classified failure
type Error struct {
	Err    error  // underlying cause, if any
	Detail string // human-readable detail
	Kind   Kind
}

// NewError creates a new classified error
func NewError(kind Kind, detail string, cause error) *Error {
	return &Error{
		Kind:   kind,
		Detail: detail,
		Err:    cause,
	}
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf returns the kind of the given error, if classified
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	return KindUnknown
}

// AsError returns the typed error found in the chain,
// classifying context errors and wrapping anything else as unknown
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimedOut, "deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewError(KindCancelled, "operation cancelled", err)
	default:
		return NewError(KindUnknown, "", err)
	}
}
