package binding

import (
	"errors"

	"github.com/dshills/embedbridge/bridge"
	"github.com/dshills/embedbridge/codec"
	"github.com/dshills/embedbridge/request"
)

// Kind classifies a failed call for the host
type Kind string

const (
	KindMalformedInput Kind = "malformed_input"
	KindValidation     Kind = "validation"
	KindEngine         Kind = "engine"
	KindInit           Kind = "init"
	KindSerialization  Kind = "serialization"
	KindUnavailable    Kind = "unavailable"
)

var (
	// ErrHandleClosed is returned by calls on a handle that was torn down
	ErrHandleClosed = errors.New("engine handle is closed")

	// ErrPoisoned is returned by every call after an engine task panicked
	// while the handle was locked
	ErrPoisoned = errors.New("engine handle is poisoned by an earlier panic")
)

// Error is the shape every failed call takes on the foreign error channel
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error returns the diagnostic text passed to the host. Engine errors are
// passed through unchanged; other kinds carry a short prefix.
func (e *Error) Error() string {
	if prefix := e.prefix(); prefix != "" {
		return prefix + " " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) prefix() string {
	switch e.Kind {
	case KindMalformedInput:
		switch {
		case errors.Is(e.Err, codec.ErrMalformedIdentifier):
			return "UUID error:"
		case errors.Is(e.Err, codec.ErrMalformedMetadata):
			return "Metadata error:"
		case errors.Is(e.Err, codec.ErrMalformedFilter):
			return "Where error:"
		case errors.Is(e.Err, codec.ErrMalformedConfig):
			return "Config error:"
		}
		return "Request error:"
	case KindValidation:
		return "Request error:"
	case KindSerialization:
		return "Serialization error:"
	case KindInit:
		return "Init error:"
	}
	return ""
}

// KindOf classifies err. Errors that did not come from a call are engine
// errors.
func KindOf(err error) Kind {
	var berr *Error
	if errors.As(err, &berr) {
		return berr.Kind
	}
	switch {
	case errors.Is(err, codec.ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, request.ErrValidation):
		return KindValidation
	case errors.Is(err, codec.ErrSerialization):
		return KindSerialization
	case errors.Is(err, ErrHandleClosed), errors.Is(err, ErrPoisoned), errors.Is(err, bridge.ErrRuntimeClosed):
		return KindUnavailable
	}
	return KindEngine
}

func newError(op string, err error) *Error {
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}
