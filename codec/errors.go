// Package codec converts the text-encoded parameters of a host call into
// engine values and engine results back into JSON text.
package codec

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is matched by every decode failure in this package
var ErrMalformedInput = errors.New("malformed input")

var (
	ErrMalformedIdentifier = fmt.Errorf("%w: identifier", ErrMalformedInput)
	ErrMalformedMetadata   = fmt.Errorf("%w: metadata", ErrMalformedInput)
	ErrMalformedFilter     = fmt.Errorf("%w: filter", ErrMalformedInput)
	ErrMalformedConfig     = fmt.Errorf("%w: configuration", ErrMalformedInput)
	ErrMalformedArgument   = fmt.Errorf("%w: argument", ErrMalformedInput)
)

// ErrSerialization is returned when a result cannot be encoded. It is an
// internal failure, not a caller error.
var ErrSerialization = errors.New("serialization failed")
