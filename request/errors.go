// Package request assembles validated engine requests from decoded call
// parameters. Builders are pure: they never touch an engine handle.
package request

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError names the request constraint that was violated
type ValidationError struct {
	Constraint string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Constraint
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Constraint: fmt.Sprintf(format, args...)}
}
