package core

import (
	"fmt"
	"math"
	"net"
	"strings"
)

// Name length limits for collections and databases
const (
	MinNameLength = 3
	MaxNameLength = 512
)

// ValidateEmbedding checks that an embedding is non-empty and finite
func ValidateEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding cannot be empty", ErrInvalidEmbedding)
	}

	for i, val := range embedding {
		if isNaN(val) {
			return fmt.Errorf("%w: embedding contains NaN at index %d", ErrInvalidEmbedding, i)
		}
		if isInf(val) {
			return fmt.Errorf("%w: embedding contains infinite value at index %d", ErrInvalidEmbedding, i)
		}
	}
	return nil
}

// ValidateDimension checks an embedding against a collection dimension.
// A nil dimension accepts any length.
func ValidateDimension(embedding []float32, dimension *int) error {
	if dimension == nil || len(embedding) == *dimension {
		return nil
	}
	return fmt.Errorf("%w: collection expecting embedding with dimension of %d, got %d",
		ErrDimensionMismatch, *dimension, len(embedding))
}

// ValidateName checks a collection or database name. Names are 3 to 512
// characters of [a-zA-Z0-9._-], start and end with an alphanumeric, do
// not contain "..", and are not IPv4 addresses.
func ValidateName(kind, name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return fmt.Errorf("%s name %q must be between %d and %d characters", kind, name, MinNameLength, MaxNameLength)
	}

	for _, r := range name {
		if !isAlnum(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%s name %q contains invalid character %q", kind, name, r)
		}
	}

	if !isAlnum(rune(name[0])) || !isAlnum(rune(name[len(name)-1])) {
		return fmt.Errorf("%s name %q must start and end with an alphanumeric character", kind, name)
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("%s name %q cannot contain two consecutive periods", kind, name)
	}

	if ip := net.ParseIP(name); ip != nil && ip.To4() != nil && !strings.Contains(name, ":") {
		return fmt.Errorf("%s name %q cannot be a valid IPv4 address", kind, name)
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isNaN(f float32) bool {
	return f != f
}

func isInf(f float32) bool {
	return math.IsInf(float64(f), 0)
}
