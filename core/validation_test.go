package core

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestValidateEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		wantErr   bool
	}{
		{"valid embedding", []float32{1.0, 2.0, 3.0}, false},
		{"empty values", []float32{}, true},
		{"NaN value", []float32{1.0, float32(math.NaN()), 3.0}, true},
		{"infinite value", []float32{1.0, float32(math.Inf(1)), 3.0}, true},
		{"negative infinity", []float32{float32(math.Inf(-1))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbedding(tt.embedding)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmbedding() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEmbedding) {
				t.Errorf("expected ErrInvalidEmbedding, got %v", err)
			}
		})
	}
}

func TestValidateDimension(t *testing.T) {
	three := 3
	if err := ValidateDimension([]float32{1, 2}, nil); err != nil {
		t.Errorf("unset dimension should accept any length: %v", err)
	}
	if err := ValidateDimension([]float32{1, 2, 3}, &three); err != nil {
		t.Errorf("matching dimension rejected: %v", err)
	}
	if err := ValidateDimension([]float32{1, 2}, &three); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "docs", false},
		{"with separators", "my-docs_v1.2", false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
		{"invalid character", "my docs", true},
		{"leading period", ".docs", true},
		{"trailing dash", "docs-", true},
		{"double period", "my..docs", true},
		{"ipv4 address", "192.168.1.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("collection", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
