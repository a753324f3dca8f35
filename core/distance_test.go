package core

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
		wantErr  bool
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{-1, 0, 0},
			expected: -1.0,
		},
		{
			name:    "different dimensions",
			a:       []float32{1, 0},
			b:       []float32{1, 0, 0},
			wantErr: true,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CosineSimilarity(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Errorf("CosineSimilarity() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(float64(result-tt.expected)) > 1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCalculateDistance(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}

	tests := []struct {
		space    Space
		expected float32
	}{
		{SpaceL2, 8},
		{"", 8},
		{SpaceIP, 1 - 11},
		{SpaceCosine, float32(1 - 11/(math.Sqrt(5)*math.Sqrt(25)))},
	}

	for _, tt := range tests {
		t.Run(string(tt.space), func(t *testing.T) {
			got, err := CalculateDistance(a, b, tt.space)
			if err != nil {
				t.Fatalf("CalculateDistance() error = %v", err)
			}
			if math.Abs(float64(got-tt.expected)) > 1e-5 {
				t.Errorf("CalculateDistance(%s) = %v, want %v", tt.space, got, tt.expected)
			}
		})
	}

	if _, err := CalculateDistance(a, b, "hamming"); !errors.Is(err, ErrInvalidSpace) {
		t.Errorf("expected ErrInvalidSpace, got %v", err)
	}
	if _, err := CalculateDistance(a, []float32{1}, SpaceL2); err == nil {
		t.Error("expected dimension error")
	}
}

func TestDistanceStaysFiniteForLargeComponents(t *testing.T) {
	a := []float32{3e38, 3e38}
	b := []float32{-3e38, -3e38}

	for _, space := range []Space{SpaceL2, SpaceCosine, SpaceIP} {
		t.Run(string(space), func(t *testing.T) {
			for _, pair := range [][2][]float32{{a, b}, {a, a}} {
				got, err := CalculateDistance(pair[0], pair[1], space)
				if err != nil {
					t.Fatalf("CalculateDistance() error = %v", err)
				}
				if math.IsInf(float64(got), 0) || math.IsNaN(float64(got)) {
					t.Errorf("CalculateDistance(%s) = %v, want a finite value", space, got)
				}
			}
		})
	}

	if got, _ := SquaredL2Distance(a, b); got != math.MaxFloat32 {
		t.Errorf("SquaredL2Distance() = %v, want %v", got, float32(math.MaxFloat32))
	}
	if got, _ := DotProduct(a, b); got != -math.MaxFloat32 {
		t.Errorf("DotProduct() = %v, want %v", got, float32(-math.MaxFloat32))
	}
}

func TestSpaceValid(t *testing.T) {
	for _, s := range []Space{SpaceL2, SpaceCosine, SpaceIP} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Space("euclidean").Valid() {
		t.Error("euclidean should not be valid")
	}
}

func BenchmarkCalculateDistance(b *testing.B) {
	a := make([]float32, 384)
	vec := make([]float32, 384)
	for i := range a {
		a[i] = float32(i) * 0.1
		vec[i] = float32(i+1) * 0.1
	}

	for _, space := range []Space{SpaceL2, SpaceCosine, SpaceIP} {
		b.Run(string(space), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = CalculateDistance(a, vec, space)
			}
		})
	}
}
