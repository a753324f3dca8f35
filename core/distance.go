package core

import (
	"fmt"
	"math"
)

// Space is the distance function of a collection
type Space string

const (
	SpaceL2     Space = "l2"
	SpaceCosine Space = "cosine"
	SpaceIP     Space = "ip"
)

// Valid reports whether s is a supported space
func (s Space) Valid() bool {
	switch s {
	case SpaceL2, SpaceCosine, SpaceIP:
		return true
	}
	return false
}

// SquaredL2Distance calculates the squared euclidean distance
func SquaredL2Distance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return toFloat32(sum), nil
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// CosineDistance calculates 1 - cosine similarity
func CosineDistance(a, b []float32) (float32, error) {
	similarity, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - similarity, nil
}

// DotProduct calculates the dot product between two vectors
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}

	return toFloat32(dotProduct(a, b)), nil
}

func dotProduct(a, b []float32) float64 {
	var product float64
	for i := range a {
		product += float64(a[i]) * float64(b[i])
	}
	return product
}

// InnerProductDistance calculates 1 - dot product
func InnerProductDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}
	return toFloat32(1 - dotProduct(a, b)), nil
}

// toFloat32 narrows v, saturating at the float32 range so finite inputs
// always give finite distances
func toFloat32(v float64) float32 {
	switch {
	case v > math.MaxFloat32:
		return math.MaxFloat32
	case v < -math.MaxFloat32:
		return -math.MaxFloat32
	}
	return float32(v)
}

// CalculateDistance calculates distance in the given space. Lower values
// are closer in every space.
func CalculateDistance(a, b []float32, space Space) (float32, error) {
	switch space {
	case SpaceL2, "":
		return SquaredL2Distance(a, b)
	case SpaceCosine:
		return CosineDistance(a, b)
	case SpaceIP:
		return InnerProductDistance(a, b)
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidSpace, space)
	}
}
