package helper

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// ErrDimensionMismatch is returned when two vectors of different lengths are
// compared.
var ErrDimensionMismatch = errors.New("vector dimensions do not match")

// Normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged instead of dividing by zero.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	norm := floats.Norm(out, 2)
	if norm == 0 {
		return out
	}
	floats.Scale(1/norm, out)
	return out
}

// CosineSimilarity computes the cosine of the angle between a and b.
// Returns 0 when either vector has zero norm.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return floats.Dot(a, b) / (na * nb), nil
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2].
func CosineDistance(a, b []float64) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Centroid returns the L2-normalized element-wise mean of the given vectors.
// An empty input yields the zero vector of length dim.
func Centroid(vectors [][]float64, dim int) []float64 {
	if len(vectors) == 0 {
		return make([]float64, dim)
	}
	sum := make([]float64, dim)
	for _, v := range vectors {
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(vectors)), sum)
	return Normalize(sum)
}
