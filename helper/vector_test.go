package helper

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUnitNorm(t *testing.T) {
	v := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, v)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []float64{2, 0}
	_ = Normalize(in)
	assert.Equal(t, []float64{2, 0}, in)
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := Normalize([]float64{1, 2, 3})
	sim, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	dist, err := CosineDistance(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, dist, 1e-9)
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.5, -1, 2}
	b := []float64{3, 0.25, -0.5}
	s1, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	s2, err := CosineSimilarity(b, a)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	sim, err := CosineSimilarity([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCentroidSingleVector(t *testing.T) {
	v := []float64{3, 4}
	c := Centroid([][]float64{v}, 2)
	assert.InDelta(t, 0.6, c[0], 1e-9)
	assert.InDelta(t, 0.8, c[1], 1e-9)
}

func TestCentroidEmpty(t *testing.T) {
	c := Centroid(nil, 4)
	assert.Equal(t, []float64{0, 0, 0, 0}, c)
}

func TestCentroidMean(t *testing.T) {
	c := Centroid([][]float64{{1, 0}, {0, 1}}, 2)
	// mean is (0.5, 0.5), normalized to (1/sqrt2, 1/sqrt2)
	assert.InDelta(t, 1/math.Sqrt2, c[0], 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, c[1], 1e-9)
}
