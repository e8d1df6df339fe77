package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDim    = 512
	testWidth  = 256
	testHeight = 128
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	g := NewGenerator("", testDim, testWidth, testHeight)
	require.False(t, g.ModelLoaded())
	return g
}

func testTensor(fill func(i int) float32) []float32 {
	tensor := make([]float32, testWidth*testHeight)
	for i := range tensor {
		tensor[i] = fill(i)
	}
	return tensor
}

func TestEmbedDimensionAndNorm(t *testing.T) {
	g := testGenerator(t)
	tensor := testTensor(func(i int) float32 {
		if i%3 == 0 {
			return 1
		}
		return 0
	})

	vec, err := g.Embed(tensor)
	require.NoError(t, err)
	require.Len(t, vec, testDim)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestEmbedDeterministic(t *testing.T) {
	g := testGenerator(t)
	tensor := testTensor(func(i int) float32 {
		if i%7 == 0 {
			return 1
		}
		return 0
	})

	a, err := g.Embed(tensor)
	require.NoError(t, err)
	b, err := g.Embed(tensor)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedDistinctInputsDiffer(t *testing.T) {
	g := testGenerator(t)
	a, err := g.Embed(testTensor(func(i int) float32 {
		if i%2 == 0 {
			return 1
		}
		return 0
	}))
	require.NoError(t, err)
	b, err := g.Embed(testTensor(func(i int) float32 {
		if i%5 == 0 {
			return 1
		}
		return 0
	}))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEmbedRejectsWrongTensorSize(t *testing.T) {
	g := testGenerator(t)
	_, err := g.Embed(make([]float32, 10))
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestNewGeneratorMissingModelFallsBack(t *testing.T) {
	g := NewGenerator("/nonexistent/model.onnx", testDim, testWidth, testHeight)
	assert.False(t, g.ModelLoaded())

	// Degraded mode still embeds.
	vec, err := g.Embed(testTensor(func(int) float32 { return 0 }))
	require.NoError(t, err)
	assert.Len(t, vec, testDim)
}
