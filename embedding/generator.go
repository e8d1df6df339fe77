package embedding

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/jeloualonzo/amsuip-sub000/helper"
)

var logger = log.New(os.Stdout, "[embedding] ", log.LstdFlags)

// ErrEmbeddingFailed wraps model inference failures.
var ErrEmbeddingFailed = errors.New("embedding generation failed")

// Generator turns a preprocessed pixel tensor into a unit-norm embedding.
// When no ONNX model could be loaded it runs in a permanent degraded mode
// using a deterministic pseudo-embedding, which keeps the rest of the
// pipeline functional (and testable) without a model artifact.
type Generator struct {
	mu     sync.Mutex
	net    gocv.Net
	loaded bool
	dim    int
	width  int
	height int
}

// NewGenerator loads the ONNX model at modelPath once. A missing or broken
// model is not fatal; the generator falls back to pseudo-embeddings.
func NewGenerator(modelPath string, dim, width, height int) *Generator {
	g := &Generator{dim: dim, width: width, height: height}
	if modelPath == "" {
		logger.Println("no model path configured, using fallback embeddings")
		return g
	}
	if _, err := os.Stat(modelPath); err != nil {
		logger.Printf("model file %s not readable (%v), using fallback embeddings", modelPath, err)
		return g
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		logger.Printf("failed to load model %s, using fallback embeddings", modelPath)
		return g
	}
	g.net = net
	g.loaded = true
	logger.Printf("loaded embedding model from %s", modelPath)
	return g
}

// ModelLoaded reports whether real model inference is available. False means
// every embedding comes from the deterministic fallback and should be called
// out in health reporting.
func (g *Generator) ModelLoaded() bool {
	return g.loaded
}

// Dim returns the configured embedding dimension.
func (g *Generator) Dim() int {
	return g.dim
}

// Close releases the model handle.
func (g *Generator) Close() error {
	if g.loaded {
		g.loaded = false
		return g.net.Close()
	}
	return nil
}

// Embed maps a width*height binary tensor to a unit-norm vector of length
// Dim. The same tensor always yields the same vector on the fallback path.
func (g *Generator) Embed(tensor []float32) ([]float64, error) {
	if len(tensor) != g.width*g.height {
		return nil, fmt.Errorf("%w: tensor has %d values, want %d",
			ErrEmbeddingFailed, len(tensor), g.width*g.height)
	}
	if !g.loaded {
		return g.fallbackEmbedding(tensor), nil
	}
	return g.modelEmbedding(tensor)
}

func (g *Generator) modelEmbedding(tensor []float32) ([]float64, error) {
	// gocv nets are not safe for concurrent Forward calls; inference itself
	// is the only serialized section.
	g.mu.Lock()
	defer g.mu.Unlock()

	input := gocv.NewMatWithSizes([]int{1, 1, g.height, g.width}, gocv.MatTypeCV32F)
	defer input.Close()
	data, err := input.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	copy(data, tensor)

	g.net.SetInput(input, "")
	output := g.net.Forward("")
	defer output.Close()
	if output.Empty() {
		return nil, fmt.Errorf("%w: model returned no output", ErrEmbeddingFailed)
	}

	raw, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(raw) != g.dim {
		return nil, fmt.Errorf("%w: model output has %d values, want %d",
			ErrEmbeddingFailed, len(raw), g.dim)
	}
	vec := make([]float64, g.dim)
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return helper.Normalize(vec), nil
}

// fallbackEmbedding derives a deterministic pseudo-embedding from the tensor
// content: a rolling hash over the first values seeds a linear-congruential
// generator that fills the vector. Not semantically meaningful, but stable
// per image and distinct across images.
func (g *Generator) fallbackEmbedding(tensor []float32) []float64 {
	limit := len(tensor)
	if limit > 1000 {
		limit = 1000
	}
	var hash int32
	for i := 0; i < limit; i++ {
		hash = (hash << 5) - hash + int32(tensor[i]*255)
	}
	seed := int64(hash)
	if seed < 0 {
		seed = -seed
	}

	vec := make([]float64, g.dim)
	for i := range vec {
		seed = (seed*1103515245 + 12345) % 2147483648
		vec[i] = float64(seed)/2147483647*2 - 1
	}
	return helper.Normalize(vec)
}
