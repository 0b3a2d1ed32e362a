// Package hashing is a model-free encoder: word unigrams and bigrams are
// feature-hashed into a fixed-size signed vector and L2-normalized.
//
// Texts that share vocabulary land close together under angular distance,
// which is enough to exercise the whole search pipeline without a model server.
package hashing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/scisearch/internal/domain"
)

// DefaultDimensions matches the SciBERT output width.
const DefaultDimensions = 768

// Embedder implements domain.Embedder and domain.BatchEmbedder.
type Embedder struct {
	dim  int
	seed uint64
}

// New returns an encoder producing dim-length vectors. Different seeds give
// unrelated embeddings for the same text.
func New(dim int, seed uint64) (*Embedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hashing: dimensions must be positive, got %d", dim)
	}
	return &Embedder{dim: dim, seed: seed}, nil
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed hashes text into a unit vector. Text without tokens yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	vec, tokens := e.encode(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: tokens, TotalTokens: tokens}, nil
}

// BatchEmbed encodes every text locally.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		vec, tokens := e.encode(text)
		out.Embeddings[i] = vec
		out.PromptTokens += tokens
		out.TotalTokens += tokens
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) encode(text string) ([]float32, int) {
	vec := make([]float32, e.dim)
	words := strings.Fields(text)
	for i, w := range words {
		e.add(vec, w, 1)
		if i > 0 {
			// bigrams weigh less so shared vocabulary dominates
			e.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, len(words)
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, len(words)
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	d := xxhash.New()
	var seed [8]byte
	for i := range seed {
		seed[i] = byte(e.seed >> (8 * i))
	}
	_, _ = d.Write(seed[:])
	_, _ = d.WriteString(feature)
	h := d.Sum64()

	bucket := h % uint64(e.dim)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
