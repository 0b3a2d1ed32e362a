package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/scisearch/internal/domain"
)

// ValidatedEmbedder rejects vectors whose length is not the index dimension
// or that carry NaN or infinite components.
type ValidatedEmbedder struct {
	inner domain.Embedder
	dim   int
}

// NewValidatedEmbedder wraps inner with a dimension check against dim.
func NewValidatedEmbedder(inner domain.Embedder, dim int) *ValidatedEmbedder {
	return &ValidatedEmbedder{inner: inner, dim: dim}
}

// Dimensions returns the vector length every result is checked against.
func (v *ValidatedEmbedder) Dimensions() int { return v.dim }

// Embed delegates and checks the vector length and values.
func (v *ValidatedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := v.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // transparent decorator
	}
	if len(res.Embedding) != v.dim {
		return domain.EmbeddingResult{}, domain.NewDimensionError(v.dim, len(res.Embedding))
	}
	if err := checkFinite(res.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return res, nil
}

// BatchEmbed delegates and checks every vector.
func (v *ValidatedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := domain.BatchOrFallback(ctx, v.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // transparent decorator
	}
	if len(res.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d vectors for %d texts",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}
	for i, e := range res.Embeddings {
		if len(e) != v.dim {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", i, domain.NewDimensionError(v.dim, len(e)))
		}
		if err := checkFinite(e); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return res, nil
}

// checkFinite reports a provider fault for NaN or infinite components.
func checkFinite(vec []float32) error {
	for i, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w: component %d is %v", domain.ErrEmbeddingProviderError, i, f)
		}
	}
	return nil
}

// HealthCheck forwards to the inner embedder.
func (v *ValidatedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := v.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// probeText is embedded once at startup to learn the provider dimension.
const probeText = "probe"

// Probe embeds a short text and fails when the provider's vector length is not want.
func Probe(ctx context.Context, e domain.Embedder, want int) error {
	res, err := e.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("probe encoder: %w", err)
	}
	if got := len(res.Embedding); got != want {
		return fmt.Errorf("probe encoder: %w", domain.NewDimensionError(want, got))
	}
	return nil
}
