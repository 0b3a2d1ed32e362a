package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest batch sent to the provider in one call.
const DefaultMaxAPIBatchSize = 256

// DefaultMaxConcurrency is the inference pool size when none is configured.
const DefaultMaxConcurrency = 4

// LimitedOptions configures the inference pool.
type LimitedOptions struct {
	// MaxConcurrency caps encoder calls in flight.
	MaxConcurrency int
	// RequestsPerSecond throttles calls; zero disables throttling.
	RequestsPerSecond float64
	// Burst is the limiter bucket size (default MaxConcurrency).
	Burst int
}

// LimitedEmbedder runs the inner encoder inside a bounded pool. Callers wait
// for a slot until their context expires, then get ErrEncoderOverloaded.
type LimitedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewLimitedEmbedder wraps an embedder with a concurrency pool, an optional
// rate limiter and observability.
func NewLimitedEmbedder(
	inner domain.Embedder, provider, model string,
	opts LimitedOptions, logger *zap.Logger,
) *LimitedEmbedder {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.MaxConcurrency
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return &LimitedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed waits for a pool slot, delegates to the inner embedder and logs the call.
func (p *LimitedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	defer release()

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits texts into provider-sized chunks; each chunk holds one pool slot.
func (p *LimitedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder without taking a pool slot.
func (p *LimitedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// acquire takes a pool slot and a limiter token. Failing to get either before
// ctx ends is reported as overload; the returned func frees the slot.
func (p *LimitedEmbedder) acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "overloaded").Inc()
		return nil, fmt.Errorf("%w: waiting for inference slot: %w", domain.ErrEncoderOverloaded, err)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.sem.Release(1)
			metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "rate_limited").Inc()
			return nil, fmt.Errorf("%w: rate limit: %w", domain.ErrEncoderOverloaded, err)
		}
	}

	inflight := metrics.EmbeddingInflight.WithLabelValues(p.provider)
	inflight.Inc()
	return func() {
		inflight.Dec()
		p.sem.Release(1)
	}, nil
}

func (p *LimitedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	allEmbeddings := make([][]float32, 0, len(texts))
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		end := min(offset+DefaultMaxAPIBatchSize, len(texts))
		chunk := texts[offset:end]

		chunkResult, err := p.embedInner(ctx, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(chunkResult.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: batch returned %d vectors for %d texts",
				domain.ErrEmbeddingProviderError, len(chunkResult.Embeddings), len(chunk))
		}

		allEmbeddings = append(allEmbeddings, chunkResult.Embeddings...)
		totalPrompt += chunkResult.PromptTokens
		totalTokens += chunkResult.TotalTokens
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   allEmbeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

func (p *LimitedEmbedder) embedInner(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	defer release()

	res, err := domain.BatchOrFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch: %w", err)
	}
	return res, nil
}
