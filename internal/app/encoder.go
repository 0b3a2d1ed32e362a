package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/config"
	"github.com/kailas-cloud/scisearch/internal/db/valkey"
	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/metrics"
	"github.com/kailas-cloud/scisearch/internal/repository/embcache"
	"github.com/kailas-cloud/scisearch/internal/transport/hashing"
	openaiEmb "github.com/kailas-cloud/scisearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/scisearch/internal/usecase/embedding"
)

// EncoderOptions selects the parts of the chain that differ between callers.
type EncoderOptions struct {
	// Instruction is prefixed to every text. Queries use the configured
	// query instruction, documents use none.
	Instruction string
	// Cache is optional.
	Cache    *valkey.Store
	CacheTTL time.Duration
}

// NewEncoder assembles the decorator chain:
// provider -> Cached -> Limited -> Instruction -> Validated.
// Instruction sits above the cache so the cache key includes the prefix.
func NewEncoder(cfg config.EncoderConfig, opts EncoderOptions, logger *zap.Logger) (*embeddinguc.ValidatedEmbedder, error) {
	base, model, err := newProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	var embedder domain.Embedder = base
	if opts.Cache != nil {
		embedder = embcache.New(embedder, opts.Cache, model, opts.CacheTTL, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewLimitedEmbedder(embedder, cfg.Provider, model, embeddinguc.LimitedOptions{
		MaxConcurrency:    cfg.MaxConcurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, logger)

	if opts.Instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, opts.Instruction)
	}

	return embeddinguc.NewValidatedEmbedder(embedder, cfg.Dimensions), nil
}

func newProvider(cfg config.EncoderConfig, logger *zap.Logger) (domain.Embedder, string, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Dimensions:     cfg.Dimensions,
			SendDimensions: cfg.SendDimensions,
			Timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
			Provider:       cfg.Provider,
			Logger:         logger,
		}), cfg.Model, nil
	case config.ProviderHashing:
		e, err := hashing.New(cfg.Dimensions, cfg.HashSeed)
		if err != nil {
			return nil, "", fmt.Errorf("create hashing encoder: %w", err)
		}
		return e, fmt.Sprintf("hashing-%d-%d", cfg.Dimensions, cfg.HashSeed), nil
	default:
		return nil, "", fmt.Errorf("unknown encoder provider %q", cfg.Provider)
	}
}

// OpenCache connects to Valkey and waits until it answers. Returns nil when
// the cache is disabled.
func OpenCache(ctx context.Context, cfg config.CacheConfig) (*valkey.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := valkey.NewStore(valkey.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	return store, nil
}
