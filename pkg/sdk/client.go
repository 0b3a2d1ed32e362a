package scisearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
	"github.com/kailas-cloud/scisearch/internal/repository/corpus"
	embeddinguc "github.com/kailas-cloud/scisearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/scisearch/internal/usecase/search"
)

// searchUseCase is the internal interface for queries.
type searchUseCase interface {
	Search(ctx context.Context, raw string) ([]result.Result, error)
}

// Hit is one ranked abstract.
type Hit struct {
	ID         int64
	Title      string
	Abstract   string
	URL        string
	Distance   float64
	Similarity float64
}

// Client is the scisearch SDK entry point. It is safe for concurrent use.
type Client struct {
	index     *ann.Index
	corpus    corpus.Store
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New is an alias for Open.
func New(ctx context.Context, opts ...Option) (*Client, error) { return Open(ctx, opts...) }

// Open loads the index and corpus and wires the query pipeline.
// The context bounds the corpus size check.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{budget: ann.Unbounded}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.indexPath == "" {
		return nil, errors.New("scisearch: index path required (use WithIndex)")
	}
	if cfg.corpusPath == "" {
		return nil, errors.New("scisearch: corpus required (use WithCSVCorpus or WithSQLiteCorpus)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("scisearch: embedder required (use WithEmbedder)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	idx, err := ann.Load(cfg.indexPath, ann.LoadOptions{Mmap: !cfg.noMmap})
	if err != nil {
		if errors.Is(err, ann.ErrCorrupt) {
			return nil, fmt.Errorf("scisearch: %w: %w", domain.ErrCorruptIndex, err)
		}
		return nil, fmt.Errorf("scisearch: %w", err)
	}

	store, err := corpus.Open(cfg.corpusDriver, cfg.corpusPath)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("scisearch: open corpus: %w", err)
	}

	c, err := wireClient(ctx, idx, store, cfg, obs)
	if err != nil {
		_ = store.Close()
		_ = idx.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(
	ctx context.Context, idx *ann.Index, store corpus.Store, cfg *clientConfig, obs *observer,
) (*Client, error) {
	n, err := store.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("scisearch: count corpus: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("scisearch: %w", domain.ErrEmptyCorpus)
	}

	var emb domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	emb = embeddinguc.NewLimitedEmbedder(emb, "sdk", "custom", embeddinguc.LimitedOptions{
		MaxConcurrency: cfg.maxConcurrency,
	}, zap.NewNop())
	validated := embeddinguc.NewValidatedEmbedder(emb, idx.Dimensions())

	searchSvc, err := searchuc.New(idx, store, validated, searchuc.Params{
		TopK:     cfg.topK,
		DisplayN: cfg.displayN,
		Budget:   cfg.budget,
	}, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("scisearch: %w", err)
	}

	healthSvc := healthuc.New(
		healthuc.Component{Name: "index", Checker: healthuc.CheckerFunc(func(context.Context) error {
			if !idx.Loaded() {
				return domain.ErrIndexNotLoaded
			}
			return nil
		}), Critical: true},
		healthuc.Component{Name: "corpus", Checker: store, Critical: true},
	)

	return &Client{
		index:     idx,
		corpus:    store,
		searchSvc: searchSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

// Close releases the mapped index and the corpus.
func (c *Client) Close() error {
	var errs []error
	if c.corpus != nil {
		errs = append(errs, c.corpus.Close())
	}
	if c.index != nil {
		errs = append(errs, c.index.Close())
	}
	return errors.Join(errs...)
}

// Search returns the abstracts most similar to query, best first.
func (c *Client) Search(ctx context.Context, query string) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	results, err := c.searchSvc.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits = make([]Hit, len(results))
	for i := range results {
		r := &results[i]
		hits[i] = Hit{
			ID:         r.DocumentID(),
			Title:      r.Title(),
			Abstract:   r.Abstract(),
			URL:        r.URL(),
			Distance:   r.Distance(),
			Similarity: r.Similarity(),
		}
	}
	return hits, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
