// Package app wires configuration into a ready query pipeline. It is shared
// by the HTTP server and the offline tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/config"
	"github.com/kailas-cloud/scisearch/internal/db/valkey"
	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/repository/corpus"
	embeddinguc "github.com/kailas-cloud/scisearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/scisearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/scisearch/internal/usecase/search"
)

// App holds the long-lived components of a serving process.
type App struct {
	Index   *ann.Index
	Corpus  corpus.Store
	Cache   *valkey.Store
	Encoder *embeddinguc.ValidatedEmbedder
	Search  *searchuc.Service
	Health  *healthuc.Service
}

// New loads the index and corpus, builds the encoder chain, optionally probes
// the encoder and assembles the search service. Any failure is a
// configuration fault and leaves nothing open.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Index, err = ann.Load(cfg.Index.Path, ann.LoadOptions{Mmap: cfg.Index.Mmap()})
	if err != nil {
		return nil, fmt.Errorf("load index: %w", mapLoadError(err))
	}
	st := a.Index.Stats()
	logger.Info("Index loaded",
		zap.String("path", cfg.Index.Path),
		zap.Int("items", st.Items),
		zap.Int("trees", st.Trees),
		zap.Int("dimensions", st.Dimensions),
		zap.Int64("bytes", st.Bytes),
		zap.Bool("mmapped", st.Mapped),
	)

	a.Corpus, err = corpus.Open(cfg.Corpus.Driver, cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	docs, err := a.Corpus.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("count corpus: %w", err)
	}
	if docs == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	logger.Info("Corpus opened",
		zap.String("driver", cfg.Corpus.Driver),
		zap.Int("documents", docs),
	)

	a.Cache, err = OpenCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	encCfg := cfg.Encoder
	encCfg.Dimensions = st.Dimensions
	if cfg.Encoder.Dimensions != st.Dimensions {
		logger.Warn("Encoder dimensions differ from index, using index",
			zap.Int("configured", cfg.Encoder.Dimensions),
			zap.Int("index", st.Dimensions),
		)
	}
	a.Encoder, err = NewEncoder(encCfg, EncoderOptions{
		Instruction: cfg.Encoder.QueryInstruction,
		Cache:       a.Cache,
		CacheTTL:    time.Duration(cfg.Cache.TTLSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Encoder.Probe() {
		if err := embeddinguc.Probe(ctx, a.Encoder, st.Dimensions); err != nil {
			return nil, err
		}
		logger.Info("Encoder probe passed", zap.Int("dimensions", st.Dimensions))
	}

	a.Search, err = searchuc.New(a.Index, a.Corpus, a.Encoder, searchuc.Params{
		TopK:           cfg.Search.TopK,
		DisplayN:       cfg.Search.DisplayN,
		Budget:         cfg.Search.SearchBudget(),
		MaxQueryLength: cfg.Search.MaxQueryLength,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create search service: %w", err)
	}

	components := []healthuc.Component{
		{Name: "index", Checker: healthuc.CheckerFunc(a.checkIndex), Critical: true},
		{Name: "corpus", Checker: a.Corpus, Critical: true},
		{Name: "encoder", Checker: a.Encoder},
	}
	if a.Cache != nil {
		components = append(components, healthuc.Component{Name: "cache", Checker: a.Cache})
	}
	a.Health = healthuc.New(components...)

	return a, nil
}

func (a *App) checkIndex(context.Context) error {
	if !a.Index.Loaded() {
		return domain.ErrIndexNotLoaded
	}
	return nil
}

// Close releases the mapped index, the corpus and the cache connection.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.Corpus != nil {
		errs = append(errs, a.Corpus.Close())
	}
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	return errors.Join(errs...)
}

func mapLoadError(err error) error {
	if errors.Is(err, ann.ErrCorrupt) {
		return fmt.Errorf("%w: %w", domain.ErrCorruptIndex, err)
	}
	return err
}
