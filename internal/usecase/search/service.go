package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
	"github.com/kailas-cloud/scisearch/internal/logger"
	"github.com/kailas-cloud/scisearch/internal/metrics"
	"github.com/kailas-cloud/scisearch/internal/textnorm"
)

// Defaults for Params.
const (
	DefaultTopK           = 5
	DefaultDisplayN       = 3
	DefaultMaxQueryLength = 4096
)

// Params tunes retrieval. TopK neighbors are retrieved and ranked; the first
// DisplayN of them are returned.
type Params struct {
	TopK           int
	DisplayN       int
	Budget         int
	MaxQueryLength int
}

func (p *Params) applyDefaults() {
	if p.TopK <= 0 {
		p.TopK = DefaultTopK
	}
	if p.DisplayN <= 0 {
		p.DisplayN = DefaultDisplayN
	}
	p.DisplayN = min(p.DisplayN, p.TopK)
	if p.Budget < 0 {
		p.Budget = ann.Unbounded
	}
	if p.MaxQueryLength <= 0 {
		p.MaxQueryLength = DefaultMaxQueryLength
	}
}

// Service runs the query pipeline: normalize, encode, search, rank.
// It is built once at startup and shared read-only by all requests.
type Service struct {
	index  Index
	corpus Corpus
	embed  Embedder
	params Params
	logger *zap.Logger
}

// New creates a search service. It fails when the index is not loaded or when
// the encoder reports a dimension different from the index.
func New(index Index, corpus Corpus, embed Embedder, params Params, logger *zap.Logger) (*Service, error) {
	if index == nil || !index.Loaded() {
		return nil, domain.ErrIndexNotLoaded
	}
	if d, ok := embed.(dimensioned); ok && d.Dimensions() != index.Dimensions() {
		return nil, fmt.Errorf("encoder does not match index: %w",
			domain.NewDimensionError(index.Dimensions(), d.Dimensions()))
	}
	params.applyDefaults()
	return &Service{
		index:  index,
		corpus: corpus,
		embed:  embed,
		params: params,
		logger: logger,
	}, nil
}

// Params returns the effective retrieval parameters.
func (s *Service) Params() Params { return s.params }

// Search returns up to DisplayN documents most similar to raw. A query that
// normalizes to nothing yields an empty result without calling the encoder.
func (s *Service) Search(ctx context.Context, raw string) ([]result.Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(raw); n > s.params.MaxQueryLength {
		return nil, fmt.Errorf("%w: query has %d characters, limit %d",
			domain.ErrInvalidQuery, n, s.params.MaxQueryLength)
	}

	start := time.Now()
	normalized := textnorm.Normalize(raw)
	observeStage(metrics.StageNormalize, start)

	if normalized == "" {
		metrics.SearchResultsTotal.WithLabelValues("empty").Inc()
		return []result.Result{}, nil
	}

	results, examined, err := s.retrieve(ctx, normalized)
	if err != nil {
		metrics.SearchResultsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchResultsTotal.WithLabelValues("ok").Inc()

	if len(results) > s.params.DisplayN {
		results = results[:s.params.DisplayN]
	}

	logger.FromContextOr(ctx, s.logger).Debug("search completed",
		zap.Int("normalized_length", len(normalized)),
		zap.Int("examined", examined),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

func (s *Service) retrieve(ctx context.Context, normalized string) ([]result.Result, int, error) {
	start := time.Now()
	emb, err := s.embed.Embed(ctx, normalized)
	observeStage(metrics.StageEncode, start)
	if err != nil {
		return nil, 0, fmt.Errorf("encode query: %w", err)
	}

	start = time.Now()
	found, err := s.index.Search(ctx, emb.Embedding, s.params.TopK, s.params.Budget)
	observeStage(metrics.StageANN, start)
	if err != nil {
		return nil, 0, fmt.Errorf("ann search: %w", mapIndexError(err))
	}
	metrics.ANNCandidatesExamined.Observe(float64(found.Examined))

	start = time.Now()
	results, err := Rank(ctx, found.Neighbors, s.corpus)
	observeStage(metrics.StageRank, start)
	if err != nil {
		return nil, 0, fmt.Errorf("rank: %w", err)
	}
	return results, found.Examined, nil
}

// mapIndexError translates index errors into domain sentinels, keeping the cause.
func mapIndexError(err error) error {
	switch {
	case errors.Is(err, ann.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", domain.ErrVectorDimMismatch, err)
	case errors.Is(err, ann.ErrNotLoaded):
		return fmt.Errorf("%w: %w", domain.ErrIndexNotLoaded, err)
	case errors.Is(err, ann.ErrCorrupt):
		return fmt.Errorf("%w: %w", domain.ErrCorruptIndex, err)
	default:
		return err
	}
}

func observeStage(stage string, start time.Time) {
	metrics.SearchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
