package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/repository/corpus"
	"github.com/kailas-cloud/scisearch/internal/textnorm"
)

// DefaultBatchSize is the number of abstracts embedded per encoder call.
const DefaultBatchSize = 64

// BuildOptions configures BuildIndex.
type BuildOptions struct {
	Forest    ann.BuildConfig
	BatchSize int
	// Progress is called after each embedded batch.
	Progress func(done, total int)
}

// BuildReport summarizes an index build.
type BuildReport struct {
	Documents int
	Indexed   int
	// Skipped counts documents whose title and abstract both normalize to nothing.
	Skipped int
}

// BuildIndex embeds every corpus document with the same normalizer used for
// queries and builds the forest. The abstract is embedded; the title stands
// in when the abstract is empty. Item ids are corpus ids.
func BuildIndex(
	ctx context.Context, store corpus.Store, enc domain.Embedder, opts BuildOptions, logger *zap.Logger,
) (*ann.Index, BuildReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	total, err := store.Len(ctx)
	if err != nil {
		return nil, BuildReport{}, fmt.Errorf("count corpus: %w", err)
	}
	if total == 0 {
		return nil, BuildReport{}, domain.ErrEmptyCorpus
	}

	report := BuildReport{Documents: total}
	items := make([]ann.Item, 0, total)
	var (
		ids   []int64
		texts []string
		seen  int
	)

	flush := func() error {
		if len(texts) == 0 {
			return nil
		}
		res, err := domain.BatchOrFallback(ctx, enc, texts)
		if err != nil {
			return fmt.Errorf("embed documents %d..%d: %w", ids[0], ids[len(ids)-1], err)
		}
		if len(res.Embeddings) != len(texts) {
			return fmt.Errorf("encoder returned %d vectors for %d texts: %w",
				len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
		}
		for i, vec := range res.Embeddings {
			items = append(items, ann.Item{ID: ids[i], Vector: vec})
		}
		ids, texts = ids[:0], texts[:0]
		if opts.Progress != nil {
			opts.Progress(seen, total)
		}
		return nil
	}

	err = store.All(ctx, func(doc domain.Document) error {
		seen++
		text := textnorm.Normalize(doc.Abstract)
		if text == "" {
			text = textnorm.Normalize(doc.Title)
		}
		if text == "" {
			report.Skipped++
			logger.Debug("Skipping document without text", zap.Int64("id", doc.ID))
			return nil
		}
		ids = append(ids, doc.ID)
		texts = append(texts, text)
		if len(texts) >= opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, report, err
	}
	report.Indexed = len(items)

	if opts.Forest.Dimensions <= 0 && len(items) > 0 {
		opts.Forest.Dimensions = len(items[0].Vector)
	}
	idx, err := ann.Build(ctx, items, opts.Forest)
	if err != nil {
		return nil, report, fmt.Errorf("build forest: %w", err)
	}
	return idx, report, nil
}
