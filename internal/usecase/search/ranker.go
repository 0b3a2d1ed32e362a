package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
	"github.com/kailas-cloud/scisearch/internal/domain/search/result"
)

// Rank joins distance-ordered neighbors with corpus metadata and converts
// distances to similarities. Order is preserved. An id the corpus does not
// know aborts ranking with ErrIndexCorpusMismatch.
func Rank(ctx context.Context, neighbors []ann.Neighbor, corpus Corpus) ([]result.Result, error) {
	results := make([]result.Result, 0, len(neighbors))
	for _, nb := range neighbors {
		doc, err := corpus.Get(ctx, nb.ID)
		if err != nil {
			if errors.Is(err, domain.ErrDocumentNotFound) {
				return nil, fmt.Errorf("%w: document %d: %w", domain.ErrIndexCorpusMismatch, nb.ID, err)
			}
			return nil, fmt.Errorf("get document %d: %w", nb.ID, err)
		}
		results = append(results, result.New(doc, nb.Distance))
	}
	return results, nil
}
