package search

import (
	"context"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
)

// Index is the read-only nearest-neighbor structure queried per request.
type Index interface {
	Search(ctx context.Context, query []float32, k, budget int) (*ann.SearchResult, error)
	Dimensions() int
	Len() int
	Loaded() bool
}

// Corpus resolves document ids to display metadata.
type Corpus interface {
	Get(ctx context.Context, id int64) (domain.Document, error)
}

// Embedder vectorizes normalized query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// dimensioned is implemented by encoders that know their output length up front.
type dimensioned interface {
	Dimensions() int
}
