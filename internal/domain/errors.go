package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a malformed search request (missing or oversized query).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDocumentNotFound signals a document id unknown to the corpus store.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIndexCorpusMismatch signals that the index returned an id the corpus cannot resolve.
	ErrIndexCorpusMismatch = errors.New("index and corpus are out of sync")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEncoderOverloaded signals that no inference slot became free before the deadline.
	ErrEncoderOverloaded = errors.New("encoder overloaded")
	// ErrCorruptIndex signals an unreadable or inconsistent index artifact.
	ErrCorruptIndex = errors.New("corrupt index artifact")
	// ErrIndexNotLoaded signals a query against an index that was never built or loaded.
	ErrIndexNotLoaded = errors.New("index not loaded")
	// ErrEmptyCorpus signals a corpus without documents where one is required.
	ErrEmptyCorpus = errors.New("empty corpus")
)

// DimensionError reports the expected and actual vector length.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrVectorDimMismatch.Error(), e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(want, got int) error {
	return &DimensionError{Want: want, Got: got}
}
