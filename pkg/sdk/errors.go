package scisearch

import "github.com/kailas-cloud/scisearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrIndexCorpusMismatch    = domain.ErrIndexCorpusMismatch
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrEncoderOverloaded      = domain.ErrEncoderOverloaded
	ErrCorruptIndex           = domain.ErrCorruptIndex
	ErrIndexNotLoaded         = domain.ErrIndexNotLoaded
	ErrEmptyCorpus            = domain.ErrEmptyCorpus
)
