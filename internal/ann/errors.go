package ann

import "errors"

// Sentinel errors for index construction, loading and querying.
var (
	ErrDimensionMismatch = errors.New("ann: vector dimension mismatch")
	ErrInvalidVector     = errors.New("ann: vector has non-finite component")
	ErrDuplicateID       = errors.New("ann: duplicate item id")
	ErrInvalidConfig     = errors.New("ann: invalid config")
	ErrInvalidK          = errors.New("ann: k must be positive")
	ErrNotLoaded         = errors.New("ann: index not loaded")
	ErrCorrupt           = errors.New("ann: corrupt index artifact")
)
