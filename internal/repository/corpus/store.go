// Package corpus holds the read-only document metadata joined onto search
// results. Document ids are zero-based row positions in the source CSV, which
// is also the order vectors are added to the index.
package corpus

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/scisearch/internal/domain"
)

// Supported drivers.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Store resolves document ids to metadata.
type Store interface {
	Get(ctx context.Context, id int64) (domain.Document, error)
	Len(ctx context.Context) (int, error)
	// All calls fn for every document in id order and stops at the first error.
	All(ctx context.Context, fn func(domain.Document) error) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Open opens a corpus with the named driver. SQLite corpora are opened read-only.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverCSV, "":
		s, err := LoadCSV(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := OpenSQLite(path, true)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown corpus driver %q", driver)
	}
}
