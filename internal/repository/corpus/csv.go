package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/scisearch/internal/domain"
)

// Columns read from the metadata CSV. Any other column is ignored.
const (
	ColumnTitle    = "title"
	ColumnAbstract = "abstract"
	ColumnURL      = "url"
)

// CSVStore keeps the whole corpus in memory.
type CSVStore struct {
	docs []domain.Document
}

// LoadCSV reads a metadata CSV from path.
func LoadCSV(path string) (*CSVStore, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	docs, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return &CSVStore{docs: docs}, nil
}

// NewMemoryStore wraps documents already in memory. docs[i].ID must equal i.
func NewMemoryStore(docs []domain.Document) *CSVStore {
	return &CSVStore{docs: docs}
}

// ReadCSV parses documents from r. The first record is the header; the
// title, abstract and url columns are located by name. Rows are numbered
// from zero.
func ReadCSV(r io.Reader) ([]domain.Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", domain.ErrEmptyCorpus)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(docs), err)
		}
		docs = append(docs, domain.Document{
			ID:       int64(len(docs)),
			Title:    field(rec, cols[0]),
			Abstract: field(rec, cols[1]),
			URL:      field(rec, cols[2]),
		})
	}
	return docs, nil
}

func locateColumns(header []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case ColumnTitle:
			cols[0] = i
		case ColumnAbstract:
			cols[1] = i
		case ColumnURL:
			cols[2] = i
		}
	}
	for i, name := range []string{ColumnTitle, ColumnAbstract, ColumnURL} {
		if cols[i] < 0 {
			return cols, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// field returns rec[i], or "" for short rows.
func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.Clone(rec[i])
}

// Get returns the document at row id.
func (s *CSVStore) Get(_ context.Context, id int64) (domain.Document, error) {
	if id < 0 || id >= int64(len(s.docs)) {
		return domain.Document{}, fmt.Errorf("%w: %d", domain.ErrDocumentNotFound, id)
	}
	return s.docs[id], nil
}

// Len returns the number of documents.
func (s *CSVStore) Len(_ context.Context) (int, error) { return len(s.docs), nil }

// All iterates documents in id order.
func (s *CSVStore) All(ctx context.Context, fn func(domain.Document) error) error {
	for _, d := range s.docs {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // cancellation is reported as-is
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck always succeeds; the corpus lives in memory.
func (s *CSVStore) HealthCheck(_ context.Context) error { return nil }

// Close is a no-op.
func (s *CSVStore) Close() error { return nil }
