package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/scisearch/internal/domain"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		abstract TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT ''
	);
`

// SQLiteStore serves documents from a SQLite file with a documents table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a corpus database. A read-only store never creates the
// file or the schema.
func OpenSQLite(path string, readOnly bool) (*SQLiteStore, error) {
	dsn := filepath.Clean(path)
	if readOnly {
		if _, err := os.Stat(dsn); err != nil {
			return nil, fmt.Errorf("open corpus database: %w", err)
		}
		dsn = "file:" + dsn + "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open corpus database: %w", err)
	}
	if !readOnly {
		db.SetMaxOpenConns(1) // single writer
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping corpus database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the document with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (domain.Document, error) {
	doc := domain.Document{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT title, abstract, url FROM documents WHERE id = ?`, id,
	).Scan(&doc.Title, &doc.Abstract, &doc.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%w: %d", domain.ErrDocumentNotFound, id)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("query document %d: %w", id, err)
	}
	return doc, nil
}

// Len returns the number of documents.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// All iterates documents in id order.
func (s *SQLiteStore) All(ctx context.Context, fn func(domain.Document) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, abstract, url FROM documents ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Abstract, &d.URL); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}
	return nil
}

// Insert writes documents in one transaction, replacing rows with the same id.
func (s *SQLiteStore) Insert(ctx context.Context, docs []domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (id, title, abstract, url) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Abstract, d.URL); err != nil {
			return fmt.Errorf("insert document %d: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping corpus database: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close() //nolint:wrapcheck // close error is self-explanatory
}

// ImportCSV copies a metadata CSV into a new or existing SQLite corpus and
// returns the number of documents written.
func ImportCSV(ctx context.Context, csvPath, sqlitePath string) (int, error) {
	src, err := LoadCSV(csvPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return 0, fmt.Errorf("create corpus directory: %w", err)
	}
	dst, err := OpenSQLite(sqlitePath, false)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	if _, err := dst.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	if err := dst.Insert(ctx, src.docs); err != nil {
		return 0, err
	}
	return len(src.docs), nil
}
