// Package factstore is the SQLite-backed fact store: a 5-column
// immutable datom relation with entity-first, attribute-first, and
// value-first index orderings. It executes the synthesizer's
// parameterized plans and serves the point lookups the pull evaluator
// needs. The minimal append-only assert path exists to populate stores
// for tools and tests; the transactional write path proper lives
// outside this engine.
package factstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a SQLite database holding the datom relation.
// Uses WAL mode so concurrent readers are not blocked by the writer.
type Store struct {
	db *sql.DB
}

// Open creates or opens a fact store at the given path. ":memory:"
// opens a private in-memory store. Pragmas and the relation schema are
// applied idempotently.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open fact store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect fact store: %w", err)
	}

	// SQLite supports one writer at a time; a single connection also
	// keeps an in-memory store from vanishing between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply fact schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for tests and tooling.
func (s *Store) DB() *sql.DB { return s.db }

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var got string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&got); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("%s = %q, expected %q", name, got, expected)
	}
	return nil
}
