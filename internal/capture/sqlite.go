// Package capture persists captured packet sessions in SQLite so they can
// be decoded, browsed and compared later.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Database wraps a SQLite connection. Writes are serialized; reads go
// straight to the pool.
type Database struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// OpenDatabase opens or creates a SQLite database at path. The special
// path ":memory:" opens a private in-memory database.
func OpenDatabase(path string) (*Database, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// One connection: SQLite allows a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		log.Warn().Err(err).Msg("failed to enable foreign keys")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info().Str("path", path).Msg("database opened")
	return &Database{db: db, path: path}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the file the database lives in.
func (d *Database) Path() string {
	return d.path
}

// Exec executes a statement without returning rows.
func (d *Database) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (d *Database) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row.
func (d *Database) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Transaction runs fn inside a transaction, rolling back when it fails.
func (d *Database) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SizeBytes reports the size of the database as SQLite sees it.
func (d *Database) SizeBytes(ctx context.Context) (int64, error) {
	var pages, pageSize int64
	if err := d.QueryRow(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, err
	}
	if err := d.QueryRow(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, err
	}
	return pages * pageSize, nil
}
