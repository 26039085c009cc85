// Package sqlite implements the RunStore port on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas are applied to every connection. Run upserts are written by one
// connection while exports read concurrently, hence WAL and a busy timeout
// long enough to cover a run-with-jobs transaction.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(10000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// defaultReaders bounds the read pool. Reads come from exports and reports,
// which walk repositories one at a time.
const defaultReaders = 2

// DB holds the run store's connections: a single writer, so upserts from
// concurrent collectors queue instead of failing with SQLITE_BUSY, and a
// small reader pool.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// DBOption configures NewDB.
type DBOption func(*dbOptions)

type dbOptions struct {
	readers int
}

// WithReaders sets the size of the reader pool.
func WithReaders(n int) DBOption {
	return func(o *dbOptions) {
		if n > 0 {
			o.readers = n
		}
	}
}

// NewDB opens the run store at dbPath. Call Migrate before use.
func NewDB(ctx context.Context, dbPath string, opts ...DBOption) (*DB, error) {
	o := dbOptions{readers: defaultReaders}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := "file:" + dbPath + "?_pragma=" + strings.Join(pragmas, "&_pragma=")

	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open run store writer %s: %w", dbPath, err)
	}

	reader, err := openPool(ctx, dsn, o.readers)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open run store reader %s: %w", dbPath, err)
	}

	return &DB{Writer: writer, Reader: reader, path: dbPath}, nil
}

func openPool(ctx context.Context, dsn string, conns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(conns)
	pool.SetMaxIdleConns(conns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the reader pool and then the writer.
func (db *DB) Close() error {
	return errors.Join(db.Reader.Close(), db.Writer.Close())
}
