// Package sqlite provides the SQLite dialect of sqlstore.Conn.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
)

// Compile-time interface satisfaction check.
var _ sqlstore.Conn = (*DB)(nil)

// DB provides dual reader/writer database connections with WAL mode enabled.
// The writer connection is limited to a single connection to avoid "database is locked" errors.
// The reader connection pool allows up to 4 concurrent readers.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB creates a new dual-connection SQLite database at dbPath with WAL mode, busy timeout,
// synchronous NORMAL, foreign keys enabled, and a 64MB cache.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)
	return Open(ctx, dsn)
}

// Open creates a DB from a complete SQLite DSN. Tests use it with
// "file:<name>?mode=memory&cache=shared" DSNs.
func Open(ctx context.Context, dsn string) (*DB, error) {
	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{
		Writer: writer,
		Reader: reader,
		path:   dsn,
	}, nil
}

// Exec runs a write statement on the writer connection.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return affected, nil
}

// Insert runs an INSERT ... RETURNING id statement on the writer connection.
func (db *DB) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := db.Writer.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// QueryRow runs a single-row query on the reader pool.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) sqlstore.Row {
	return row{db.Reader.QueryRowContext(ctx, query, args...)}
}

// Query runs a multi-row query on the reader pool.
func (db *DB) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	r, err := db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// row maps sql.ErrNoRows onto sqlstore.ErrNoRows.
type row struct {
	r *sql.Row
}

func (r row) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return sqlstore.ErrNoRows
	}
	return err
}

// rows adapts *sql.Rows to sqlstore.Rows, whose Close has no return value.
type rows struct {
	*sql.Rows
}

func (r rows) Close() {
	_ = r.Rows.Close()
}
