// Package postgres provides the PostgreSQL dialect of sqlstore.Conn on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
)

// Compile-time interface satisfaction check.
var _ sqlstore.Conn = (*DB)(nil)

// DefaultMaxConns bounds the pool when the caller does not choose a size.
const DefaultMaxConns = 10

// DB is a pgx connection pool that accepts "?" placeholder queries.
type DB struct {
	pool *pgxpool.Pool
}

// New connects a pool to uri. maxConns <= 0 selects DefaultMaxConns.
func New(ctx context.Context, uri string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parse database uri: %w", err)
	}

	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Exec runs a statement and returns the number of affected rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := db.pool.Exec(ctx, Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Insert runs an INSERT ... RETURNING id statement.
func (db *DB) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := db.pool.QueryRow(ctx, Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// QueryRow runs a single-row query.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) sqlstore.Row {
	return row{db.pool.QueryRow(ctx, Rebind(query), args...)}
}

// Query runs a multi-row query. pgx.Rows already satisfies sqlstore.Rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	rows, err := db.pool.Query(ctx, Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// row maps pgx.ErrNoRows onto sqlstore.ErrNoRows.
type row struct {
	r pgx.Row
}

func (r row) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return sqlstore.ErrNoRows
	}
	return err
}
