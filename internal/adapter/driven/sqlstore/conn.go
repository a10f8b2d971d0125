// Package sqlstore implements the persistence ports once against Conn, a small
// dialect-neutral interface. Queries are written with "?" placeholders; each
// dialect adapter is responsible for translating them.
package sqlstore

import (
	"context"
	"errors"
)

// ErrNoRows is returned by Row.Scan when a query selected nothing. Conn
// implementations translate their driver's sentinel into this one.
var ErrNoRows = errors.New("no rows in result set")

// Row is a single-row query result.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a multi-row query result. It is satisfied by pgx.Rows directly and by
// a thin wrapper around *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Conn is the dialect-neutral persistence client the repositories run on.
// Implementations must be safe for concurrent use.
type Conn interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Insert runs a statement ending in "RETURNING id" and returns that id.
	Insert(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}
