package db

import (
	"context"
	"database/sql"
)

// Conn is the subset of *sql.DB / *sql.Conn the warehouse components use.
// A run binds every component to the same *sql.Conn so session state
// (current warehouse, current schema) is shared across stages.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var (
	_ Conn = (*sql.DB)(nil)
	_ Conn = (*sql.Conn)(nil)
)
