package postgres

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the repositories need. *sql.DB and
// *circuitbreaker.DBCircuitBreaker both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
