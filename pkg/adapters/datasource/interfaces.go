package datasource

import (
	"context"

	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

// ExecResult reports the outcome of a statement that returns no rows.
// LastInsertID is 0 when the engine does not report one.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Queryer runs statements with positional arguments.
type Queryer interface {
	// Query runs a statement that returns rows. Text columns come back as
	// strings, never []byte.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (ExecResult, error)
}

// Tx is a transaction scoped to a single request.
type Tx interface {
	Queryer

	Commit(ctx context.Context) error

	// Rollback is safe to call after Commit; it is then a no-op.
	Rollback(ctx context.Context) error
}

// Store is a pooled connection to one database.
type Store interface {
	Queryer

	Begin(ctx context.Context) (Tx, error)

	// Dialect is the statement dialect of the engine.
	Dialect() sqlbuilder.Dialect

	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases the pool.
	Close() error
}
