package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

// ArgBinder rewrites positional arguments before they reach the driver.
type ArgBinder func(args []any) []any

// SQLStore is a Store over database/sql. The MySQL, SQLite and SQL Server
// adapters are built on it.
type SQLStore struct {
	db      *sql.DB
	dialect sqlbuilder.Dialect
	bind    ArgBinder
}

// NewSQLStore wraps db. bind may be nil.
func NewSQLStore(db *sql.DB, dialect sqlbuilder.Dialect, bind ArgBinder) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, bind: bind}
}

// ConfigurePool applies the pool settings of cfg to db.
func ConfigurePool(db *sql.DB, cfg Config) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
}

// DB returns the underlying pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Dialect() sqlbuilder.Dialect {
	return s.dialect
}

func (s *SQLStore) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return queryRows(ctx, s.db, query, s.args(args))
}

func (s *SQLStore) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	return execStatement(ctx, s.db, query, s.args(args))
}

func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTx{tx: tx, store: s}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) args(args []any) []any {
	if s.bind == nil {
		return args
	}
	return s.bind(args)
}

type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return queryRows(ctx, t.tx, query, t.store.args(args))
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	return execStatement(ctx, t.tx, query, t.store.args(args))
}

func (t *sqlTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type sqlRunner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryRows(ctx context.Context, db sqlRunner, query string, args []any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func execStatement(ctx context.Context, db sqlRunner, query string, args []any) (ExecResult, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, err
	}

	var out ExecResult
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	// Not every driver reports insert ids.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// convertValue turns driver byte slices into strings so rows encode as JSON
// text rather than base64.
func convertValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

var _ Store = (*SQLStore)(nil)
