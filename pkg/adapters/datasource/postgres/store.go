package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

// Connection defaults.
const (
	DefaultPort    = 5432
	DefaultSSLMode = "require"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Aliases:     []string{"postgresql", "pgx"},
		},
		Open:         Open,
		MigrationURL: migrationURL,
	})
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are escaped so passwords may contain @, /, # or ?.
func buildConnectionString(cfg datasource.Config) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode
	}

	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// migrationURL uses the golang-migrate pgx/v5 scheme.
func migrationURL(cfg datasource.Config) string {
	return "pgx5" + strings.TrimPrefix(buildConnectionString(cfg), "postgresql")
}

// Store is a pgxpool-backed datasource.Store. Inserts return their ids with
// RETURNING, so LastInsertID is never set.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL.
func Open(ctx context.Context, cfg datasource.Config) (datasource.Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	poolConfig, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return NewStore(pool), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Dialect() sqlbuilder.Dialect {
	return sqlbuilder.Postgres
}

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return queryRows(ctx, s.pool, query, args)
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) (datasource.ExecResult, error) {
	return execStatement(ctx, s.pool, query, args)
}

func (s *Store) Begin(ctx context.Context) (datasource.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return queryRows(ctx, t.tx, query, args)
}

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (datasource.ExecResult, error) {
	return execStatement(ctx, t.tx, query, args)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func queryRows(ctx context.Context, q querier, query string, args []any) ([]map[string]any, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	result := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(fieldDescs))
		for i, fd := range fieldDescs {
			rowMap[fd.Name] = values[i]
		}
		result = append(result, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func execStatement(ctx context.Context, q querier, query string, args []any) (datasource.ExecResult, error) {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return datasource.ExecResult{}, err
	}
	return datasource.ExecResult{RowsAffected: tag.RowsAffected()}, nil
}

var _ datasource.Store = (*Store)(nil)
