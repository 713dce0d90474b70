package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Aliases:     []string{"sqlite3"},
		},
		Open:         Open,
		MigrationURL: migrationURL,
	})
}

// buildDSN turns a file path (or ":memory:") into a go-sqlite3 DSN with
// foreign keys enabled. Existing query parameters are kept.
func buildDSN(path string) string {
	if path == "" || path == ":memory:" {
		path = "file::memory:"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	base, rawQuery, _ := strings.Cut(path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	if query.Get("_foreign_keys") == "" {
		query.Set("_foreign_keys", "on")
	}
	return base + "?" + query.Encode()
}

// migrationURL uses the golang-migrate sqlite3 scheme.
func migrationURL(cfg datasource.Config) string {
	return "sqlite3://" + strings.TrimPrefix(buildDSN(cfg.Path), "file:")
}

// Open opens a SQLite database at cfg.Path. Multi-row inserts report the id
// of the last row.
func Open(ctx context.Context, cfg datasource.Config) (datasource.Store, error) {
	db, err := sql.Open("sqlite3", buildDSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single long-lived connection: every in-memory connection is a separate
	// database, and SQLite serializes writers anyway.
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.ConnMaxLifetime = 0
	datasource.ConfigurePool(db, cfg)

	return datasource.NewSQLStore(db, sqlbuilder.SQLite, nil), nil
}
