package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

// DefaultPort is the default SQL Server port.
const DefaultPort = 1433

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Aliases:     []string{"mssql"},
		},
		Open:         Open,
		MigrationURL: buildConnectionString,
	})
}

// buildConnectionString builds a sqlserver:// URL using SQL authentication.
// SSLMode "disable" turns encryption off, "trust" encrypts without verifying
// the server certificate, anything else encrypts and verifies.
func buildConnectionString(cfg datasource.Config) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	query := url.Values{}
	query.Add("database", cfg.Database)
	switch cfg.SSLMode {
	case "disable":
		query.Add("encrypt", "disable")
	case "trust":
		query.Add("encrypt", "true")
		query.Add("TrustServerCertificate", "true")
	default:
		query.Add("encrypt", "true")
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Open connects to SQL Server. Statements use @pN placeholders, so arguments
// are passed as sql.Named("pN", v).
func Open(ctx context.Context, cfg datasource.Config) (datasource.Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	datasource.ConfigurePool(db, cfg)

	return datasource.NewSQLStore(db, sqlbuilder.SQLServer, namedParams), nil
}

func namedParams(args []any) []any {
	named := make([]any, len(args))
	for i, arg := range args {
		named[i] = sql.Named(fmt.Sprintf("p%d", i+1), arg)
	}
	return named
}
