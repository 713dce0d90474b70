package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

// Connection defaults.
const (
	DefaultPort    = 3306
	DefaultCharset = "utf8mb4"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL / MariaDB",
			Aliases:     []string{"mariadb"},
		},
		Open:         Open,
		MigrationURL: migrationURL,
	})
}

// buildDSN renders the driver DSN. mysql.Config escapes credentials, so
// passwords may contain any character.
func buildDSN(cfg datasource.Config) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	charset := cfg.Charset
	if charset == "" {
		charset = DefaultCharset
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	mc.DBName = cfg.Database
	mc.Params = map[string]string{"charset": charset}
	switch cfg.SSLMode {
	case "require":
		mc.TLSConfig = "true"
	case "skip-verify":
		mc.TLSConfig = "skip-verify"
	}
	return mc.FormatDSN()
}

// migrationURL prefixes the DSN with the golang-migrate scheme. Migration
// files may hold several statements.
func migrationURL(cfg datasource.Config) string {
	dsn := buildDSN(cfg)
	if strings.Contains(dsn, "?") {
		return "mysql://" + dsn + "&multiStatements=true"
	}
	return "mysql://" + dsn + "?multiStatements=true"
}

// Open connects to MySQL. Multi-row inserts report the id of the first row.
func Open(ctx context.Context, cfg datasource.Config) (datasource.Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}
	datasource.ConfigurePool(db, cfg)

	return datasource.NewSQLStore(db, sqlbuilder.MySQL, nil), nil
}
