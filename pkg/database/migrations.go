// Package database applies schema migrations to the configured engine.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/database/sqlserver"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
)

// MigrationsDir returns the directory holding migrations for the engine. A
// subdirectory named after the driver (migrations/sqlite, migrations/mysql)
// is preferred over the root so one tree can carry every dialect.
func MigrationsDir(root, driver string) string {
	dir := filepath.Join(root, driver)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return root
}

// RunMigrations executes pending database migrations from the specified directory.
// It is idempotent and safe to call multiple times - only pending migrations will be executed.
func RunMigrations(cfg datasource.Config, migrationsPath string, logger *zap.Logger) error {
	dbURL, err := datasource.MigrationURL(cfg)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(MigrationsDir(migrationsPath, cfg.Driver))
	if err != nil {
		return fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absPath), dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Applied migrations successfully",
		zap.String("driver", cfg.Driver),
		zap.String("path", absPath),
		zap.Uint("version", newVersion))
	return nil
}
