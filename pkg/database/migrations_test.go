package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/sqlite"
)

func writeMigrations(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestMigrationsDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sqlite"), 0o755))

	assert.Equal(t, filepath.Join(root, "sqlite"), MigrationsDir(root, "sqlite"))
	assert.Equal(t, root, MigrationsDir(root, "mysql"))
}

func TestRunMigrations_SQLite(t *testing.T) {
	root := t.TempDir()
	writeMigrations(t, filepath.Join(root, "sqlite"), map[string]string{
		"000001_create_users.up.sql":   `CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);`,
		"000001_create_users.down.sql": `DROP TABLE users;`,
	})

	cfg := datasource.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "app.db")}
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	require.NoError(t, RunMigrations(cfg, root, logger))
	assert.Equal(t, 1, logs.FilterMessage("Applied migrations successfully").Len())

	require.NoError(t, RunMigrations(cfg, root, logger))
	assert.Equal(t, 1, logs.FilterMessage("No migrations to apply (database up-to-date)").Len())

	store, err := datasource.Open(t.Context(), cfg)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Exec(t.Context(), "INSERT INTO users (name) VALUES (?)", "Ann")
	require.NoError(t, err)
}

func TestRunMigrations_Errors(t *testing.T) {
	err := RunMigrations(datasource.Config{Driver: "oracle"}, t.TempDir(), zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")

	root := t.TempDir()
	writeMigrations(t, root, map[string]string{"000001_bad.up.sql": `CREATE TABLE (;`})
	cfg := datasource.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "app.db")}
	assert.ErrorContains(t, RunMigrations(cfg, root, zap.NewNop()), "failed to run migrations")
}
