// Package testhelpers starts disposable database containers for integration
// tests. Each engine is started once per test binary and migrated with the
// repository's migrations.
package testhelpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/mysql"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/postgres"
	"github.com/flexiapi/flexiapi/pkg/database"
	"github.com/flexiapi/flexiapi/pkg/retry"
)

// Container images used by the integration tests.
const (
	MySQLImage    = "mysql:8.4"
	PostgresImage = "postgres:17-alpine"
)

// TestDB holds a shared database container and a migrated store.
type TestDB struct {
	Container testcontainers.Container
	Config    datasource.Config
	Store     datasource.Store
}

type sharedDB struct {
	once sync.Once
	db   *TestDB
	err  error
}

var (
	sharedMySQL    sharedDB
	sharedPostgres sharedDB
)

// GetMySQL returns a shared MySQL container for integration tests.
func GetMySQL(t *testing.T) *TestDB {
	t.Helper()
	return get(t, &sharedMySQL, func() (*TestDB, error) {
		return setup(engine{
			image: MySQLImage,
			port:  "3306/tcp",
			env: map[string]string{
				"MYSQL_DATABASE":      "flexiapi_test",
				"MYSQL_USER":          "flexi",
				"MYSQL_PASSWORD":      "test_password",
				"MYSQL_ROOT_PASSWORD": "root_password",
			},
			wait: wait.ForListeningPort("3306/tcp").WithStartupTimeout(120 * time.Second),
			cfg:  datasource.Config{Driver: "mysql", User: "flexi", Password: "test_password", Database: "flexiapi_test"},
		})
	})
}

// GetPostgres returns a shared PostgreSQL container for integration tests.
func GetPostgres(t *testing.T) *TestDB {
	t.Helper()
	return get(t, &sharedPostgres, func() (*TestDB, error) {
		return setup(engine{
			image: PostgresImage,
			port:  "5432/tcp",
			env: map[string]string{
				"POSTGRES_DB":       "flexiapi_test",
				"POSTGRES_USER":     "flexi",
				"POSTGRES_PASSWORD": "test_password",
			},
			wait: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
			cfg: datasource.Config{Driver: "postgres", User: "flexi", Password: "test_password", Database: "flexiapi_test", SSLMode: "disable"},
		})
	})
}

func get(t *testing.T, shared *sharedDB, start func() (*TestDB, error)) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	shared.once.Do(func() {
		shared.db, shared.err = start()
	})
	if shared.err != nil {
		t.Fatalf("Failed to setup test database: %v", shared.err)
	}
	return shared.db
}

type engine struct {
	image string
	port  string
	env   map[string]string
	wait  wait.Strategy
	cfg   datasource.Config
}

func setup(e engine) (*TestDB, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        e.image,
			ExposedPorts: []string{e.port},
			Env:          e.env,
			WaitingFor:   e.wait,
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, nat.Port(e.port))
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := e.cfg
	cfg.Host = host
	cfg.Port, err = strconv.Atoi(port.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", port.Port(), err)
	}

	root, err := migrationsRoot()
	if err != nil {
		return nil, err
	}

	// The port accepts connections before the server accepts logins.
	retryCfg := &retry.Config{MaxRetries: 10, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2}
	if err := retry.Do(ctx, retryCfg, func() error {
		return database.RunMigrations(cfg, root, zap.NewNop())
	}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := datasource.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &TestDB{Container: container, Config: cfg, Store: store}, nil
}

// migrationsRoot finds the migrations directory by walking up to the module root.
func migrationsRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above working directory")
		}
		dir = parent
	}
}
