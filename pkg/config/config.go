package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for flexiapi.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (the API key, the database password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
}

// APIConfig holds request handling settings.
type APIConfig struct {
	// Key is compared against the X-FlexiAPI-Key header. Empty disables the check.
	Key string `yaml:"-" env:"FLEXIAPI_KEY"` // Secret - not in YAML

	DefaultLimit int `yaml:"default_limit" env:"API_DEFAULT_LIMIT" env-default:"20"`
	MaxLimit     int `yaml:"max_limit" env:"API_MAX_LIMIT" env-default:"100"`

	// InjectionCheck is one of off, log or reject.
	InjectionCheck string `yaml:"injection_check" env:"API_INJECTION_CHECK" env-default:"log"`

	MCPEnabled bool `yaml:"mcp_enabled" env:"MCP_ENABLED" env-default:"true"`
}

// DatabaseConfig holds the connection settings of the single backing database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"127.0.0.1"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"0"` // 0 means the driver default
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Name     string `yaml:"name" env:"DB_NAME"`
	Charset  string `yaml:"charset" env:"DB_CHARSET" env-default:"utf8mb4"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	// Path is the database file for sqlite.
	Path string `yaml:"path" env:"DB_PATH"`

	// WhitelistTables lists the tables requests may touch. Empty exposes every table.
	WhitelistTables []string `yaml:"whitelist_tables" env:"DB_WHITELIST_TABLES" env-separator:","`
	// IDColumn is the auto-generated key reported by inserts.
	IDColumn string `yaml:"id_column" env:"DB_ID_COLUMN" env-default:"id"`

	MaxOpenConns           int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns           int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" env:"DB_CONN_MAX_LIFETIME_MINUTES" env-default:"30"`
}

// Load reads configuration from path with environment variable overrides.
// A .env file in the working directory is loaded first when present. A
// missing file at path is an error unless path is DefaultPath, in which case
// only the environment is read.
func Load(path, version string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{Version: version}

	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if path != DefaultPath {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Database.WhitelistTables = cleanList(cfg.Database.WhitelistTables)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot check on its own.
func (c *Config) Validate() error {
	var errs []error
	if c.API.DefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("api.default_limit must be positive, got %d", c.API.DefaultLimit))
	}
	if c.API.MaxLimit < 1 {
		errs = append(errs, fmt.Errorf("api.max_limit must be positive, got %d", c.API.MaxLimit))
	}
	if c.API.DefaultLimit > c.API.MaxLimit {
		errs = append(errs, fmt.Errorf("api.default_limit (%d) exceeds api.max_limit (%d)", c.API.DefaultLimit, c.API.MaxLimit))
	}
	if _, err := sqlbuilder.ParseInjectionMode(c.API.InjectionCheck); err != nil {
		errs = append(errs, fmt.Errorf("api.injection_check: %w", err))
	}
	if strings.TrimSpace(c.Database.Driver) == "" {
		errs = append(errs, errors.New("database.driver is required"))
	}
	if c.Database.IDColumn != "" && !sqlbuilder.IsValidIdentifier(c.Database.IDColumn) {
		errs = append(errs, fmt.Errorf("database.id_column %q is not a valid identifier", c.Database.IDColumn))
	}
	for _, t := range c.Database.WhitelistTables {
		if !sqlbuilder.IsValidIdentifier(t) {
			errs = append(errs, fmt.Errorf("database.whitelist_tables: %q is not a valid identifier", t))
		}
	}
	return errors.Join(errs...)
}

// ListenAddr is the HTTP listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// InjectionMode returns the parsed injection screening mode. Validate has
// already rejected unknown values.
func (c *Config) InjectionMode() sqlbuilder.InjectionMode {
	mode, err := sqlbuilder.ParseInjectionMode(c.API.InjectionCheck)
	if err != nil {
		return sqlbuilder.InjectionLog
	}
	return mode
}

// Datasource converts the database section into adapter settings. Loopback
// hosts are redirected to the Docker host when running in a container.
func (d *DatabaseConfig) Datasource() datasource.Config {
	return datasource.Config{
		Driver:          d.Driver,
		Host:            ResolveHostForDocker(d.Host),
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		Charset:         d.Charset,
		SSLMode:         d.SSLMode,
		Path:            d.Path,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: time.Duration(d.ConnMaxLifetimeMinutes) * time.Minute,
	}
}

// YAML renders the effective configuration. Secrets are never included.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal inside a
// container so the server can reach a database on the host machine.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
