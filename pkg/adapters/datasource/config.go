package datasource

import "time"

// Config holds the connection options of a store. Engines ignore the fields
// that do not apply to them (Path is SQLite only, Charset MySQL only).
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Charset  string
	SSLMode  string
	Path     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Pool defaults shared by the engines.
const (
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

// WithDefaults returns a copy with unset pool settings filled in.
func (c Config) WithDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	return c
}
