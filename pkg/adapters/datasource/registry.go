package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AdapterInfo describes a registered engine.
type AdapterInfo struct {
	Type        string   `json:"type"`              // "mysql", "sqlite", "postgres", "sqlserver"
	DisplayName string   `json:"display_name"`      // "MySQL / MariaDB"
	Aliases     []string `json:"aliases,omitempty"` // alternative driver names
}

// Registration pairs an engine's info with the function that opens it.
type Registration struct {
	Info AdapterInfo
	Open func(ctx context.Context, cfg Config) (Store, error)

	// MigrationURL renders the golang-migrate database URL. Optional.
	MigrationURL func(cfg Config) string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, alias := range reg.Info.Aliases {
		registry[alias] = reg
	}
}

// RegisteredAdapters returns info for all registered engines, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		if !seen[reg.Info.Type] {
			seen[reg.Info.Type] = true
			result = append(result, reg.Info)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an engine type is available.
func IsRegistered(driver string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(driver)]
	return ok
}

// Open opens the store registered for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	registryMu.RLock()
	reg, ok := registry[strings.ToLower(cfg.Driver)]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %q (not compiled in)", cfg.Driver)
	}
	return reg.Open(ctx, cfg.WithDefaults())
}

// MigrationURL returns the golang-migrate database URL for cfg.Driver.
func MigrationURL(cfg Config) (string, error) {
	registryMu.RLock()
	reg, ok := registry[strings.ToLower(cfg.Driver)]
	registryMu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unsupported database driver: %q (not compiled in)", cfg.Driver)
	}
	if reg.MigrationURL == nil {
		return "", fmt.Errorf("migrations are not supported for %s", reg.Info.DisplayName)
	}
	return reg.MigrationURL(cfg), nil
}
