package services

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// TableAccessPolicy decides which tables requests may reference. It is built
// once at startup and never mutated.
type TableAccessPolicy interface {
	// IsTableAllowed reports whether name may be used. An empty allow-list
	// permits every table.
	IsTableAllowed(name string) bool

	// Unrestricted reports whether the allow-list is empty.
	Unrestricted() bool

	// AllowedTables returns the allow-list, sorted.
	AllowedTables() []string
}

type tableAccessPolicy struct {
	allowed map[string]struct{}
}

// NewTableAccessPolicy creates a policy from the configured allow-list.
// Blank entries are ignored; names are matched exactly.
func NewTableAccessPolicy(tables []string, logger *zap.Logger) TableAccessPolicy {
	p := &tableAccessPolicy{allowed: make(map[string]struct{}, len(tables))}
	for _, t := range tables {
		if t = strings.TrimSpace(t); t != "" {
			p.allowed[t] = struct{}{}
		}
	}

	if len(p.allowed) == 0 {
		logger.Warn("Table whitelist is empty: every table in the database is exposed")
	} else {
		logger.Info("Table whitelist loaded", zap.Strings("tables", p.AllowedTables()))
	}
	return p
}

func (p *tableAccessPolicy) IsTableAllowed(name string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	_, ok := p.allowed[name]
	return ok
}

func (p *tableAccessPolicy) Unrestricted() bool {
	return len(p.allowed) == 0
}

func (p *tableAccessPolicy) AllowedTables() []string {
	tables := make([]string, 0, len(p.allowed))
	for t := range p.allowed {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

var _ TableAccessPolicy = (*tableAccessPolicy)(nil)
