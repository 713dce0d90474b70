package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/logging"
)

// CustomMethod is a named server-side routine invoked with free-form params.
// Implementations must bind every value they take from params.
type CustomMethod func(ctx context.Context, db datasource.Store, params map[string]any) (any, error)

// CustomMethodRegistry holds the custom methods exposed to callers. Methods are
// registered at startup; lookups are safe for concurrent use.
type CustomMethodRegistry interface {
	Register(name string, method CustomMethod)
	Run(ctx context.Context, name string, params map[string]any) (any, error)
	List() []string
}

type customMethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]CustomMethod
	store   datasource.Store
	logger  *zap.Logger
}

// NewCustomMethodRegistry creates an empty registry running methods against store.
func NewCustomMethodRegistry(store datasource.Store, logger *zap.Logger) CustomMethodRegistry {
	return &customMethodRegistry{
		methods: make(map[string]CustomMethod),
		store:   store,
		logger:  logger.Named("custom"),
	}
}

// Register adds or replaces a method. Names are case-sensitive.
func (r *customMethodRegistry) Register(name string, method CustomMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = method
}

// Run invokes the named method. An unknown or empty name is a validation
// failure; an error from the method itself is an execution failure.
func (r *customMethodRegistry) Run(ctx context.Context, name string, params map[string]any) (any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("method", "Custom method not specified")
	}

	r.mu.RLock()
	method, ok := r.methods[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.ValidationWrap("method", apperrors.ErrNotFound, "Custom method '%s' not found", name)
	}

	if params == nil {
		params = map[string]any{}
	}
	result, err := method(ctx, r.store, params)
	if err != nil {
		if apperrors.IsValidation(err) {
			return nil, err
		}
		r.logger.Error("Custom method failed",
			zap.String("method", name),
			zap.String("error", logging.SanitizeError(err)))
		return nil, apperrors.Execution("Custom method failed", err)
	}
	return result, nil
}

// List returns the registered method names, sorted.
func (r *customMethodRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ CustomMethodRegistry = (*customMethodRegistry)(nil)
