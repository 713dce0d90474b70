package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	"github.com/flexiapi/flexiapi/pkg/config"
	"github.com/flexiapi/flexiapi/pkg/custom"
	"github.com/flexiapi/flexiapi/pkg/handlers"
	"github.com/flexiapi/flexiapi/pkg/logging"
	"github.com/flexiapi/flexiapi/pkg/mcp"
	"github.com/flexiapi/flexiapi/pkg/mcp/tools"
	"github.com/flexiapi/flexiapi/pkg/middleware"
	"github.com/flexiapi/flexiapi/pkg/retry"
	"github.com/flexiapi/flexiapi/pkg/services"
	"github.com/flexiapi/flexiapi/pkg/validation"
)

// app holds the wired request path for one database.
type app struct {
	store   datasource.Store
	methods services.CustomMethodRegistry
	handler http.Handler
}

// openStore connects to the configured database, retrying transient failures.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datasource.Store, error) {
	dsCfg := cfg.Database.Datasource()

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Database not reachable, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	}

	store, err := retry.DoIfRetryable(ctx, retryCfg, func() (datasource.Store, error) {
		store, err := datasource.Open(ctx, dsCfg)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", dsCfg.Driver, err)
	}

	logger.Info("Connected to database",
		zap.String("driver", dsCfg.Driver),
		zap.String("host", dsCfg.Host),
		zap.String("database", dsCfg.Database))
	return store, nil
}

// newApp wires services, handlers and middleware around an open store.
func newApp(cfg *config.Config, store datasource.Store, logger *zap.Logger) *app {
	policy := services.NewTableAccessPolicy(cfg.Database.WhitelistTables, logger)
	validator := validation.NewValidator(policy, validation.Limits{
		DefaultLimit: cfg.API.DefaultLimit,
		MaxLimit:     cfg.API.MaxLimit,
	})
	tables := services.NewTableService(store, validator, services.TableServiceConfig{
		IDColumn:      cfg.Database.IDColumn,
		InjectionMode: cfg.InjectionMode(),
	}, logger)

	methods := services.NewCustomMethodRegistry(store, logger)
	custom.Register(methods)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, store, logger).RegisterRoutes(mux)
	handlers.NewTableHandler(tables, methods, logger).RegisterRoutes(mux)

	if cfg.API.MCPEnabled {
		mcpServer := mcp.NewServer("flexiapi", cfg.Version, logger)
		tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, store)
		tools.RegisterTableTools(mcpServer.MCP(), &tools.TableToolDeps{
			Tables:  tables,
			Methods: methods,
			Logger:  logger.Named("mcp"),
		})
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	if cfg.API.Key == "" {
		logger.Warn("No API key configured: requests are not authenticated")
	}

	var handler http.Handler = mux
	handler = middleware.APIKey(cfg.API.Key, logger)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.RequestID()(handler)

	return &app{store: store, methods: methods, handler: handler}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting flexiapi",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
