package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/mssql"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/mysql"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/postgres"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/sqlite"
	"github.com/flexiapi/flexiapi/pkg/config"
	"github.com/flexiapi/flexiapi/pkg/custom"
	"github.com/flexiapi/flexiapi/pkg/database"
	"github.com/flexiapi/flexiapi/pkg/logging"
	"github.com/flexiapi/flexiapi/pkg/postman"
	"github.com/flexiapi/flexiapi/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env carries the state shared by the subcommands.
type env struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "flexiapi",
		Short:         "Generic CRUD API over a relational database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath, Version)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	root.AddCommand(
		e.newServeCommand(),
		e.newMigrateCommand(),
		e.newPostmanCommand(),
		e.newMethodsCommand(),
		e.newConfigCommand(),
	)
	return root
}

func (e *env) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and MCP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runServe(cmd.Context())
		},
	}
}

func (e *env) runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			e.logger.Warn("Failed to close database", zap.Error(err))
		}
	}()

	a := newApp(e.cfg, store, e.logger)
	e.logger.Info("Custom methods registered", zap.Strings("methods", a.methods.List()))
	return serve(ctx, e.cfg, a.handler, e.logger)
}

func (e *env) newMigrateCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.RunMigrations(e.cfg.Database.Datasource(), path, e.logger)
		},
	}
	cmd.Flags().StringVar(&path, "path", "migrations", "migrations directory; a subdirectory named after the driver is preferred")
	return cmd
}

func (e *env) newPostmanCommand() *cobra.Command {
	var opts postman.Options
	cmd := &cobra.Command{
		Use:   "postman",
		Short: "Print a Postman v2.1 collection for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := postman.Generate(opts, registeredMethods(e.logger))
			if err != nil {
				return err
			}
			return postman.Write(cmd.OutOrStdout(), collection)
		},
	}
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "default value of the baseUrl variable")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table used by the examples")
	return cmd
}

func (e *env) newMethodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List registered custom methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range registeredMethods(e.logger) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (e *env) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML, without secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := e.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

// registeredMethods lists the custom methods without opening the database.
func registeredMethods(logger *zap.Logger) []string {
	registry := services.NewCustomMethodRegistry(nil, logger)
	custom.Register(registry)
	return registry.List()
}
