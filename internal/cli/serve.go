package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/roach88/offset/internal/api"
	"github.com/roach88/offset/internal/config"
	"github.com/roach88/offset/internal/engine"
	"github.com/roach88/offset/internal/seed"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	SeedPath string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record API over HTTP",
		Long: `Serve the record API over HTTP until interrupted.

With a SQLite database only one serve process may use a database file at a
time; the lock is held on <db>.lock. A seed file, if given, is loaded before
the listener starts. Records already present are skipped.

Examples:
  offset serve --db ./offset.db --addr :8080
  offset serve --seed sample-registry.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.SeedPath, "seed", "", "seed file loaded before serving (overrides seed.path)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.Config
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.SeedPath != "" {
		cfg.Seed.Path = opts.SeedPath
	}
	logger := opts.Logger

	if cfg.Database.Driver == config.DriverSQLite {
		lock := flock.New(cfg.Database.Path + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to acquire database lock", err)
		}
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("database %s is in use by another serve process", cfg.Database.Path))
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("failed to release database lock", "error", err)
			}
		}()
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return opts.withEngine(ctx, func(e *engine.Engine) error {
		if cfg.Seed.Path != "" {
			if err := preload(ctx, e, cfg.Seed, logger); err != nil {
				return err
			}
		}

		handler := api.NewRouter(e, api.Options{
			Logger:      logger,
			CORSOrigins: cfg.Server.CORSOrigins,
		})
		err := api.ListenAndServe(ctx, handler, api.ServerConfig{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "server error", err)
		}
		return nil
	})
}

// preload seeds the store before serving. Invalid and conflicting items are
// logged and skipped; storage failures abort startup.
func preload(ctx context.Context, e *engine.Engine, cfg config.SeedConfig, logger *slog.Logger) error {
	items, err := seed.ReadFile(cfg.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read seed file", err)
	}
	report, err := seed.NewLoader(e, cfg.Workers, logger).Load(ctx, items)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to seed storage", err)
	}
	logger.Info("seed loaded",
		"path", cfg.Path,
		"total", report.Total,
		"created", report.Created,
		"skipped", report.Skipped,
		"invalid", report.Invalid,
		"conflicts", report.Conflicts,
	)
	return nil
}
