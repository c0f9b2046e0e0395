package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/offset/internal/config"
	"github.com/roach88/offset/internal/engine"
	"github.com/roach88/offset/internal/store"
	"github.com/roach88/offset/internal/store/postgres"
)

// Storage is an engine.Storage that owns resources.
type Storage interface {
	engine.Storage
	Close() error
}

// newLogger builds the slog logger described by cfg.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

// openStorage opens the backend selected by cfg.Driver.
func openStorage(ctx context.Context, cfg config.DatabaseConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err := store.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// withEngine opens storage, runs fn with an engine over it and closes storage.
func (o *RootOptions) withEngine(ctx context.Context, fn func(*engine.Engine) error) error {
	o.Logger.Debug("opening storage", "driver", o.Config.Database.Driver, "path", o.Config.Database.Path)
	st, err := openStorage(ctx, o.Config.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			o.Logger.Error("error closing storage", "error", closeErr)
		}
	}()

	return fn(engine.New(st, engine.WithLogger(o.Logger)))
}

// signalContext is cancelled on SIGINT or SIGTERM, or when parent is done.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
