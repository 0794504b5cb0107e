package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/feedwizard/internal/config"
	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/JonMunkholm/feedwizard/internal/store"
	"github.com/JonMunkholm/feedwizard/internal/web"
)

// serveCommand runs the HTTP API until ctx is cancelled.
func serveCommand(ctx context.Context, cfg *config.Config) error {
	opts, err := driverOptions(cfg)
	if err != nil {
		return err
	}

	pool, closePool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePool()

	catalog, err := store.NewCachedReader(pool.Catalog(), cfg.Store.CacheSize)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, web.Deps{
		Runner:  core.NewDriver(pool, opts...),
		Catalog: catalog,
		Limiter: core.NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Ping:    pool.Ping,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown did not complete in time", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
