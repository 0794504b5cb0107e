// Command feedwizard ingests product feeds into PostgreSQL.
//
// Usage:
//
//	feedwizard run [flags] [file|url]   ingest one feed and print its report
//	feedwizard migrate                  apply database migrations
//	feedwizard serve                    start the HTTP API
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/feedwizard/internal/config"
	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/JonMunkholm/feedwizard/internal/enrich"
	"github.com/JonMunkholm/feedwizard/internal/logging"
	"github.com/JonMunkholm/feedwizard/internal/store"
	"github.com/joho/godotenv"
)

const usage = `usage: feedwizard <command> [flags]

commands:
  run [file|url]  ingest one feed and print its report as JSON
  migrate         apply database migrations
  serve           start the HTTP API
`

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	// Load .env file if it exists (Overload overwrites existing env vars)
	envErr := godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "run":
		return runCommand(ctx, cfg, args[1:])
	case "migrate":
		if err := store.Migrate(cfg.Database.URL); err != nil {
			slog.Error("migration failed", "error", err)
			return 1
		}
		slog.Info("migrations applied")
		return 0
	case "serve":
		if err := serveCommand(ctx, cfg); err != nil {
			slog.Error("server failed", "error", err)
			return 1
		}
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// connect opens the pool and applies migrations when configured to.
func connect(ctx context.Context, cfg *config.Config) (*store.Pool, func(), error) {
	if cfg.Store.AutoMigrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
	}

	pgPool, err := store.Connect(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPool(pgPool), pgPool.Close, nil
}

// driverOptions translates configuration into pipeline options.
func driverOptions(cfg *config.Config) ([]core.Option, error) {
	enc, err := core.ParseEncoding(cfg.Feed.Encoding)
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithEncoding(enc),
		core.WithCurrency(cfg.Feed.Currency),
		core.WithSaveRejected(cfg.Store.SaveRejected),
		core.WithWriteAttempts(cfg.Store.WriteAttempts),
		core.WithProgress(func(p core.Progress) {
			slog.Debug("run progress",
				"run_id", p.RunID,
				"phase", p.Phase,
				"rows", p.Rows,
				"accepted", p.Accepted,
				"rejected", p.Rejected,
			)
		}),
	}
	if d := cfg.Feed.Delimiter.Rune(); d != 0 {
		opts = append(opts, core.WithDelimiter(d))
	}
	if cfg.Enrich.Enabled {
		opts = append(opts, core.WithEnricher(enrich.NewMock(enrich.MockConfig{
			MinTitleLength: cfg.Enrich.MinTitleLength,
			MaxTitleLength: cfg.Enrich.MaxTitleLength,
			MaxCopyLength:  cfg.Enrich.MaxCopyLength,
		})))
	}
	return opts, nil
}

// exitCode maps a run report to a process exit status.
func exitCode(rep core.Report) int {
	if rep.Err == nil {
		return 0
	}
	if errors.Is(rep.Err, context.Canceled) {
		return 130
	}
	return 1
}
