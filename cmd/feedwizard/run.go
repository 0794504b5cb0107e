package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/JonMunkholm/feedwizard/internal/config"
	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/JonMunkholm/feedwizard/internal/source"
	"github.com/google/uuid"
)

// runCommand ingests one feed and prints the report to stdout.
func runCommand(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.Var(&cfg.Feed.Delimiter, "delimiter", `CSV delimiter: ",", ";", "tab" or "|" (default: detect)`)
	fs.StringVar(&cfg.Feed.Encoding, "encoding", cfg.Feed.Encoding, "CSV encoding: utf-8, windows-1252, iso-8859-1")
	fs.StringVar(&cfg.Feed.Currency, "currency", cfg.Feed.Currency, "currency stamped on accepted products")
	fs.BoolVar(&cfg.Enrich.Enabled, "enrich", cfg.Enrich.Enabled, "enrich accepted products with the mock enricher")
	fs.BoolVar(&cfg.Store.SaveRejected, "save-rejected", cfg.Store.SaveRejected, "write rejected rows to the store")
	showRejects := fs.Bool("rejects", false, "include rejected rows in the report")
	dryRun := fs.Bool("dry-run", false, "validate the feed and print a preview without writing")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid run flags", "error", err)
		return 2
	}

	location := fs.Arg(0)
	if location == "" {
		location = cfg.Feed.Path
	}
	if location == "" {
		location = cfg.Feed.URL
	}

	opts, err := driverOptions(cfg)
	if err != nil {
		slog.Error("invalid feed settings", "error", err)
		return 2
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Feed.FetchTimeout)
	defer cancel()
	feed, err := source.Open(fetchCtx, location, &http.Client{})
	if err != nil {
		slog.Error("failed to open feed", "location", location, "error", err)
		return emitReport(os.Stdout, os.Stderr, core.FailedReport(uuid.NewString(), location, err), false)
	}
	defer feed.Close()

	pool, closePool, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closePool()

	driver := core.NewDriver(pool, opts...)
	if *dryRun {
		preview, err := driver.Preview(ctx, feed.FeedSource)
		if err != nil {
			slog.Error("preview failed", "error", err)
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
			return 1
		}
		if err := writeJSON(os.Stdout, preview); err != nil {
			slog.Error("failed to write preview", "error", err)
			return 1
		}
		return 0
	}

	return emitReport(os.Stdout, os.Stderr, driver.Run(ctx, feed.FeedSource), *showRejects)
}

// emitReport prints rep as JSON to stdout and, for a failed run, the user
// message to stderr. It returns the process exit status.
func emitReport(stdout, stderr io.Writer, rep core.Report, showRejects bool) int {
	if !showRejects {
		rep.Rejections = nil
	}
	if err := writeJSON(stdout, rep); err != nil {
		slog.Error("failed to write report", "error", err)
		return 1
	}
	if rep.Err != nil {
		fmt.Fprintln(stderr, core.FormatUserError(rep.Err))
	}
	return exitCode(rep)
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
