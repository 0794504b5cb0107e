// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/JonMunkholm/feedwizard/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// RunFields describes the feed run a request performed. Run handlers fill it
// in with Annotate so the request log line carries the run outcome.
type RunFields struct {
	RunID    string
	Feed     string
	Phase    core.Phase
	Accepted int
	Rejected int
}

type runFieldsKey struct{}

// Annotate records the run a request performed. It is a no-op outside Logger.
func Annotate(ctx context.Context, rep core.Report) {
	if f, ok := ctx.Value(runFieldsKey{}).(*RunFields); ok {
		*f = RunFields{
			RunID:    rep.RunID,
			Feed:     rep.Feed,
			Phase:    rep.Phase,
			Accepted: rep.AcceptedCount,
			Rejected: rep.RejectedCount,
		}
	}
}

// Logger logs one line per request with its status, duration, and the
// upload and response sizes. Requests that ran a feed also log the run id,
// feed name, final phase, and accepted and rejected counts.
//
// Server errors log at error level, client errors at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		run := &RunFields{}
		r = r.WithContext(context.WithValue(r.Context(), runFieldsKey{}, run))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes_in", r.ContentLength,
			"bytes_out", ww.BytesWritten(),
			"ip", r.RemoteAddr,
		}
		if run.RunID != "" {
			attrs = append(attrs,
				"run_id", run.RunID,
				"feed", run.Feed,
				"phase", run.Phase,
				"accepted", run.Accepted,
				"rejected", run.Rejected,
			)
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logging.FromContext(r.Context()).Log(r.Context(), level, "request", attrs...)
	})
}
