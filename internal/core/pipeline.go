package core

// pipeline.go drives one feed through parse, validate, enrich and persist.
//
// Phase order: init → parsing → validating → enriching → persisting → done.
// A run reaches failed only when the store cannot be acquired or the feed
// itself is unusable; in both cases nothing is written. Row problems never
// fail a run.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/feedwizard/internal/schema"
	"github.com/google/uuid"
)

// DefaultWriteAttempts is how many times a failed store write is tried.
const DefaultWriteAttempts = 2

// Driver runs feeds. A Driver is safe to reuse across runs but runs must not
// overlap on the same store; see RunLimiter.
type Driver struct {
	acquirer      Acquirer
	parser        Parser
	enricher      Enricher
	progress      ProgressCallback
	saveRejected  bool
	writeAttempts int
	currency      string
}

// Option configures a Driver.
type Option func(*Driver)

// WithEnricher enables enrichment of accepted records.
func WithEnricher(e Enricher) Option {
	return func(d *Driver) { d.enricher = e }
}

// WithSchema replaces the product schema.
func WithSchema(sch schema.Schema) Option {
	return func(d *Driver) { d.parser.Schema = sch }
}

// WithDelimiter fixes the CSV delimiter instead of detecting it.
func WithDelimiter(r rune) Option {
	return func(d *Driver) { d.parser.Delimiter = r }
}

// WithEncoding sets the character encoding of CSV feeds.
func WithEncoding(enc Encoding) Option {
	return func(d *Driver) { d.parser.Encoding = enc }
}

// WithProgress registers a callback invoked on every phase change.
func WithProgress(cb ProgressCallback) Option {
	return func(d *Driver) { d.progress = cb }
}

// WithSaveRejected controls whether rejects are written to the store. When
// false they are only logged and reported.
func WithSaveRejected(save bool) Option {
	return func(d *Driver) { d.saveRejected = save }
}

// WithWriteAttempts sets how many times each store write is tried.
func WithWriteAttempts(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.writeAttempts = n
		}
	}
}

// WithCurrency sets the currency stamped on accepted records.
func WithCurrency(code string) Option {
	return func(d *Driver) { d.currency = strings.ToUpper(strings.TrimSpace(code)) }
}

// NewDriver creates a Driver that takes its store from acquirer.
func NewDriver(acquirer Acquirer, opts ...Option) *Driver {
	d := &Driver{
		acquirer:      acquirer,
		parser:        Parser{Schema: schema.Product},
		saveRejected:  true,
		writeAttempts: DefaultWriteAttempts,
		currency:      "SEK",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// run carries the state of one Run call.
type run struct {
	*Driver
	report *Report
	logger *slog.Logger
}

// Run processes src and returns its report. The returned report's Err is set
// only for fatal errors.
func (d *Driver) Run(ctx context.Context, src FeedSource) Report {
	start := time.Now()

	runID := RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = ContextWithRunID(ctx, runID)
	}

	r := &run{
		Driver: d,
		report: &Report{RunID: runID, Feed: src.Name},
		logger: slog.Default().With("run_id", runID, "feed", src.Name),
	}
	defer func() {
		r.report.DurationMs = time.Since(start).Milliseconds()
	}()

	r.transition(PhaseInit)
	store, release, err := d.acquirer.Acquire(ctx)
	if err != nil {
		r.fail(fmt.Errorf("acquire store: %w", err))
		return *r.report
	}
	defer release()

	r.transition(PhaseParsing)
	feed, err := d.parser.Parse(src)
	if err != nil {
		r.fail(err)
		return *r.report
	}
	r.report.RowsRead = len(feed.Rows)
	r.report.BytesRead = feed.BytesRead
	r.logger.Info("feed parsed",
		"rows", len(feed.Rows),
		"columns", len(feed.Headers),
		"delimiter", string(feed.Delimiter),
	)

	r.transition(PhaseValidating)
	validator := NewValidator(d.parser.Schema)
	outcomes := make([]Outcome, len(feed.Rows))
	for i, row := range feed.Rows {
		outcomes[i] = validator.Validate(Coerce(row, d.parser.Schema))
	}

	r.transition(PhaseEnriching)
	if d.enricher != nil {
		for i := range outcomes {
			if outcomes[i].Accepted == nil {
				continue
			}
			enriched := r.enrich(ctx, *outcomes[i].Accepted)
			outcomes[i].Accepted = &enriched
		}
	}

	r.transition(PhasePersisting)
	for i, out := range outcomes {
		if out.Accepted != nil {
			r.persistAccepted(ctx, store, *out.Accepted, feed.Rows[i].Raw)
		} else {
			r.persistRejected(ctx, store, *out.Rejected)
		}
	}

	r.transition(PhaseDone)
	r.logger.Info("run complete",
		"rows", r.report.RowsRead,
		"accepted", r.report.AcceptedCount,
		"rejected", r.report.RejectedCount,
		"unpersisted", r.report.Unpersisted,
		"enriched_fields", r.report.EnrichedFields,
		"enrich_failures", r.report.EnrichFailures,
		"duration", time.Since(start),
	)
	return *r.report
}

func (r *run) transition(phase Phase) {
	r.report.Phase = phase
	r.logger.Debug("run phase", "phase", phase)
	if r.progress != nil {
		r.progress(Progress{
			RunID:    r.report.RunID,
			Phase:    phase,
			Rows:     r.report.RowsRead,
			Accepted: r.report.AcceptedCount,
			Rejected: r.report.RejectedCount,
		})
	}
}

// FailedReport is the report of a run that failed before a driver saw the
// feed, such as a file that could not be opened.
func FailedReport(runID, feed string, err error) Report {
	msg := err.Error()
	return Report{
		RunID:      runID,
		Feed:       feed,
		Phase:      PhaseFailed,
		Err:        err,
		FatalError: &msg,
	}
}

// fail ends the run. Counts are reset so a failed report never claims rows.
func (r *run) fail(err error) {
	msg := err.Error()
	rep := r.report
	rep.RowsRead, rep.AcceptedCount, rep.RejectedCount, rep.Unpersisted = 0, 0, 0, 0
	rep.Rejections = nil
	rep.Err = err
	rep.FatalError = &msg
	r.logger.Error("run failed", "phase", rep.Phase, "error", err)
	r.transition(PhaseFailed)
}

func (r *run) persistAccepted(ctx context.Context, store Store, rec ProductRecord, raw RawRow) {
	rec.RunID = r.report.RunID
	rec.Currency = r.currency

	err := r.write(ctx, "save accepted", rec.Line, func() error {
		return store.SaveAccepted(ctx, rec)
	})
	switch {
	case err == nil:
		r.report.AcceptedCount++
	case errors.Is(err, ErrConflict):
		r.persistRejected(ctx, store, RejectedRecord{
			Line:     rec.Line,
			Original: raw,
			Issues: []ValidationIssue{{
				Field:   schema.ColID,
				Rule:    RuleDuplicateAtStore,
				Message: fmt.Sprintf("id %q was accepted by an earlier run", rec.ID),
			}},
		})
	default:
		r.report.Unpersisted++
		r.logger.Error("accepted record not persisted", "line", rec.Line, "id", rec.ID, "error", err)
	}
}

func (r *run) persistRejected(ctx context.Context, store Store, rej RejectedRecord) {
	rej.RunID = r.report.RunID

	r.logger.Info("row rejected", "line", rej.Line, "reasons", rej.Reasons())

	if r.saveRejected {
		err := r.write(ctx, "save rejected", rej.Line, func() error {
			return store.SaveRejected(ctx, rej)
		})
		if err != nil {
			r.report.Unpersisted++
			r.logger.Error("rejected record not persisted", "line", rej.Line, "error", err)
			return
		}
	}

	r.report.RejectedCount++
	r.report.Rejections = append(r.report.Rejections, rej)
}

// write calls fn up to writeAttempts times. A conflict is final.
func (r *run) write(ctx context.Context, op string, line int, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.writeAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		r.logger.Warn("store write failed",
			"op", op,
			"line", line,
			"attempt", attempt,
			"error", err,
		)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// enrich returns a copy of rec carrying the generated title and copy next to
// the feed's own text. A failed or empty enrichment leaves the field unset.
func (r *run) enrich(ctx context.Context, rec ProductRecord) ProductRecord {
	out := rec
	out.EnrichedFields = nil

	for _, field := range []Field{FieldTitle, FieldDescription} {
		text, err := safeEnrich(ctx, r.enricher, rec, field)
		if err != nil {
			r.report.EnrichFailures++
			r.logger.Warn("enrichment skipped", "line", rec.Line, "id", rec.ID, "field", field, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		switch field {
		case FieldTitle:
			out.ImprovedTitle = text
		case FieldDescription:
			out.MarketingCopy = text
		}
		out.EnrichedFields = append(out.EnrichedFields, string(field))
		r.report.EnrichedFields++
	}

	return out
}

func safeEnrich(ctx context.Context, e Enricher, rec ProductRecord, field Field) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("enricher panicked: %v", p)
		}
	}()
	return e.Enrich(ctx, rec, field)
}
