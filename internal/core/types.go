package core

import (
	"context"
	"errors"
	"io"

	"github.com/JonMunkholm/feedwizard/internal/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

var (
	// ErrConflict is returned by a Store when an accepted record's id is
	// already present in the products table.
	ErrConflict = errors.New("product id already exists in store")

	// ErrNotFound is returned when a product lookup finds nothing.
	ErrNotFound = errors.New("product not found")
)

// RuleDuplicateAtStore is the reason recorded when the store refuses an
// accepted record because its id was persisted by an earlier run.
const RuleDuplicateAtStore = "duplicate_id_at_store"

// RawRow maps canonical column names to raw cell values as read from the feed.
type RawRow map[string]string

// ParsedRow is one data row of a feed with its 1-based source line.
type ParsedRow struct {
	Line int
	Raw  RawRow
}

// ProductRecord is an accepted, typed product. Title and Description are kept
// as the feed supplied them; generated text goes to ImprovedTitle and
// MarketingCopy.
type ProductRecord struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	ImprovedTitle  string         `json:"improved_title,omitempty"`
	Price          pgtype.Numeric `json:"price"`
	Brand          string         `json:"brand,omitempty"`
	Category       string         `json:"category,omitempty"`
	Description    string         `json:"description,omitempty"`
	MarketingCopy  string         `json:"marketing_copy,omitempty"`
	ImageURL       string         `json:"image_url,omitempty"`
	GTIN           string         `json:"gtin,omitempty"`
	ProductURL     string         `json:"product_url,omitempty"`
	Availability   string         `json:"availability"`
	Currency       string         `json:"currency,omitempty"`
	EnrichedFields []string       `json:"enriched_fields,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	Line           int            `json:"line,omitempty"`
}

// ValidationIssue is a single failed rule for a field.
type ValidationIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e ValidationIssue) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// RejectedRecord is a row that failed at least one rule, with every issue
// found in rule order.
type RejectedRecord struct {
	RunID    string            `json:"run_id,omitempty"`
	Line     int               `json:"line"`
	Original RawRow            `json:"original_row"`
	Issues   []ValidationIssue `json:"issues"`
}

// Reasons returns the rule codes of the record's issues, in order.
func (r RejectedRecord) Reasons() []string {
	reasons := make([]string, len(r.Issues))
	for i, iss := range r.Issues {
		reasons[i] = iss.Rule
	}
	return reasons
}

// Candidate is a parsed row after type coercion, ready for validation.
// Issues holds coercion failures recorded by the parser.
type Candidate struct {
	Line   int
	Raw    RawRow
	Values map[string]schema.Value
	Issues []ValidationIssue
}

// Outcome is the classification of one row. Exactly one field is set.
type Outcome struct {
	Accepted *ProductRecord
	Rejected *RejectedRecord
}

// Field names a ProductRecord field an Enricher can rewrite.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
)

// Enricher generates text for one field of an accepted record. Title text
// lands in ImprovedTitle and description text in MarketingCopy; the feed's
// own values are never replaced. An error or an empty result means nothing
// is stored for that field.
type Enricher interface {
	Enrich(ctx context.Context, rec ProductRecord, field Field) (string, error)
}

// Store persists classified records.
type Store interface {
	SaveAccepted(ctx context.Context, rec ProductRecord) error
	SaveRejected(ctx context.Context, rej RejectedRecord) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Acquirer hands out a Store bound to a dedicated connection for one run.
// The release func must be called exactly once.
type Acquirer interface {
	Acquire(ctx context.Context) (Store, func(), error)
}

// Format is the container format of a feed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FeedSource is a feed to ingest.
type FeedSource struct {
	Name   string    // File name, used for logging and format detection
	Format Format    // Empty means detect from Name
	Reader io.Reader // Feed content
	Size   int64     // Byte size if known, 0 otherwise
}

// Phase indicates the current stage of a run.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseParsing    Phase = "parsing"
	PhaseValidating Phase = "validating"
	PhaseEnriching  Phase = "enriching"
	PhasePersisting Phase = "persisting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Progress is a snapshot of a run, reported on every phase change.
type Progress struct {
	RunID    string
	Phase    Phase
	Rows     int
	Accepted int
	Rejected int
}

// ProgressCallback is called whenever a run changes phase.
type ProgressCallback func(Progress)

// Report is the outcome of one run. AcceptedCount + RejectedCount +
// Unpersisted equals RowsRead unless the run failed, in which case all
// counts are zero.
type Report struct {
	RunID          string           `json:"run_id"`
	Feed           string           `json:"feed"`
	Phase          Phase            `json:"phase"`
	RowsRead       int              `json:"rows_read"`
	AcceptedCount  int              `json:"accepted_count"`
	RejectedCount  int              `json:"rejected_count"`
	Unpersisted    int              `json:"unpersisted"`
	EnrichedFields int              `json:"enriched_fields"`
	EnrichFailures int              `json:"enrich_failures"`
	BytesRead      int64            `json:"bytes_read"`
	DurationMs     int64            `json:"duration_ms"`
	FatalError     *string          `json:"fatal_error"`
	Rejections     []RejectedRecord `json:"rejections,omitempty"`

	// Err is the fatal error, if any. FatalError carries its message.
	Err error `json:"-"`
}
