package core

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// PreviewSummary contains the counts of a dry run.
// Accepted + Rejected + ExistingInStore equals TotalRows.
type PreviewSummary struct {
	TotalRows       int `json:"total_rows"`
	Accepted        int `json:"accepted"`
	Rejected        int `json:"rejected"`
	ExistingInStore int `json:"existing_in_store"`
	DuplicateInFile int `json:"duplicate_in_file"`
}

// RowPreview is a sample of a row that would be accepted.
type RowPreview struct {
	Line   int    `json:"line"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Price  string `json:"price"`
	Exists bool   `json:"exists,omitempty"`
}

// ErrorPreview is a sample of a row that would be rejected.
type ErrorPreview struct {
	Line    int      `json:"line"`
	ID      string   `json:"id,omitempty"`
	Values  RawRow   `json:"values"`
	Reasons []string `json:"reasons"`
}

// DuplicatePreview lists the lines sharing one id.
type DuplicatePreview struct {
	ID    string `json:"id"`
	Lines []int  `json:"lines"`
}

// PreviewResponse is the result of Driver.Preview.
type PreviewResponse struct {
	Feed             string             `json:"feed"`
	Summary          PreviewSummary     `json:"summary"`
	AcceptedSamples  []RowPreview       `json:"accepted_samples"`
	ErrorSamples     []ErrorPreview     `json:"error_samples"`
	DuplicateSamples []DuplicatePreview `json:"duplicate_samples"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Sample limits
const (
	maxAcceptedSamples  = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// Preview parses and validates src without writing anything. Accepted rows
// are checked against the store so ids from earlier runs show up as
// ExistingInStore. Enrichment is skipped.
func (d *Driver) Preview(ctx context.Context, src FeedSource) (*PreviewResponse, error) {
	start := time.Now()

	feed, err := d.parser.Parse(src)
	if err != nil {
		return nil, err
	}

	var store Store
	if d.acquirer != nil {
		s, release, err := d.acquirer.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire store: %w", err)
		}
		defer release()
		store = s
	}

	key, _ := d.parser.Schema.KeyColumn()
	validator := NewValidator(d.parser.Schema)
	lines := make(map[string][]int)

	resp := &PreviewResponse{
		Feed:             src.Name,
		Summary:          PreviewSummary{TotalRows: len(feed.Rows)},
		AcceptedSamples:  []RowPreview{},
		ErrorSamples:     []ErrorPreview{},
		DuplicateSamples: []DuplicatePreview{},
	}

	for _, row := range feed.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := Coerce(row, d.parser.Schema)
		id := c.Values[key.Name].Text
		if id != "" {
			lines[id] = append(lines[id], row.Line)
		}

		out := validator.Validate(c)
		if out.Rejected != nil {
			resp.Summary.Rejected++
			if len(resp.ErrorSamples) < maxErrorSamples {
				resp.ErrorSamples = append(resp.ErrorSamples, ErrorPreview{
					Line:    row.Line,
					ID:      id,
					Values:  row.Raw,
					Reasons: out.Rejected.Reasons(),
				})
			}
			continue
		}

		exists := false
		if store != nil {
			exists, err = store.Exists(ctx, out.Accepted.ID)
			if err != nil {
				return nil, fmt.Errorf("check existing ids: %w", err)
			}
		}
		if exists {
			resp.Summary.ExistingInStore++
		} else {
			resp.Summary.Accepted++
		}
		if len(resp.AcceptedSamples) < maxAcceptedSamples {
			resp.AcceptedSamples = append(resp.AcceptedSamples, RowPreview{
				Line:   row.Line,
				ID:     out.Accepted.ID,
				Title:  out.Accepted.Title,
				Price:  NumericString(out.Accepted.Price),
				Exists: exists,
			})
		}
	}

	dups := make([]DuplicatePreview, 0)
	for id, ls := range lines {
		if len(ls) > 1 {
			resp.Summary.DuplicateInFile += len(ls) - 1
			dups = append(dups, DuplicatePreview{ID: id, Lines: ls})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Lines[0] < dups[j].Lines[0] })
	if len(dups) > maxDuplicateSamples {
		dups = dups[:maxDuplicateSamples]
	}
	resp.DuplicateSamples = dups

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}
