package core

// parse.go reads a feed into ordered rows keyed by canonical column name.
//
// The parser performs three jobs:
//  1. Header reconciliation: every required schema column must be present
//  2. Row shaping: short rows are padded, over-long rows are folded into the
//     last column (unquoted delimiters inside descriptions)
//  3. Type coercion (Coerce): trims strings and parses decimals, recording a
//     type_coercion issue instead of failing the row. Optional integers that
//     do not parse are simply absent.
//
// Structural problems with the feed are reported as *FatalIngestError.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/feedwizard/internal/schema"
	"github.com/xuri/excelize/v2"
)

// FatalIngestError reports a problem with the feed itself. A run that hits
// one persists nothing.
type FatalIngestError struct {
	Feed    string   // Feed name
	Reason  string   // Short description of the problem
	Missing []string // Missing required columns, if that is the reason
	Err     error    // Underlying read error, if any
}

func (e *FatalIngestError) Error() string {
	var b strings.Builder
	b.WriteString("fatal ingest error")
	if e.Feed != "" {
		fmt.Fprintf(&b, " in %q", e.Feed)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if len(e.Missing) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FatalIngestError) Unwrap() error { return e.Err }

// IsFatalIngest reports whether err is or wraps a *FatalIngestError.
func IsFatalIngest(err error) bool {
	var fe *FatalIngestError
	return errors.As(err, &fe)
}

// HeaderIndex maps canonical column names to their position in a row.
type HeaderIndex map[string]int

// Feed is a parsed feed.
type Feed struct {
	Name      string
	Headers   []string // Canonical header names, in file order
	Rows      []ParsedRow
	Delimiter rune
	BytesRead int64
}

// Parser reads feeds against a schema.
type Parser struct {
	Schema    schema.Schema
	Delimiter rune     // 0 means detect from the header line
	Encoding  Encoding // CSV only; empty means UTF-8
}

// ParseFeed reads r with delimiter detection and UTF-8 decoding.
func ParseFeed(r io.Reader, format Format, sch schema.Schema) (*Feed, error) {
	return Parser{Schema: sch}.Parse(FeedSource{Format: format, Reader: r})
}

// DetectFormat picks a feed format from a file name. Anything that is not
// an Excel workbook is read as delimited text.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Parse reads every row of src. Input order is preserved.
func (p Parser) Parse(src FeedSource) (*Feed, error) {
	if src.Reader == nil {
		return nil, &FatalIngestError{Feed: src.Name, Reason: "no feed content"}
	}
	format := src.Format
	if format == "" {
		format = DetectFormat(src.Name)
	}

	switch format {
	case FormatXLSX:
		return p.parseXLSX(src)
	case FormatCSV:
		return p.parseCSV(src)
	default:
		return nil, &FatalIngestError{Feed: src.Name, Reason: fmt.Sprintf("unsupported feed format %q", format)}
	}
}

func (p Parser) parseCSV(src FeedSource) (*Feed, error) {
	decoded, counter := WrapForStreaming(src.Reader, src.Size, p.Encoding)
	br := bufio.NewReaderSize(decoded, 64*1024)

	delim := p.Delimiter
	if delim == 0 {
		head, err := br.Peek(br.Size())
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, &FatalIngestError{Feed: src.Name, Reason: "unreadable feed", Err: err}
		}
		delim = DetectDelimiter(head)
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	feed := &Feed{Name: src.Name, Delimiter: delim}
	var idx HeaderIndex

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FatalIngestError{Feed: src.Name, Reason: "unreadable feed", Err: err}
		}
		if isEmptyRow(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		if idx == nil {
			feed.Headers = canonicalHeaders(record, p.Schema)
			idx, err = ValidateHeaders(feed.Headers, p.Schema)
			if err != nil {
				return nil, &FatalIngestError{Feed: src.Name, Reason: "missing required columns", Missing: missingOf(err)}
			}
			continue
		}

		feed.Rows = append(feed.Rows, ParsedRow{
			Line: line,
			Raw:  shapeRow(record, feed.Headers, string(delim)),
		})
	}

	if idx == nil {
		return nil, &FatalIngestError{Feed: src.Name, Reason: "empty feed"}
	}
	feed.BytesRead = counter.BytesRead
	return feed, nil
}

func (p Parser) parseXLSX(src FeedSource) (*Feed, error) {
	counter := NewStreamingCountingReader(src.Reader, src.Size)
	f, err := excelize.OpenReader(counter)
	if err != nil {
		return nil, &FatalIngestError{Feed: src.Name, Reason: "unreadable workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FatalIngestError{Feed: src.Name, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &FatalIngestError{Feed: src.Name, Reason: "unreadable sheet", Err: err}
	}

	feed := &Feed{Name: src.Name}
	var idx HeaderIndex

	for i, record := range rows {
		if isEmptyRow(record) {
			continue
		}
		if idx == nil {
			feed.Headers = canonicalHeaders(record, p.Schema)
			idx, err = ValidateHeaders(feed.Headers, p.Schema)
			if err != nil {
				return nil, &FatalIngestError{Feed: src.Name, Reason: "missing required columns", Missing: missingOf(err)}
			}
			continue
		}
		// Spreadsheet cells cannot overflow into neighbours, so nothing is
		// folded; GetRows trims trailing empty cells, which padding restores.
		feed.Rows = append(feed.Rows, ParsedRow{
			Line: i + 1,
			Raw:  shapeRow(record, feed.Headers, ""),
		})
	}

	if idx == nil {
		return nil, &FatalIngestError{Feed: src.Name, Reason: "empty feed"}
	}
	feed.BytesRead = counter.BytesRead
	return feed, nil
}

// DetectDelimiter picks ';', '\t' or ',' by counting occurrences in the
// first line of head. Ties and lines without any candidate fall back to ','.
func DetectDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', bytes.Count(head, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if c := bytes.Count(head, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func canonicalHeaders(record []string, sch schema.Schema) []string {
	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = sch.Canonical(CleanCell(h))
	}
	return headers
}

// shapeRow maps a record onto headers. Missing trailing cells become ""; when
// sep is non-empty, cells beyond the header width are joined with sep into
// the last column.
func shapeRow(record []string, headers []string, sep string) RawRow {
	n := len(headers)
	if len(record) > n && n > 0 && sep != "" {
		folded := make([]string, n)
		copy(folded, record[:n-1])
		folded[n-1] = strings.Join(record[n-1:], sep)
		record = folded
	}

	row := make(RawRow, n)
	for i, h := range headers {
		if h == "" {
			continue
		}
		if _, dup := row[h]; dup {
			// First occurrence of a repeated header wins.
			continue
		}
		if i < len(record) {
			row[h] = cleanValue(record[i])
		} else {
			row[h] = ""
		}
	}
	return row
}

// MakeHeaderIndex maps canonical headers to their first position.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

// missingColumnsError lists required columns absent from a header row.
type missingColumnsError struct {
	Missing []string
}

func (e *missingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// ValidateHeaders checks that every required column of sch is in headers.
// Returns the header index, or an error listing all missing columns.
func ValidateHeaders(headers []string, sch schema.Schema) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, name := range sch.Required() {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, &missingColumnsError{Missing: missing}
	}

	return idx, nil
}

func missingOf(err error) []string {
	var mc *missingColumnsError
	if errors.As(err, &mc) {
		return mc.Missing
	}
	return nil
}

// Coerce converts a parsed row into a Candidate using the column types of
// sch. A coercion failure is recorded as a type_coercion issue and the field
// is treated as absent.
func Coerce(row ParsedRow, sch schema.Schema) Candidate {
	c := Candidate{
		Line:   row.Line,
		Raw:    row.Raw,
		Values: make(map[string]schema.Value, len(sch.Columns)),
	}

	for _, col := range sch.Columns {
		raw := strings.TrimSpace(row.Raw[col.Name])
		if col.Normalizer != nil && raw != "" {
			raw = col.Normalizer(raw)
		}
		if raw == "" {
			c.Values[col.Name] = schema.Value{}
			continue
		}

		switch col.Type {
		case schema.Decimal:
			n := ToNumeric(raw)
			if !n.Valid {
				c.Issues = append(c.Issues, ValidationIssue{
					Field:   col.Name,
					Rule:    schema.RuleTypeCoercion,
					Message: fmt.Sprintf("cannot parse %q as %s", raw, col.Type),
				})
				c.Values[col.Name] = schema.Value{}
				continue
			}
			c.Values[col.Name] = schema.Value{Text: raw, Decimal: n, Present: true}
		case schema.OptionalInteger:
			n, ok := ToInt(raw)
			c.Values[col.Name] = schema.Value{Text: raw, Int: n, Present: ok}
		default:
			c.Values[col.Name] = schema.Value{Text: raw, Present: true}
		}
	}

	return c
}
