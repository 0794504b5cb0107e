package core

// streaming.go wraps feed readers so the parser always sees clean UTF-8:
//
//   - A UTF-8 BOM (0xEF 0xBB 0xBF) left by Excel exports is dropped
//   - Invalid UTF-8 is replaced with U+FFFD instead of failing the feed
//   - Legacy single-byte feeds (windows-1252, iso-8859-1) are decoded
//   - Bytes consumed are counted for the run report
//
// Use WrapForStreaming to apply all transforms in the correct order.

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names a feed character encoding.
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88591    Encoding = "iso-8859-1"
)

// ParseEncoding maps a configured encoding name to an Encoding.
// The empty string means UTF-8.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return EncodingISO88591, nil
	default:
		return "", fmt.Errorf("unsupported feed encoding %q", s)
	}
}

func (e Encoding) decoder() transform.Transformer {
	switch e {
	case EncodingWindows1252:
		return charmap.Windows1252.NewDecoder()
	case EncodingISO88591:
		return charmap.ISO8859_1.NewDecoder()
	default:
		// BOMOverride consumes a leading BOM; the UTF-8 decoder replaces
		// invalid sequences with U+FFFD.
		return unicode.BOMOverride(unicode.UTF8.NewDecoder())
	}
}

// StreamingCountingReader wraps an io.Reader to track bytes read.
type StreamingCountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// WrapForStreaming counts raw feed bytes and decodes them to UTF-8.
//
// Counting wraps the raw reader so BytesRead matches the file size, not
// the decoded size.
func WrapForStreaming(r io.Reader, totalSize int64, enc Encoding) (io.Reader, *StreamingCountingReader) {
	counter := NewStreamingCountingReader(r, totalSize)
	return transform.NewReader(counter, enc.decoder()), counter
}
