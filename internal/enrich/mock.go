// Package enrich provides enrichment strategies for accepted products.
//
// Mock stands in for a generative model: it derives new text from the
// record itself so the pipeline can be exercised without a model provider.
// A network-backed strategy only needs to satisfy core.Enricher.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MockPrefix marks copy produced by Mock.
const MockPrefix = "[MOCK_AI_OUT]"

// MockConfig holds Mock's length limits. Zero values use the defaults.
type MockConfig struct {
	MinTitleLength int // Titles shorter than this are rewritten (default 12)
	MaxTitleLength int // Rewritten titles are cut to this many runes (default 70)
	MaxCopyLength  int // Description body is cut to this many runes (default 240)
}

// Mock is a deterministic, template-based enrichment strategy.
type Mock struct {
	cfg   MockConfig
	title cases.Caser
}

// NewMock creates a Mock with cfg.
func NewMock(cfg MockConfig) *Mock {
	if cfg.MinTitleLength <= 0 {
		cfg.MinTitleLength = 12
	}
	if cfg.MaxTitleLength <= 1 {
		cfg.MaxTitleLength = 70
	}
	if cfg.MaxCopyLength <= 0 {
		cfg.MaxCopyLength = 240
	}
	return &Mock{cfg: cfg, title: cases.Title(language.Und)}
}

// Enrich implements core.Enricher. An empty result means the field is left
// as it is.
func (m *Mock) Enrich(ctx context.Context, rec core.ProductRecord, field core.Field) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch field {
	case core.FieldTitle:
		return m.rewriteTitle(rec), nil
	case core.FieldDescription:
		return m.describe(rec)
	default:
		return "", fmt.Errorf("mock enricher: unsupported field %q", field)
	}
}

var spaces = regexp.MustCompile(`\s+`)

// rewriteTitle prefixes short titles with the brand and title-cases them.
func (m *Mock) rewriteTitle(rec core.ProductRecord) string {
	title := strings.TrimSpace(rec.Title)
	if utf8.RuneCountInString(title) >= m.cfg.MinTitleLength {
		return ""
	}

	brand := strings.TrimSpace(rec.Brand)
	parts := make([]string, 0, 2)
	if brand != "" && !strings.HasPrefix(strings.ToLower(title), strings.ToLower(brand)) {
		parts = append(parts, brand)
	}
	if title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return ""
	}

	out := spaces.ReplaceAllString(strings.Join(parts, " "), " ")
	out = m.title.String(strings.TrimSpace(out))
	return truncateRunes(out, m.cfg.MaxTitleLength-3, m.cfg.MaxTitleLength, "…")
}

// describe builds marketing copy from the title and the plain text of the
// HTML description.
func (m *Mock) describe(rec core.ProductRecord) (string, error) {
	plain, err := PlainText(rec.Description)
	if err != nil {
		return "", err
	}
	if plain == "" {
		return "", nil
	}

	body := plain
	if title := strings.TrimSpace(rec.Title); title != "" {
		body = title + ": " + plain
	}
	body = truncateRunes(body, m.cfg.MaxCopyLength, m.cfg.MaxCopyLength, "")
	return MockPrefix + " " + strings.TrimSpace(body) + " ...", nil
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(html string) (string, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse description html: %w", err)
	}
	doc.Find("script, style").Remove()
	text := spaces.ReplaceAllString(doc.Text(), " ")
	return strings.TrimSpace(text), nil
}

// truncateRunes returns s unchanged when it has at most limit runes;
// otherwise its first keep runes followed by suffix.
func truncateRunes(s string, keep, limit int, suffix string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:keep]) + suffix
}
