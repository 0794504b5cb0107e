package core

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/feedwizard/internal/schema"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkToNumeric benchmarks price coercion.
// This is a hot path during ingest: every row has a price.
func BenchmarkToNumeric(b *testing.B) {
	testCases := []string{
		"599",
		"199,99",
		"1 299,00 kr",
		"SEK 79.50",
		" 1 999,00",
		"  12.5  ",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToNumeric(tc)
		}
	}
}

// BenchmarkToNumeric_Simple benchmarks the most common case: plain integers.
func BenchmarkToNumeric_Simple(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ToNumeric("12345")
	}
}

// BenchmarkCleanCell benchmarks header cleanup.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"\ufeffArtnr",
		"  Produktnamn ",
		`="0042"`,
		"Pris",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// ============================================================================
// Feed Benchmarks
// ============================================================================

// benchFeed builds a semicolon feed with n product rows, every tenth invalid.
func benchFeed(n int) string {
	var b strings.Builder
	b.WriteString("Artnr;Produktnamn;Pris;Tillverkare;Kategori;Beskrivning;BildURL\n")
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("Produkt %d", i)
		if i%10 == 0 {
			title = ""
		}
		fmt.Fprintf(&b, "%d;%s;%d,95;Gymstick;Träning;\"<p>Beskrivning %d</p>\";https://hefitness.se/img/%d.jpg\n",
			i, title, i%500, i, i)
	}
	return b.String()
}

// BenchmarkParseFeed benchmarks CSV parsing with delimiter detection.
func BenchmarkParseFeed(b *testing.B) {
	feed := benchFeed(1000)
	b.SetBytes(int64(len(feed)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseFeed(strings.NewReader(feed), FormatCSV, schema.Product); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkValidate benchmarks coercion plus validation of parsed rows.
func BenchmarkValidate(b *testing.B) {
	feed, err := ParseFeed(strings.NewReader(benchFeed(1000)), FormatCSV, schema.Product)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v := NewValidator(schema.Product)
		for _, row := range feed.Rows {
			v.Validate(Coerce(row, schema.Product))
		}
	}
}

// BenchmarkDriverRun benchmarks a full run against the in-memory store.
func BenchmarkDriverRun(b *testing.B) {
	feed := benchFeed(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d := NewDriver(&memAcquirer{store: newMemStore()})
		rep := d.Run(context.Background(), csvFeed("bench.csv", feed))
		if rep.Err != nil {
			b.Fatal(rep.Err)
		}
	}
}
