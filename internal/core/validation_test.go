package core

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/feedwizard/internal/schema"
)

func candidate(line int, raw RawRow) Candidate {
	return Coerce(ParsedRow{Line: line, Raw: raw}, schema.Product)
}

func TestValidator_Rules(t *testing.T) {
	tests := []struct {
		name        string
		raw         RawRow
		wantReasons []string
	}{
		{
			name: "valid row",
			raw:  RawRow{"id": "1", "title": "Shoe", "price": "29.99"},
		},
		{
			name: "zero price is valid",
			raw:  RawRow{"id": "1", "title": "Free sample", "price": "0"},
		},
		{
			name:        "missing title",
			raw:         RawRow{"id": "1", "title": "   ", "price": "10"},
			wantReasons: []string{schema.RuleMissingTitle},
		},
		{
			name:        "missing id",
			raw:         RawRow{"id": "", "title": "Shoe", "price": "10"},
			wantReasons: []string{schema.RuleMissingID},
		},
		{
			name:        "missing price",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": ""},
			wantReasons: []string{schema.RuleMissingPrice},
		},
		{
			name:        "negative price",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": "-5"},
			wantReasons: []string{schema.RuleNegativePrice},
		},
		{
			name:        "nan price",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": "NaN"},
			wantReasons: []string{schema.RuleInvalidPrice},
		},
		{
			name:        "unparseable price",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": "abc"},
			wantReasons: []string{schema.RuleMissingPrice, schema.RuleTypeCoercion},
		},
		{
			name:        "bad image url",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": "1", "image_url": "shoe.jpg"},
			wantReasons: []string{schema.RuleInvalidImageURL},
		},
		{
			name:        "bad product url",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": "1", "product_url": "hefitness.se/shoe"},
			wantReasons: []string{schema.RuleInvalidProductURL},
		},
		{
			name:        "absent urls are fine",
			raw:         RawRow{"id": "1", "title": "Shoe", "price": "1", "image_url": "", "product_url": ""},
			wantReasons: nil,
		},
		{
			name: "every rule in order",
			raw: RawRow{
				"id": "", "title": "", "price": "-1",
				"image_url": "nope", "product_url": "nope",
			},
			wantReasons: []string{
				schema.RuleMissingID,
				schema.RuleMissingTitle,
				schema.RuleNegativePrice,
				schema.RuleInvalidImageURL,
				schema.RuleInvalidProductURL,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewValidator(schema.Product).Validate(candidate(2, tt.raw))

			if len(tt.wantReasons) == 0 {
				if out.Accepted == nil || out.Rejected != nil {
					t.Fatalf("expected accepted, got rejected %v", out.Rejected.Reasons())
				}
				return
			}
			if out.Rejected == nil || out.Accepted != nil {
				t.Fatal("expected rejected, got accepted")
			}
			got := out.Rejected.Reasons()
			if strings.Join(got, ",") != strings.Join(tt.wantReasons, ",") {
				t.Errorf("reasons = %v, want %v", got, tt.wantReasons)
			}
			if out.Rejected.Line != 2 {
				t.Errorf("Line = %d, want 2", out.Rejected.Line)
			}
		})
	}
}

func TestValidator_MissingTitleDoesNotMaskPrice(t *testing.T) {
	v := NewValidator(schema.Product)
	out := v.Validate(candidate(2, RawRow{"id": "1", "title": "", "price": "10"}))

	if out.Rejected == nil {
		t.Fatal("expected rejected")
	}
	for _, r := range out.Rejected.Reasons() {
		if strings.Contains(r, "price") {
			t.Errorf("valid price produced reason %q", r)
		}
	}
}

func TestValidator_Duplicates(t *testing.T) {
	v := NewValidator(schema.Product)

	rows := []RawRow{
		{"id": "1", "title": "Shoe", "price": "29.99"},
		{"id": "2", "title": "", "price": "10"},
		{"id": "1", "title": "Shoe2", "price": "15"},
		{"id": "2", "title": "Bag", "price": "5"},
		{"id": "1", "title": "", "price": "1"},
	}
	want := [][]string{
		nil,
		{schema.RuleMissingTitle},
		{schema.RuleDuplicateID},
		{schema.RuleDuplicateID},
		{schema.RuleDuplicateID, schema.RuleMissingTitle},
	}

	for i, raw := range rows {
		out := v.Validate(candidate(i+2, raw))
		if want[i] == nil {
			if out.Accepted == nil {
				t.Errorf("row %d: expected accepted, got %v", i, out.Rejected.Reasons())
			}
			continue
		}
		if out.Rejected == nil {
			t.Errorf("row %d: expected rejected", i)
			continue
		}
		if got := out.Rejected.Reasons(); strings.Join(got, ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d: reasons = %v, want %v", i, got, want[i])
		}
	}

	if v.Seen() != 2 {
		t.Errorf("Seen() = %d, want 2", v.Seen())
	}
}

func TestValidator_AcceptedRecord(t *testing.T) {
	raw := RawRow{
		"id":          "1001",
		"title":       "Löparsko",
		"price":       "599,00",
		"brand":       "Nike",
		"category":    "Skor",
		"description": "<p>Lätt</p>",
		"image_url":   "https://hefitness.se/img/1001.jpg",
		"gtin":        "7350012345678",
		"product_url": "https://hefitness.se/p/1001",
	}
	out := NewValidator(schema.Product).Validate(candidate(3, raw))
	if out.Accepted == nil {
		t.Fatalf("expected accepted, got %v", out.Rejected.Reasons())
	}

	rec := out.Accepted
	if rec.ID != "1001" || rec.Title != "Löparsko" || rec.Brand != "Nike" || rec.Category != "Skor" {
		t.Errorf("record = %+v", rec)
	}
	if got := NumericString(rec.Price); got != "599.00" {
		t.Errorf("Price = %q, want 599.00", got)
	}
	if rec.GTIN != "7350012345678" || rec.ProductURL == "" || rec.ImageURL == "" {
		t.Errorf("optional fields not carried: %+v", rec)
	}
	if rec.Line != 3 {
		t.Errorf("Line = %d, want 3", rec.Line)
	}
}

func TestRejectedRecord_KeepsOriginalRow(t *testing.T) {
	raw := RawRow{"id": "9", "title": "", "price": "1", "lagersaldo": "3"}
	out := NewValidator(schema.Product).Validate(candidate(4, raw))
	if out.Rejected == nil {
		t.Fatal("expected rejected")
	}
	if out.Rejected.Original["lagersaldo"] != "3" {
		t.Errorf("Original = %v, want the raw row", out.Rejected.Original)
	}
	if out.Rejected.Issues[0].Field != "title" || out.Rejected.Issues[0].Message == "" {
		t.Errorf("issue = %+v", out.Rejected.Issues[0])
	}
}

func TestValidator_Availability(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRow
		want string
	}{
		{"in stock", RawRow{"id": "1", "title": "Shoe", "price": "1", "stock": "12"}, schema.InStock},
		{"zero stock", RawRow{"id": "1", "title": "Shoe", "price": "1", "stock": "0"}, schema.OutOfStock},
		{"negative stock", RawRow{"id": "1", "title": "Shoe", "price": "1", "stock": "-2"}, schema.OutOfStock},
		{"blank stock cell", RawRow{"id": "1", "title": "Shoe", "price": "1", "stock": ""}, schema.OutOfStock},
		{"unparseable stock", RawRow{"id": "1", "title": "Shoe", "price": "1", "stock": "many"}, schema.OutOfStock},
		{"no stock column", RawRow{"id": "1", "title": "Shoe", "price": "1"}, schema.AvailabilityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewValidator(schema.Product).Validate(candidate(2, tt.raw))
			if out.Accepted == nil {
				t.Fatalf("expected accepted, got %v", out.Rejected.Reasons())
			}
			if out.Accepted.Availability != tt.want {
				t.Errorf("Availability = %q, want %q", out.Accepted.Availability, tt.want)
			}
		})
	}
}
