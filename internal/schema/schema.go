// Package schema declares the columns a product feed is expected to carry,
// their semantic types, and the per-field predicates run by the validator.
//
// Adding a feed field means adding a Column here; the row parser and the
// validator are driven entirely by the declared columns.
package schema

import (
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Type is the semantic type of a feed column.
type Type int

const (
	String Type = iota
	Decimal
	OptionalString
	OptionalURL
	OptionalInteger // Unparseable values are treated as absent, not as an issue
)

// String returns a human-readable name for the type.
func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Decimal:
		return "decimal"
	case OptionalString:
		return "optional-string"
	case OptionalURL:
		return "optional-url"
	case OptionalInteger:
		return "optional-integer"
	default:
		return "unknown"
	}
}

// Value is a coerced field value. Present is false when the raw cell was
// empty, normalized away, or failed coercion.
type Value struct {
	Text    string
	Decimal pgtype.Numeric
	Int     int64
	Present bool
}

// Predicate checks a present, coerced value. On failure it returns false and
// a message; Rule is the issue code reported for the failure.
type Predicate struct {
	Rule string
	Test func(Value) (ok bool, msg string)
}

// Column describes one feed column.
type Column struct {
	Name        string              // Canonical column name
	Aliases     []string            // Alternative header names, already snake_cased
	Type        Type                // Semantic type used for coercion
	Required    bool                // Header must exist and every row must carry a value
	MissingRule string              // Issue code for an absent required value
	Key         bool                // Identifies the record; duplicates within a batch are rejected
	Normalizer  func(string) string // Optional transformation applied before coercion
	Validators  []Predicate         // Evaluated in order against present values
}

// Schema is an ordered list of columns. Column order is rule order.
type Schema struct {
	Columns []Column

	aliases map[string]string
}

// New builds a Schema and indexes its aliases.
func New(columns ...Column) Schema {
	s := Schema{
		Columns: columns,
		aliases: make(map[string]string, len(columns)*2),
	}
	for _, c := range columns {
		s.aliases[c.Name] = c.Name
		for _, a := range c.Aliases {
			s.aliases[a] = c.Name
		}
	}
	return s
}

// Column returns the column with the given canonical name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Required returns the names of all required columns in declaration order.
func (s Schema) Required() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}

// KeyColumn returns the first column flagged as Key.
func (s Schema) KeyColumn() (Column, bool) {
	for _, c := range s.Columns {
		if c.Key {
			return c, true
		}
	}
	return Column{}, false
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// NormalizeHeader converts a feed header cell to snake_case.
// "Kampanjvara (1/0)" becomes "kampanjvara_1_0".
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = nonWord.ReplaceAllString(h, "_")
	h = strings.Trim(h, "_")
	return strings.ToLower(h)
}

// Canonical maps a raw header cell to its canonical column name. Headers
// that match no column are returned snake_cased so they can still be kept
// in the raw row.
func (s Schema) Canonical(header string) string {
	key := NormalizeHeader(header)
	if name, ok := s.aliases[key]; ok {
		return name
	}
	return key
}
