package core

// validation.go classifies coerced rows as accepted or rejected.
//
// Every rule runs on every row; issues accumulate in schema column order
// followed by any coercion issues recorded by the parser. A Validator keeps
// the ids seen in its batch, so one Validator must be used per run.

import (
	"fmt"

	"github.com/JonMunkholm/feedwizard/internal/schema"
)

// Validator runs the rule set of a schema over the rows of one batch.
type Validator struct {
	schema schema.Schema
	seen   map[string]int // id -> line of first occurrence
}

// NewValidator creates a validator with an empty seen-set.
func NewValidator(sch schema.Schema) *Validator {
	return &Validator{
		schema: sch,
		seen:   make(map[string]int),
	}
}

// Validate checks c against every rule and returns exactly one of an
// accepted record or a rejected record carrying all issues in rule order.
func (v *Validator) Validate(c Candidate) Outcome {
	var issues []ValidationIssue

	for _, col := range v.schema.Columns {
		val := c.Values[col.Name]

		if !val.Present {
			if col.Required {
				issues = append(issues, ValidationIssue{
					Field:   col.Name,
					Rule:    col.MissingRule,
					Message: "required field is empty",
				})
			}
			continue
		}

		for _, p := range col.Validators {
			if ok, msg := p.Test(val); !ok {
				issues = append(issues, ValidationIssue{
					Field:   col.Name,
					Rule:    p.Rule,
					Message: msg,
				})
			}
		}

		if col.Key {
			if first, dup := v.seen[val.Text]; dup {
				issues = append(issues, ValidationIssue{
					Field:   col.Name,
					Rule:    schema.RuleDuplicateID,
					Message: fmt.Sprintf("id %q already seen on line %d", val.Text, first),
				})
			} else {
				v.seen[val.Text] = c.Line
			}
		}
	}

	issues = append(issues, c.Issues...)

	if len(issues) > 0 {
		return Outcome{Rejected: &RejectedRecord{
			Line:     c.Line,
			Original: c.Raw,
			Issues:   issues,
		}}
	}

	rec := recordFromValues(c.Values)
	_, hasStock := c.Raw[schema.ColStock]
	rec.Availability = schema.Availability(c.Values[schema.ColStock], hasStock)
	rec.Line = c.Line
	return Outcome{Accepted: &rec}
}

// Seen returns the number of distinct ids seen so far.
func (v *Validator) Seen() int {
	return len(v.seen)
}

func recordFromValues(values map[string]schema.Value) ProductRecord {
	return ProductRecord{
		ID:          values[schema.ColID].Text,
		Title:       values[schema.ColTitle].Text,
		Price:       values[schema.ColPrice].Decimal,
		Brand:       values[schema.ColBrand].Text,
		Category:    values[schema.ColCategory].Text,
		Description: values[schema.ColDescription].Text,
		ImageURL:    values[schema.ColImageURL].Text,
		GTIN:        values[schema.ColGTIN].Text,
		ProductURL:  values[schema.ColProductURL].Text,
	}
}
