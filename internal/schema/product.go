package schema

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
)

// Issue codes reported by the validator, in the order rules are evaluated.
const (
	RuleMissingID         = "missing_id"
	RuleDuplicateID       = "duplicate_id"
	RuleMissingTitle      = "missing_title"
	RuleMissingPrice      = "missing_price"
	RuleInvalidPrice      = "invalid_price"
	RuleNegativePrice     = "negative_price"
	RuleInvalidImageURL   = "invalid_image_url"
	RuleInvalidProductURL = "invalid_product_url"
	RuleTypeCoercion      = "type_coercion"
)

// Canonical product column names.
const (
	ColID          = "id"
	ColTitle       = "title"
	ColPrice       = "price"
	ColBrand       = "brand"
	ColCategory    = "category"
	ColDescription = "description"
	ColImageURL    = "image_url"
	ColGTIN        = "gtin"
	ColProductURL  = "product_url"
	ColStock       = "stock"
)

// Availability values derived from the stock column.
const (
	InStock             = "in_stock"
	OutOfStock          = "out_of_stock"
	AvailabilityUnknown = "unknown"
)

var urlValidate = validator.New()

// Product is the product feed schema. Aliases cover the Swedish column
// names used by the hefitness.se feed.
var Product = New(
	Column{
		Name:        ColID,
		Aliases:     []string{"artnr", "sku", "product_id"},
		Type:        String,
		Required:    true,
		MissingRule: RuleMissingID,
		Key:         true,
	},
	Column{
		Name:        ColTitle,
		Aliases:     []string{"produktnamn", "name", "product_name"},
		Type:        String,
		Required:    true,
		MissingRule: RuleMissingTitle,
	},
	Column{
		Name:        ColPrice,
		Aliases:     []string{"pris"},
		Type:        Decimal,
		Required:    true,
		MissingRule: RuleMissingPrice,
		Validators: []Predicate{
			{Rule: RuleInvalidPrice, Test: finite},
			{Rule: RuleNegativePrice, Test: nonNegative},
		},
	},
	Column{Name: ColBrand, Aliases: []string{"tillverkare", "manufacturer"}, Type: OptionalString},
	Column{Name: ColCategory, Aliases: []string{"varugrupp"}, Type: OptionalString},
	Column{Name: ColDescription, Aliases: []string{"beskrivning"}, Type: OptionalString},
	Column{
		Name:       ColImageURL,
		Aliases:    []string{"bildurl", "image_link"},
		Type:       OptionalURL,
		Validators: []Predicate{{Rule: RuleInvalidImageURL, Test: httpURL}},
	},
	Column{
		Name:       ColGTIN,
		Aliases:    []string{"ean"},
		Type:       OptionalString,
		Normalizer: NormalizeGTIN,
	},
	Column{
		Name:       ColProductURL,
		Aliases:    []string{"url", "link"},
		Type:       OptionalURL,
		Validators: []Predicate{{Rule: RuleInvalidProductURL, Test: httpURL}},
	},
	Column{Name: ColStock, Aliases: []string{"lagersaldo", "lager", "quantity"}, Type: OptionalInteger},
)

// Availability derives the availability of a product from its stock cell.
// hasColumn reports whether the feed carries a stock column at all; a feed
// without one says nothing about availability. Blank or unparseable stock in
// a feed that has the column counts as out of stock.
func Availability(stock Value, hasColumn bool) string {
	switch {
	case !hasColumn:
		return AvailabilityUnknown
	case stock.Present && stock.Int > 0:
		return InStock
	default:
		return OutOfStock
	}
}

func finite(v Value) (bool, string) {
	if v.Decimal.NaN || v.Decimal.InfinityModifier != pgtype.Finite {
		return false, "price must be a finite number"
	}
	return true, ""
}

func nonNegative(v Value) (bool, string) {
	if v.Decimal.Int != nil && v.Decimal.Int.Sign() < 0 {
		return false, "price must not be negative"
	}
	return true, ""
}

func httpURL(v Value) (bool, string) {
	if err := urlValidate.Var(v.Text, "required,http_url"); err != nil {
		return false, "not a well-formed http(s) URL"
	}
	return true, ""
}

var nonDigit = regexp.MustCompile(`\D`)

// NormalizeGTIN keeps only digits and returns "" unless the result has a
// retail GTIN length (8, 12, 13 or 14). Feeds sometimes carry placeholder
// text such as "identifier_exists=no" in this column.
func NormalizeGTIN(s string) string {
	digits := nonDigit.ReplaceAllString(s, "")
	switch len(digits) {
	case 8, 12, 13, 14:
		return digits
	default:
		return ""
	}
}
