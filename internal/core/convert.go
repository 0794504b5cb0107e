package core

// convert.go provides the type coercion used by the row parser and the
// small pgtype helpers used by the store.
//
// Feed values arrive in whatever shape the merchant's export produced:
//   - Currency symbols and thousand separators in prices
//   - Comma as decimal separator ("199,99")
//   - Excel formula wrappers used to keep leading zeros (="0123")
//
// ToNumeric returns Valid=false for empty or unparseable input.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation. The exponent must stay
// within maxExponent; "1e400" matches here but ToNumeric returns it invalid,
// so it surfaces as type_coercion rather than invalid_price.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxExponent bounds the decimal exponent accepted from a feed.
const maxExponent = 300

// currencyTokens are stripped from price cells before parsing.
var currencyTokens = []string{"$", "€", "£", "SEK", "sek", "kr", ":-"}

// ToNumeric converts a price cell to pgtype.Numeric.
//
// A single comma is a decimal separator; several commas, or a comma before
// a dot, are thousand separators. Spaces (including no-break spaces) are
// dropped. NaN and Infinity parse as valid non-finite values so the
// validator can report them.
func ToNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	if special, ok := nonFinite(s); ok {
		var n pgtype.Numeric
		if err := n.Scan(special); err != nil {
			return pgtype.Numeric{Valid: false}
		}
		return n
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	s = normalizeSeparators(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	return parseDecimal(s)
}

// parseDecimal builds a Numeric from a string already matched by
// numericRegex. pgtype's text scanner does not understand exponents, so the
// mantissa and exponent are split here.
func parseDecimal(s string) pgtype.Numeric {
	i := strings.IndexAny(s, "eE")
	if i < 0 {
		var n pgtype.Numeric
		if err := n.Scan(s); err != nil {
			return pgtype.Numeric{Valid: false}
		}
		return n
	}

	exp, err := strconv.ParseInt(s[i+1:], 10, 32)
	if err != nil {
		return pgtype.Numeric{Valid: false}
	}
	mantissa := s[:i]

	if dot := strings.IndexByte(mantissa, '.'); dot >= 0 {
		exp -= int64(len(mantissa) - dot - 1)
		mantissa = mantissa[:dot] + mantissa[dot+1:]
	}
	if exp > maxExponent || exp < -maxExponent {
		return pgtype.Numeric{Valid: false}
	}

	mantissa = strings.TrimPrefix(mantissa, "+")
	n, ok := new(big.Int).SetString(mantissa, 10)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}
	return pgtype.Numeric{Int: n, Exp: int32(exp), Valid: true}
}

// ToInt parses a whole-number cell such as a stock level. Spaces used as
// thousand separators are dropped. Decimals and empty cells are not integers.
func ToInt(s string) (int64, bool) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, CleanCell(s))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// normalizeSeparators rewrites s so that '.' is the only decimal separator.
func normalizeSeparators(s string) string {
	commas := strings.Count(s, ",")
	if commas == 0 {
		return s
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastDot > lastComma:
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case commas == 1:
		// 199,99
		return strings.Replace(s, ",", ".", 1)
	default:
		// 1,234,567
		return strings.ReplaceAll(s, ",", "")
	}
}

func nonFinite(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "nan":
		return "NaN", true
	case "inf", "+inf", "infinity", "+infinity":
		return "Infinity", true
	case "-inf", "-infinity":
		return "-Infinity", true
	}
	return "", false
}

// NumericString renders n for logs and prompts. Invalid values render as "".
func NumericString(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	v, err := n.Value()
	if err != nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// cleanValue trims a data cell and unwraps the ="..." Excel wrapper. Unlike
// CleanCell it leaves quotes and leading '=' alone, since titles and
// descriptions may legitimately contain them.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// isEmptyRow reports whether every cell in row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
