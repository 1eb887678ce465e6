// Package normalize canonicalizes raw extracted numeric strings so values from
// different engines can be compared for equality regardless of formatting.
package normalize

import (
	"strconv"
	"strings"
)

// currencyReplacer strips currency symbols and formatting characters that
// carry no numeric meaning.
var currencyReplacer = strings.NewReplacer(
	"$", "",
	"€", "",
	"£", "",
	"₹", "",
	"¥", "",
	",", "",
	" ", "",
	"\t", "",
	" ", "",
)

// Normalize maps a raw extracted value to a canonical comparable string.
// Currency symbols, thousands separators and whitespace are stripped, a value
// wrapped in parentheses is treated as negative (accounting convention), and a
// trailing percent sign is dropped. Input that still fails to parse as a
// number is returned trimmed and otherwise untouched, so equality comparisons
// downstream stay well-defined. Normalize is pure and idempotent.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	v, ok := ParseAmount(trimmed)
	if !ok {
		return trimmed
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseAmount parses a raw extracted value into a float64 after stripping
// formatting. The second return value reports whether the input was numeric;
// malformed input yields (0, false) rather than an error.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = currencyReplacer.Replace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// IsPercent reports whether a raw value carries percentage semantics.
// Normalize strips the sign; callers that care about units check here.
func IsPercent(raw string) bool {
	return strings.HasSuffix(strings.TrimSpace(raw), "%")
}
