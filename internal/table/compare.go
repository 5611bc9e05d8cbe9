package table

import (
	"math"
	"strconv"
	"strings"
)

// sortNoise is removed from strings before deciding whether they are numbers.
var sortNoise = strings.NewReplacer("$", "", "%", "", ",", "")

// sortNumber reports the numeric value of v for sorting purposes. Strings count as numbers
// only when, once currency, percent and thousands symbols are removed, the whole string
// is a number; "2026-01-01" therefore stays a string.
func sortNumber(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, !math.IsNaN(f)
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	cleaned := strings.TrimSpace(sortNoise.Replace(s))
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Compare orders two cell values ascending. nil sorts as the empty string. When both
// values are numeric they compare numerically, otherwise they compare as lower-cased text.
// A string is numeric only when all of it parses, so "10 clicks" and dates compare as text.
func Compare(a, b any) int {
	if a == nil {
		a = ""
	}
	if b == nil {
		b = ""
	}

	an, aok := sortNumber(a)
	bn, bok := sortNumber(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(strings.ToLower(Text(a)), strings.ToLower(Text(b)))
}
