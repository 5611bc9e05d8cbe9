// Package table implements the client-side table engine of adsdash: value comparison,
// sorting, filter conditions, cell formatting, column widths and incremental row reveal.
// Rows are opaque maps shaped by the backend; nothing here validates a schema.
package table

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// floatPrefix matches the longest leading decimal number, the way browsers parse a
// number at the start of a string and ignore the rest.
var floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Text returns the display string of a cell value. nil becomes the empty string.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// number returns v as a float when it is already numeric.
func number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

// parsePrefix parses the leading number of s, ignoring leading whitespace and any trailing text.
func parsePrefix(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimLeft(s, " \t\r\n"))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// looseFloat converts v to a number, yielding 0 for anything that does not start with one.
func looseFloat(v any) float64 {
	if f, ok := number(v); ok {
		return f
	}
	if f, ok := parsePrefix(Text(v)); ok {
		return f
	}
	return 0
}

// truthy mirrors the loose truthiness used by the row predicates: missing, nil,
// empty strings and zero are all false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	}
	if f, ok := number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// firstTruthy returns the first truthy value among keys, or nil.
func firstTruthy(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := row[k]; truthy(v) {
			return v
		}
	}
	return nil
}

// toFixed2 formats f with two decimals. Exact halves (multiples of 1/8 such as 0.125)
// round away from zero; everything else is already unambiguous in binary.
func toFixed2(f float64) string {
	if f*8 == math.Trunc(f*8) {
		return strconv.FormatFloat(math.Round(f*100)/100, 'f', 2, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
