package table

import (
	"math"
	"regexp"
	"strings"
)

// Tone tells the renderer how to color a formatted cell.
type Tone int

// Cell tones.
const (
	ToneNormal Tone = iota
	ToneGood
	ToneBad
	ToneMuted
)

// Cell is a formatted table cell.
type Cell struct {
	Text string
	Tone Tone
}

// moneyColumns always render with two decimals.
var moneyColumns = map[string]bool{
	"cost":                   true,
	"conv_value":             true,
	"cpa":                    true,
	"cpa_before_7d_average":  true,
	"cost_conv":              true,
	"roas":                   true,
	"roas_before_7d_average": true,
	"avg_cpc":                true,
	"price":                  true,
	"budget":                 true,
	"avg_cpm":                true,
}

var (
	currencySymbols = regexp.MustCompile(`[$,€£¥₩\x{20BD}\x{20B9}\x{20A9}]`)
	nonNumeric      = regexp.MustCompile(`[^\d.-]`)
)

// cellNumber extracts the number shown in a cell, dropping every character that is not
// a digit, dot or minus sign first.
func cellNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if f, ok := number(v); ok {
		return f, !math.IsNaN(f)
	}
	return parsePrefix(nonNumeric.ReplaceAllString(Text(v), ""))
}

// FormatCell renders value for column using the column-name heuristics of the dashboard:
// money columns get two decimals, rate columns a percent suffix, and the two comparison
// columns an arrow whose tone says whether the change is good or bad.
func FormatCell(column string, value any) Cell {
	if value == nil {
		return Cell{Text: "-", Tone: ToneNormal}
	}

	content := strings.TrimSpace(currencySymbols.ReplaceAllString(Text(value), ""))
	num, isNumber := cellNumber(value)
	lower := strings.ToLower(column)

	switch {
	case moneyColumns[column] || strings.Contains(lower, "price") || strings.Contains(lower, "cost"):
		if isNumber {
			content = toFixed2(num)
		}
	case strings.Contains(column, "cvr") || strings.Contains(column, "ctr") || strings.Contains(column, "percent"):
		if isNumber {
			content = toFixed2(num) + "%"
		}
	case column == "roas_compare":
		// A ROAS rise is good.
		if isNumber {
			return compareCell(num, num > 0)
		}
	case column == "cpa_compare":
		// A CPA drop is good.
		if isNumber {
			return compareCell(num, num < 0)
		}
	}

	return Cell{Text: content, Tone: ToneNormal}
}

func compareCell(num float64, good bool) Cell {
	if math.Abs(num) < 0.001 {
		return Cell{Text: "0.00", Tone: ToneMuted}
	}
	arrow := "▼"
	if num > 0 {
		arrow = "▲"
	}
	tone := ToneBad
	if good {
		tone = ToneGood
	}
	return Cell{Text: arrow + " " + toFixed2(math.Abs(num)), Tone: tone}
}
