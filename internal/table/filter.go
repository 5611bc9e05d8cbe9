package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"adsdash/pkg/adtypes"
)

// Operator is a filter comparison.
type Operator string

// Filter operators. Ordering operators and range apply to numbers and dates,
// contains and = apply to text.
const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpContains     Operator = "contains"
	OpRange        Operator = "range"
)

const dateLayout = "2006-01-02"

// Condition is one filter on a column. A row set is filtered by the conjunction of all
// active conditions. ValueTo is only used by range, as the inclusive upper bound.
type Condition struct {
	ID       string   `json:"id"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
	ValueTo  string   `json:"value_to,omitempty"`
}

// NewCondition builds a condition with a fresh id after checking the operator.
func NewCondition(field string, op Operator, value, valueTo string) (Condition, error) {
	if strings.TrimSpace(field) == "" {
		return Condition{}, fmt.Errorf("filter field cannot be empty")
	}
	if !op.valid() {
		return Condition{}, fmt.Errorf("unknown filter operator %q", op)
	}
	return Condition{
		ID:       uuid.New().String(),
		Field:    strings.TrimSpace(field),
		Operator: op,
		Value:    strings.TrimSpace(value),
		ValueTo:  strings.TrimSpace(valueTo),
	}, nil
}

func (op Operator) valid() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual, OpContains, OpRange:
		return true
	}
	return false
}

// ParseCondition parses the command-line form of a filter:
//
//	roas>=2.5
//	cost<100
//	campaign contains brand
//	date range 2026-01-01..2026-01-31
func ParseCondition(expr string) (Condition, error) {
	expr = strings.TrimSpace(expr)

	for _, word := range []Operator{OpContains, OpRange} {
		sep := " " + string(word) + " "
		if i := strings.Index(expr, sep); i > 0 {
			field, value := expr[:i], expr[i+len(sep):]
			if word == OpRange {
				lo, hi, ok := strings.Cut(value, "..")
				if !ok {
					return Condition{}, fmt.Errorf("range filter needs lo..hi, got %q", value)
				}
				return NewCondition(field, OpRange, lo, hi)
			}
			return NewCondition(field, OpContains, value, "")
		}
	}

	// Two-character operators first so ">=" is not read as ">".
	for _, op := range []Operator{OpGreaterEqual, OpLessEqual, OpGreater, OpLess, OpEqual} {
		if i := strings.Index(expr, string(op)); i > 0 {
			return NewCondition(expr[:i], op, expr[i+len(op):], "")
		}
	}

	return Condition{}, fmt.Errorf("cannot parse filter %q", expr)
}

// String renders the condition in the form accepted by ParseCondition.
func (c Condition) String() string {
	switch c.Operator {
	case OpContains:
		return fmt.Sprintf("%s contains %s", c.Field, c.Value)
	case OpRange:
		return fmt.Sprintf("%s range %s..%s", c.Field, c.Value, c.ValueTo)
	default:
		return c.Field + string(c.Operator) + c.Value
	}
}

// Active reports whether the condition constrains anything. Half-filled conditions
// (no field, no value) let every row through.
func (c Condition) Active() bool {
	if c.Field == "" {
		return false
	}
	if c.Operator == OpRange {
		return c.Value != "" || c.ValueTo != ""
	}
	return c.Value != ""
}

// Match reports whether row satisfies the condition.
func (c Condition) Match(row adtypes.Row) bool {
	if !c.Active() {
		return true
	}

	cell := row[c.Field]
	text := strings.TrimSpace(Text(cell))

	switch c.Operator {
	case OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(c.Value))
	case OpEqual:
		if cmp, ok := orderedCompare(cell, c.Value); ok {
			return cmp == 0
		}
		return strings.EqualFold(text, c.Value)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		cmp, ok := orderedCompare(cell, c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGreater:
			return cmp > 0
		case OpLess:
			return cmp < 0
		case OpGreaterEqual:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	case OpRange:
		if c.Value != "" {
			cmp, ok := orderedCompare(cell, c.Value)
			if !ok || cmp < 0 {
				return false
			}
		}
		if c.ValueTo != "" {
			cmp, ok := orderedCompare(cell, c.ValueTo)
			if !ok || cmp > 0 {
				return false
			}
		}
		return true
	}
	return false
}

// orderedCompare compares a cell with a filter operand as numbers or as dates.
// It reports false when the pair is neither.
func orderedCompare(cell any, operand string) (int, bool) {
	if a, ok := sortNumber(cell); ok {
		if b, ok := sortNumber(operand); ok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			}
			return 0, true
		}
	}

	a, aerr := parseDate(Text(cell))
	b, berr := parseDate(operand)
	if aerr != nil || berr != nil {
		return 0, false
	}
	return a.Compare(b), true
}

// parseDate accepts YYYY-MM-DD, optionally followed by a time part.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

// Apply returns the rows matching every condition, in their original order.
// It never modifies rows or conds.
func Apply(rows []adtypes.Row, conds []Condition) []adtypes.Row {
	out := make([]adtypes.Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, c := range conds {
			if !c.Match(row) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}
