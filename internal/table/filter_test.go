package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsdash/pkg/adtypes"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr    string
		field   string
		op      Operator
		value   string
		valueTo string
		wantErr bool
	}{
		{expr: "roas>=2.5", field: "roas", op: OpGreaterEqual, value: "2.5"},
		{expr: "cost < 100", field: "cost", op: OpLess, value: "100"},
		{expr: "clicks>10", field: "clicks", op: OpGreater, value: "10"},
		{expr: "cpa<=4", field: "cpa", op: OpLessEqual, value: "4"},
		{expr: "status=ENABLED", field: "status", op: OpEqual, value: "ENABLED"},
		{expr: "campaign contains brand search", field: "campaign", op: OpContains, value: "brand search"},
		{expr: "date range 2026-01-01..2026-01-31", field: "date", op: OpRange, value: "2026-01-01", valueTo: "2026-01-31"},
		{expr: "cost range ..500", field: "cost", op: OpRange, valueTo: "500"},
		{expr: "cost range 500", wantErr: true},
		{expr: "just words", wantErr: true},
		{expr: ">5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCondition(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.field, c.Field)
			assert.Equal(t, tt.op, c.Operator)
			assert.Equal(t, tt.value, c.Value)
			assert.Equal(t, tt.valueTo, c.ValueTo)
			assert.NotEmpty(t, c.ID)
		})
	}
}

func TestCondition_StringRoundTrip(t *testing.T) {
	for _, expr := range []string{"roas>=2.5", "campaign contains brand", "date range 2026-01-01..2026-01-31"} {
		c, err := ParseCondition(expr)
		require.NoError(t, err)
		assert.Equal(t, expr, c.String())
	}
}

func TestNewCondition_Validation(t *testing.T) {
	_, err := NewCondition("", OpEqual, "x", "")
	assert.Error(t, err)

	_, err = NewCondition("cost", Operator("~"), "x", "")
	assert.Error(t, err)
}

func TestCondition_Match(t *testing.T) {
	row := adtypes.Row{
		"campaign": "Brand Search EU",
		"cost":     "$1,250.00",
		"roas":     3.2,
		"date":     "2026-01-15",
		"status":   "Enabled",
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{name: "contains ignores case", cond: Condition{Field: "campaign", Operator: OpContains, Value: "brand"}, want: true},
		{name: "contains miss", cond: Condition{Field: "campaign", Operator: OpContains, Value: "shopping"}, want: false},
		{name: "greater than on currency", cond: Condition{Field: "cost", Operator: OpGreater, Value: "1000"}, want: true},
		{name: "less equal on number", cond: Condition{Field: "roas", Operator: OpLessEqual, Value: "3.2"}, want: true},
		{name: "less on number", cond: Condition{Field: "roas", Operator: OpLess, Value: "3"}, want: false},
		{name: "date greater equal", cond: Condition{Field: "date", Operator: OpGreaterEqual, Value: "2026-01-15"}, want: true},
		{name: "date less", cond: Condition{Field: "date", Operator: OpLess, Value: "2026-01-01"}, want: false},
		{name: "equal numeric", cond: Condition{Field: "roas", Operator: OpEqual, Value: "3.20"}, want: true},
		{name: "equal text ignores case", cond: Condition{Field: "status", Operator: OpEqual, Value: "enabled"}, want: true},
		{name: "ordering on text fails", cond: Condition{Field: "status", Operator: OpGreater, Value: "1"}, want: false},
		{name: "range inclusive", cond: Condition{Field: "date", Operator: OpRange, Value: "2026-01-01", ValueTo: "2026-01-15"}, want: true},
		{name: "range below", cond: Condition{Field: "roas", Operator: OpRange, Value: "4", ValueTo: "10"}, want: false},
		{name: "range open upper", cond: Condition{Field: "roas", Operator: OpRange, Value: "3"}, want: true},
		{name: "missing field fails", cond: Condition{Field: "clicks", Operator: OpGreater, Value: "1"}, want: false},
		{name: "inactive without value", cond: Condition{Field: "roas", Operator: OpGreater}, want: true},
		{name: "inactive without field", cond: Condition{Operator: OpGreater, Value: "100"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Match(row))
		})
	}
}

func TestApply(t *testing.T) {
	rows := []adtypes.Row{
		{"name": "a", "roas": 1.0, "campaign": "Brand"},
		{"name": "b", "roas": 4.0, "campaign": "Brand"},
		{"name": "c", "roas": 5.0, "campaign": "Generic"},
	}
	conds := []Condition{
		{Field: "roas", Operator: OpGreaterEqual, Value: "2"},
		{Field: "campaign", Operator: OpContains, Value: "brand"},
	}

	once := Apply(rows, conds)
	assert.Equal(t, []string{"b"}, names(once))

	twice := Apply(once, conds)
	assert.Equal(t, names(once), names(twice))

	assert.Len(t, rows, 3)
	assert.Len(t, Apply(rows, nil), 3)
}
