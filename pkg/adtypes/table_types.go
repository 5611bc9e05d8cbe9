// Package adtypes defines tabular payload types for adsdash.
// Row shapes are decided entirely by the backend, so rows stay untyped maps.
package adtypes

// Row maps a column name to its display value (string, number or nil).
type Row map[string]any

// TableKind selects one of the top-level tables served by /api/tables/{kind}.
type TableKind string

const (
	// TableCampaign is the campaign overview table.
	TableCampaign TableKind = "campaign"
	// TableProduct is the product overview table.
	TableProduct TableKind = "product"
)

// TablePayload is the response body of the tabular endpoints.
type TablePayload struct {
	Columns []string `json:"columns"`
	Data    []Row    `json:"data"`
	Error   string   `json:"error,omitempty"`
}

// SubTable is one entry of a campaign detail response.
type SubTable struct {
	Columns      []string `json:"columns"`
	Data         []Row    `json:"data"`
	Rule         string   `json:"rule,omitempty"`
	AnomalyCount int      `json:"anomaly_count,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// DetailPayload maps a sub-table name to its content.
type DetailPayload map[string]SubTable

// DateRange is an optional inclusive start/end pair in YYYY-MM-DD form.
// Empty fields are left out of queries.
type DateRange struct {
	Start string `json:"start_date,omitempty"`
	End   string `json:"end_date,omitempty"`
}

// IsZero reports whether neither bound is set.
func (d DateRange) IsZero() bool {
	return d.Start == "" && d.End == ""
}
