package views

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"adsdash/internal/logger"
	"adsdash/internal/table"
	"adsdash/pkg/adtypes"
)

// DetailSource fetches the sub-tables of one campaign.
type DetailSource interface {
	CampaignDetails(ctx context.Context, name string, dr adtypes.DateRange, anomaly bool) (adtypes.DetailPayload, error)
}

// errMissingTable is the error of a known sub-table the backend left out.
const errMissingTable = "missing from the response"

// detailOrder lists the known sub-tables in display order with their headings. Every
// one is shown; one the backend leaves out shows the error placeholder.
var detailOrder = []struct {
	name  string
	label string
}{
	{"search_term", "Search Term"},
	{"channel", "Channel"},
	{"asset", "Asset"},
	{"audience", "Audience"},
	{"age", "Age"},
	{"gender", "Gender"},
	{"location_by_cities_all_campaign", "Location"},
	{"ad_schedule", "Ad Schedule"},
}

// DetailTable is one sub-table of the campaign detail view. Each keeps its own sort
// and reveal window.
type DetailTable struct {
	Name         string
	Label        string
	Columns      []string
	Rule         string
	AnomalyCount int
	Error        string

	rows   []adtypes.Row
	sorter *table.Sorter
	reveal *table.Reveal
	widths *table.ColumnWidths
}

func newDetailTable(name, label string, sub adtypes.SubTable, pageSize int) *DetailTable {
	rows := make([]adtypes.Row, len(sub.Data))
	for i, row := range sub.Data {
		rows[i] = table.RecomputeDetailMetrics(row)
	}
	return &DetailTable{
		Name:         name,
		Label:        label,
		Columns:      sub.Columns,
		Rule:         sub.Rule,
		AnomalyCount: sub.AnomalyCount,
		Error:        sub.Error,
		rows:         rows,
		sorter:       table.NewSorter(),
		reveal:       table.NewRevealWithStep(pageSize),
		widths:       table.NewColumnWidths(len(sub.Columns)),
	}
}

// Flagged reports whether the backend counted anomalies in this sub-table.
func (t *DetailTable) Flagged() bool {
	return t.AnomalyCount > 0
}

// Placeholder returns the text shown instead of rows, or "" when there are rows.
func (t *DetailTable) Placeholder() string {
	if t.Error != "" {
		return fmt.Sprintf("Error loading %s data", t.Name)
	}
	if len(t.rows) == 0 {
		return fmt.Sprintf("No %s data found for this campaign", t.Name)
	}
	return ""
}

// Sorter returns the sub-table's own sorter.
func (t *DetailTable) Sorter() *table.Sorter {
	return t.sorter
}

// Widths returns the sub-table's column widths.
func (t *DetailTable) Widths() *table.ColumnWidths {
	return t.widths
}

// Rows returns the sorted rows inside the reveal window.
func (t *DetailTable) Rows() []adtypes.Row {
	return t.reveal.Window(t.sorter.Display(t.rows))
}

// Total returns the number of rows.
func (t *DetailTable) Total() int {
	return len(t.rows)
}

// Status returns the "(shown / total)" footer.
func (t *DetailTable) Status() string {
	return t.reveal.Status(len(t.rows))
}

// OnScroll forwards a scroll of the sub-table to its reveal window.
func (t *DetailTable) OnScroll(scrollTop, scrollHeight, clientHeight int) bool {
	return t.reveal.OnScroll(scrollTop, scrollHeight, clientHeight, len(t.rows))
}

// ShowMore reveals the next page of rows.
func (t *DetailTable) ShowMore() bool {
	return t.reveal.More(len(t.rows))
}

// RowAnomalous reports whether a row should be highlighted.
func (t *DetailTable) RowAnomalous(row adtypes.Row) bool {
	return table.DetailRowAnomalous(row)
}

// DetailView is the state of one campaign's detail page.
type DetailView struct {
	mu       sync.Mutex
	source   DetailSource
	route    DetailRoute
	pageSize int
	tables   []*DetailTable
	err      error
}

// NewDetailView creates the view for a parsed route.
func NewDetailView(source DetailSource, route DetailRoute, pageSize int) *DetailView {
	return &DetailView{
		source:   source,
		route:    route,
		pageSize: pageSize,
		tables:   []*DetailTable{},
	}
}

// Route returns the route the view was opened with.
func (v *DetailView) Route() DetailRoute {
	return v.route
}

// Load fetches the campaign's sub-tables. Routes carrying anomaly context use the
// anomaly variant of the endpoint. A failed load keeps the previous tables.
func (v *DetailView) Load(ctx context.Context) error {
	payload, err := v.source.CampaignDetails(ctx, v.route.Campaign, v.route.DateRange, v.route.Anomaly != nil)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		logger.Error("Campaign detail fetch failed", "campaign", v.route.Campaign, "error", err)
		v.err = err
		return err
	}
	v.tables = orderDetailTables(payload, v.pageSize)
	v.err = nil
	return nil
}

func orderDetailTables(payload adtypes.DetailPayload, pageSize int) []*DetailTable {
	tables := make([]*DetailTable, 0, len(detailOrder)+len(payload))
	known := make(map[string]bool, len(detailOrder))
	for _, d := range detailOrder {
		known[d.name] = true
		sub, ok := payload[d.name]
		if !ok {
			sub = adtypes.SubTable{Error: errMissingTable}
		}
		tables = append(tables, newDetailTable(d.name, d.label, sub, pageSize))
	}

	var extra []string
	for name := range payload {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		tables = append(tables, newDetailTable(name, name, payload[name], pageSize))
	}
	return tables
}

// Tables returns the sub-tables in display order.
func (v *DetailView) Tables() []*DetailTable {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*DetailTable(nil), v.tables...)
}

// Table returns the sub-table called name.
func (v *DetailView) Table(name string) (*DetailTable, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Err returns the error of the last load.
func (v *DetailView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// AnomalyBanner is the summary shown above a detail view opened from an anomaly.
type AnomalyBanner struct {
	Reason string
	Trends []Trend
}

// Banner returns the anomaly summary of the route. It reports false when the view was
// not opened from an anomaly. ROAS and conversions are bad when they drop, CPA when it
// rises.
func (v *DetailView) Banner() (AnomalyBanner, bool) {
	a := v.route.Anomaly
	if a == nil {
		return AnomalyBanner{}, false
	}
	return AnomalyBanner{
		Reason: a.Reason,
		Trends: []Trend{
			NewTrend("ROAS", routeMetric(a.PrevROAS), routeMetric(a.CurrROAS), HigherIsBetter, 2),
			NewTrend("CPA", routeMetric(a.PrevCPA), routeMetric(a.CurrCPA), LowerIsBetter, 2),
			NewTrend("Conversions", routeMetric(a.PrevConv), routeMetric(a.CurrConv), HigherIsBetter, 2),
		},
	}, true
}

// routeMetric parses a metric carried in a route; absent or malformed values are nil.
func routeMetric(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
