package views

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"adsdash/internal/logger"
	"adsdash/internal/storage"
	"adsdash/internal/table"
	"adsdash/pkg/adtypes"
)

// AnomalySource serves the precomputed anomaly lists.
type AnomalySource interface {
	CampaignAnomalies(ctx context.Context, targetDate string) ([]adtypes.CampaignAnomaly, error)
	CampaignAnomalyDateRange(ctx context.Context) (*adtypes.AnomalyDateRange, error)
	ProductAnomalies(ctx context.Context, targetDate string) ([]adtypes.ProductAnomaly, error)
}

// PanelSortKey is one metric of a panel's multi-key sort.
type PanelSortKey struct {
	Metric    string
	Direction table.Direction
}

// Panel is an anomaly list for one analysis date. Items are never evaluated here;
// the panel only orders and presents what the backend flagged.
type Panel[T any] struct {
	mu      sync.Mutex
	name    string
	dateKey string
	store   storage.Store
	fetch   func(ctx context.Context, date string) ([]T, error)
	metric  func(item T, name string) (any, bool)
	dateOf  func(item T) string
	date    string
	items   []T
	keys    []PanelSortKey
	open    bool
}

func newPanel[T any](name, dateKey string, store storage.Store,
	fetch func(context.Context, string) ([]T, error),
	metric func(T, string) (any, bool),
	dateOf func(T) string,
) (*Panel[T], error) {
	date, _, err := store.Get(dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dateKey, err)
	}
	return &Panel[T]{
		name:    name,
		dateKey: dateKey,
		store:   store,
		fetch:   fetch,
		metric:  metric,
		dateOf:  dateOf,
		date:    date,
		items:   []T{},
		open:    true,
	}, nil
}

// Load fetches the list for the target date. A failed or malformed response keeps the
// previous list. A non-empty result expands the panel.
func (p *Panel[T]) Load(ctx context.Context) error {
	date := p.TargetDate()
	items, err := p.fetch(ctx, date)
	if err != nil {
		logger.Error("Anomaly fetch failed", "panel", p.name, "date", date, "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
	if len(items) > 0 {
		p.open = true
	}
	return nil
}

// TargetDate returns the selected analysis date, empty for the backend's latest.
func (p *Panel[T]) TargetDate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.date
}

// DisplayDate returns the target date, or the date of the first item when none is
// selected.
func (p *Panel[T]) DisplayDate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.date != "" || len(p.items) == 0 {
		return p.date
	}
	return p.dateOf(p.items[0])
}

// SetTargetDate selects the analysis date, persists it and refetches. An empty date
// returns to the backend default.
func (p *Panel[T]) SetTargetDate(ctx context.Context, date string) error {
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
		}
	}

	p.mu.Lock()
	p.date = date
	var err error
	if date == "" {
		err = p.store.Remove(p.dateKey)
	} else {
		err = p.store.Set(p.dateKey, date)
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.Load(ctx)
}

// ToggleSort cycles metric through ascending, descending and unsorted. Keys apply in
// the order they were first selected.
func (p *Panel[T]) ToggleSort(metric string) error {
	var zero T
	if _, ok := p.metric(zero, metric); !ok {
		return fmt.Errorf("unknown %s metric %q", p.name, metric)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range p.keys {
		if k.Metric != metric {
			continue
		}
		if k.Direction == table.Ascending {
			p.keys[i].Direction = table.Descending
		} else {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
		}
		return nil
	}
	p.keys = append(p.keys, PanelSortKey{Metric: metric, Direction: table.Ascending})
	return nil
}

// SortKeys returns the active sort keys in priority order.
func (p *Panel[T]) SortKeys() []PanelSortKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PanelSortKey(nil), p.keys...)
}

// Items returns the anomalies ordered by the active sort keys.
func (p *Panel[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]T(nil), p.items...)
	if len(p.keys) == 0 {
		return out
	}
	keys := p.keys
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			a, _ := p.metric(out[i], k.Metric)
			b, _ := p.metric(out[j], k.Metric)
			c := table.Compare(a, b)
			if c == 0 {
				continue
			}
			if k.Direction == table.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

// Count returns the number of anomalies.
func (p *Panel[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Visible reports whether the panel is shown at all. With nothing flagged and no date
// selected there is nothing to change back, so it hides.
func (p *Panel[T]) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items) > 0 || p.date != ""
}

// Title returns the panel heading, "<name> (N)" or "<name> (Clear)".
func (p *Panel[T]) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) > 0 {
		return fmt.Sprintf("%s (%d)", p.name, len(p.items))
	}
	return p.name + " (Clear)"
}

// IsOpen reports whether the list is expanded.
func (p *Panel[T]) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// ToggleOpen collapses or expands the list.
func (p *Panel[T]) ToggleOpen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = !p.open
}

// CampaignPanel lists campaign anomalies.
type CampaignPanel struct {
	*Panel[adtypes.CampaignAnomaly]
	source AnomalySource
}

// NewCampaignPanel creates the campaign anomaly panel with its persisted date.
func NewCampaignPanel(source AnomalySource, store storage.Store) (*CampaignPanel, error) {
	p, err := newPanel("Anomaly Monitor", storage.KeyAnomalyTargetDate, store,
		source.CampaignAnomalies, campaignMetric,
		func(a adtypes.CampaignAnomaly) string { return a.Date })
	if err != nil {
		return nil, err
	}
	return &CampaignPanel{Panel: p, source: source}, nil
}

// DateRange returns the dates the campaign anomaly table covers.
func (c *CampaignPanel) DateRange(ctx context.Context) (*adtypes.AnomalyDateRange, error) {
	return c.source.CampaignAnomalyDateRange(ctx)
}

// Route returns the detail route of an anomaly.
func (c *CampaignPanel) Route(a adtypes.CampaignAnomaly) (string, bool) {
	return AnomalyRoute(a)
}

// CampaignMetrics are the sortable fields of a campaign anomaly.
var CampaignMetrics = []string{
	"campaign", "date", "reason", "prev_conv", "current_conv",
	"prev_roas", "curr_roas", "prev_cpa", "curr_cpa", "growth",
}

func campaignMetric(a adtypes.CampaignAnomaly, name string) (any, bool) {
	switch name {
	case "campaign":
		return a.Campaign, true
	case "date":
		return a.Date, true
	case "reason":
		return a.Reason, true
	case "prev_conv":
		return deref(a.PrevConv), true
	case "current_conv":
		return deref(a.CurrentConv), true
	case "prev_roas":
		return deref(a.PrevROAS), true
	case "curr_roas":
		return deref(a.CurrROAS), true
	case "prev_cpa":
		return deref(a.PrevCPA), true
	case "curr_cpa":
		return deref(a.CurrCPA), true
	case "growth":
		return deref(a.Growth), true
	}
	return nil, false
}

// ProductPanel lists product anomalies.
type ProductPanel struct {
	*Panel[adtypes.ProductAnomaly]
}

// NewProductPanel creates the product anomaly panel with its persisted date.
func NewProductPanel(source AnomalySource, store storage.Store) (*ProductPanel, error) {
	p, err := newPanel("Product Monitor", storage.KeyProductAnomalyTargetDate, store,
		source.ProductAnomalies, productMetric,
		func(a adtypes.ProductAnomaly) string { return a.Date })
	if err != nil {
		return nil, err
	}
	return &ProductPanel{Panel: p}, nil
}

// ProductMetrics are the sortable fields of a product anomaly.
var ProductMetrics = []string{
	"item_id", "title", "date", "reason", "prev_cost", "curr_cost", "prev_clicks",
	"curr_clicks", "prev_ctr", "curr_ctr", "prev_conv", "curr_conv", "prev_roas", "curr_roas",
}

func productMetric(a adtypes.ProductAnomaly, name string) (any, bool) {
	switch name {
	case "item_id":
		return a.ItemID, true
	case "title":
		return a.Title, true
	case "date":
		return a.Date, true
	case "reason":
		return a.Reason, true
	case "prev_cost":
		return deref(a.PrevCost), true
	case "curr_cost":
		return deref(a.CurrCost), true
	case "prev_clicks":
		return deref(a.PrevClicks), true
	case "curr_clicks":
		return deref(a.CurrClicks), true
	case "prev_ctr":
		return deref(a.PrevCTR), true
	case "curr_ctr":
		return deref(a.CurrCTR), true
	case "prev_conv":
		return deref(a.PrevConv), true
	case "curr_conv":
		return deref(a.CurrConv), true
	case "prev_roas":
		return deref(a.PrevROAS), true
	case "curr_roas":
		return deref(a.CurrROAS), true
	}
	return nil, false
}

// deref turns a missing metric into nil so it sorts as an empty value.
func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// TrendDirection is the movement of a metric between two periods.
type TrendDirection int

const (
	TrendFlat TrendDirection = iota
	TrendRise
	TrendDrop
)

// Polarity says which movement of a metric is bad.
type Polarity int

const (
	// Neutral metrics are never flagged.
	Neutral Polarity = iota
	// HigherIsBetter metrics are flagged when they drop.
	HigherIsBetter
	// LowerIsBetter metrics are flagged when they rise.
	LowerIsBetter
)

// Trend is a formatted previous → current pair.
type Trend struct {
	Label     string
	Prev      string
	Curr      string
	Direction TrendDirection
	Bad       bool
}

// NewTrend compares prev and curr and formats both with the given number of decimals.
// A missing side renders as "-" and the trend is flat.
func NewTrend(label string, prev, curr *float64, polarity Polarity, decimals int) Trend {
	t := Trend{Label: label, Prev: formatMetric(prev, decimals), Curr: formatMetric(curr, decimals)}
	if prev == nil || curr == nil {
		return t
	}
	switch {
	case *curr > *prev:
		t.Direction = TrendRise
		t.Bad = polarity == LowerIsBetter
	case *curr < *prev:
		t.Direction = TrendDrop
		t.Bad = polarity == HigherIsBetter
	}
	return t
}

func formatMetric(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}

// CampaignTrends returns the metric pairs shown for a campaign anomaly.
func CampaignTrends(a adtypes.CampaignAnomaly) []Trend {
	return []Trend{
		NewTrend("Conv Volume", a.PrevConv, a.CurrentConv, HigherIsBetter, 2),
		NewTrend("ROAS Trend", a.PrevROAS, a.CurrROAS, HigherIsBetter, 2),
		NewTrend("CPA Trend", a.PrevCPA, a.CurrCPA, LowerIsBetter, 2),
	}
}

// ProductTrends returns the metric pairs shown for a product anomaly.
func ProductTrends(a adtypes.ProductAnomaly) []Trend {
	trends := []Trend{
		NewTrend("Cost Trend", a.PrevCost, a.CurrCost, Neutral, 2),
		NewTrend("Clicks", a.PrevClicks, a.CurrClicks, HigherIsBetter, 0),
		NewTrend("CTR Trend", a.PrevCTR, a.CurrCTR, HigherIsBetter, 2),
	}
	if a.PrevROAS != nil || a.CurrROAS != nil {
		trends = append(trends, NewTrend("ROAS Trend", a.PrevROAS, a.CurrROAS, HigherIsBetter, 2))
	}
	return trends
}
