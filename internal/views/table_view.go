// Package views holds the state stores behind the dashboard screens: the campaign and
// product tables, the campaign detail view, the SEO page and the anomaly panels.
// Each store fetches through a small source interface and mirrors its persistent
// settings into an injected storage.Store, reading them once on creation and writing
// them on every change.
package views

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"adsdash/internal/logger"
	"adsdash/internal/storage"
	"adsdash/internal/table"
	"adsdash/pkg/adtypes"
)

// TableSource fetches a top-level table.
type TableSource interface {
	Table(ctx context.Context, kind adtypes.TableKind, dr adtypes.DateRange) (*adtypes.TablePayload, error)
}

// TableView is the state of the campaign or product overview table.
type TableView struct {
	mu      sync.Mutex
	kind    adtypes.TableKind
	source  TableSource
	store   storage.Store
	dates   adtypes.DateRange
	columns []string
	rows    []adtypes.Row
	err     error
	filters []table.Condition
	sort    table.SortConfig
	reveal  *table.Reveal
	widths  *table.ColumnWidths
}

// NewTableView creates the view of kind and restores its filters and sort from store.
// pageSize is the number of rows revealed per step.
func NewTableView(kind adtypes.TableKind, source TableSource, store storage.Store, pageSize int) (*TableView, error) {
	v := &TableView{
		kind:    kind,
		source:  source,
		store:   store,
		filters: []table.Condition{},
		reveal:  table.NewRevealWithStep(pageSize),
		widths:  table.NewColumnWidths(0),
	}

	var filters []table.Condition
	ok, err := storage.GetJSON(store, storage.FiltersKey(string(kind)), &filters)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s filters: %w", kind, err)
	}
	if ok && filters != nil {
		v.filters = filters
	}

	var sortCfg table.SortConfig
	ok, err = storage.GetJSON(store, storage.SortKey(string(kind)), &sortCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sort: %w", kind, err)
	}
	if ok {
		v.sort = sortCfg
	}

	return v, nil
}

// Kind returns the table kind.
func (v *TableView) Kind() adtypes.TableKind {
	return v.kind
}

// Load fetches the table for the current date range and replaces the whole row set.
// Concurrent loads are not fenced: whichever finishes last wins. On failure the row set
// is emptied and Err reports why.
func (v *TableView) Load(ctx context.Context) error {
	v.mu.Lock()
	dates := v.dates
	v.mu.Unlock()

	payload, err := v.source.Table(ctx, v.kind, dates)
	if err == nil && payload.Error != "" {
		err = errors.New(payload.Error)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		logger.Error("Table fetch failed", "table", v.kind, "error", err)
		v.rows = []adtypes.Row{}
		v.err = err
		return err
	}
	if len(payload.Columns) != len(v.columns) {
		v.widths.Reset(len(payload.Columns))
	}
	v.columns = payload.Columns
	v.rows = payload.Data
	v.err = nil
	return nil
}

// DateRange returns the active date filter.
func (v *TableView) DateRange() adtypes.DateRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dates
}

// SetDateRange changes the date filter, resets the reveal window and refetches.
func (v *TableView) SetDateRange(ctx context.Context, dr adtypes.DateRange) error {
	v.mu.Lock()
	v.dates = dr
	v.reveal.Reset()
	v.mu.Unlock()
	return v.Load(ctx)
}

// Columns returns the column names of the last successful load.
func (v *TableView) Columns() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.columns...)
}

// Err returns the error of the last load, if it failed.
func (v *TableView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// visible returns filtered and sorted rows. Callers hold mu.
func (v *TableView) visible() []adtypes.Row {
	return table.Sort(table.Apply(v.rows, v.filters), v.sort)
}

// Rows returns the rows to display: filtered, sorted and cut to the reveal window.
func (v *TableView) Rows() []adtypes.Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reveal.Window(v.visible())
}

// Total returns the number of rows passing the filters.
func (v *TableView) Total() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(table.Apply(v.rows, v.filters))
}

// Status returns the "(shown / total)" footer.
func (v *TableView) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reveal.Status(len(table.Apply(v.rows, v.filters)))
}

// OnScroll forwards a scroll of the row container to the reveal window.
func (v *TableView) OnScroll(scrollTop, scrollHeight, clientHeight int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reveal.OnScroll(scrollTop, scrollHeight, clientHeight, len(table.Apply(v.rows, v.filters)))
}

// ShowMore reveals the next page of rows.
func (v *TableView) ShowMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reveal.More(len(table.Apply(v.rows, v.filters)))
}

// Widths returns the column widths of the table.
func (v *TableView) Widths() *table.ColumnWidths {
	return v.widths
}

// Filters returns a copy of the filter conditions.
func (v *TableView) Filters() []table.Condition {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]table.Condition(nil), v.filters...)
}

// AddFilter appends a condition and persists the filter set.
func (v *TableView) AddFilter(c table.Condition) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filters = append(v.filters, c)
	v.reveal.Reset()
	return v.saveFilters()
}

// RemoveFilter deletes the condition with id and persists the filter set.
func (v *TableView) RemoveFilter(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, c := range v.filters {
		if c.ID == id {
			v.filters = append(v.filters[:i:i], v.filters[i+1:]...)
			v.reveal.Reset()
			return v.saveFilters()
		}
	}
	return fmt.Errorf("no filter with id %s", id)
}

// ClearFilters removes every condition.
func (v *TableView) ClearFilters() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filters = []table.Condition{}
	v.reveal.Reset()
	return v.saveFilters()
}

func (v *TableView) saveFilters() error {
	return storage.SetJSON(v.store, storage.FiltersKey(string(v.kind)), v.filters)
}

// Sort returns the sort configuration.
func (v *TableView) Sort() table.SortConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sort
}

// Sorter returns a controlled sorter whose header clicks update and persist this view's
// sort configuration.
func (v *TableView) Sorter() *table.Sorter {
	var s *table.Sorter
	s = table.NewControlledSorter(v.Sort(), func(key string, dir table.Direction) {
		cfg := table.SortConfig{Key: key, Direction: dir}
		if err := v.SetSort(cfg); err != nil {
			logger.Error("Failed to save sort", "table", v.kind, "error", err)
		}
		s.SetConfig(cfg)
	})
	return s
}

// SetSort replaces the sort configuration and persists it.
func (v *TableView) SetSort(cfg table.SortConfig) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = cfg
	return storage.SetJSON(v.store, storage.SortKey(string(v.kind)), cfg)
}

// ToggleSort applies a header click on key.
func (v *TableView) ToggleSort(key string) error {
	return v.SetSort(v.Sort().Toggle(key))
}

// RowAnomalous reports whether a row of this table should be highlighted.
// Only campaign rows carry the comparison columns the check needs.
func (v *TableView) RowAnomalous(row adtypes.Row) bool {
	return v.kind == adtypes.TableCampaign && table.CampaignRowAnomalous(row)
}

// RouteFor returns the detail route for a clicked row, or false when the row does not
// name a campaign.
func (v *TableView) RouteFor(row adtypes.Row) (string, bool) {
	if v.kind != adtypes.TableCampaign {
		return "", false
	}
	return CampaignRoute(table.Text(row["campaign"]), v.DateRange())
}
