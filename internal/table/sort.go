package table

import (
	"sort"

	"adsdash/pkg/adtypes"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortConfig is a single-key sort. An empty Key means unsorted.
type SortConfig struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Active reports whether a sort key is set.
func (c SortConfig) Active() bool {
	return c.Key != ""
}

// Toggle returns the configuration after clicking the header of key:
// a new key sorts ascending, the active ascending key flips to descending,
// and a descending key goes back to ascending.
func (c SortConfig) Toggle(key string) SortConfig {
	if c.Key == key && c.Direction == Ascending {
		return SortConfig{Key: key, Direction: Descending}
	}
	return SortConfig{Key: key, Direction: Ascending}
}

// Sort returns a stably sorted copy of rows. The input slice is never reordered.
func Sort(rows []adtypes.Row, cfg SortConfig) []adtypes.Row {
	out := make([]adtypes.Row, len(rows))
	copy(out, rows)
	if !cfg.Active() {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := Compare(out[i][cfg.Key], out[j][cfg.Key])
		if cfg.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Sorter drives header clicks for one table. In controlled mode the parent owns the
// configuration: clicks are reported through the callback and rows are displayed in the
// order given. In uncontrolled mode the sorter keeps its own configuration and sorts.
type Sorter struct {
	cfg    SortConfig
	onSort func(key string, dir Direction)
}

// NewSorter returns an uncontrolled sorter.
func NewSorter() *Sorter {
	return &Sorter{cfg: SortConfig{Direction: Ascending}}
}

// NewControlledSorter returns a sorter that delegates ordering to onSort.
func NewControlledSorter(cfg SortConfig, onSort func(key string, dir Direction)) *Sorter {
	return &Sorter{cfg: cfg, onSort: onSort}
}

// Controlled reports whether the parent owns the sort configuration.
func (s *Sorter) Controlled() bool {
	return s.onSort != nil
}

// Config returns the active configuration.
func (s *Sorter) Config() SortConfig {
	return s.cfg
}

// SetConfig replaces the configuration; controlled parents call it after handling onSort.
func (s *Sorter) SetConfig(cfg SortConfig) {
	s.cfg = cfg
}

// HeaderClick toggles the sort on key.
func (s *Sorter) HeaderClick(key string) {
	next := s.cfg.Toggle(key)
	if s.onSort != nil {
		s.onSort(next.Key, next.Direction)
		return
	}
	s.cfg = next
}

// Display returns rows in display order.
func (s *Sorter) Display(rows []adtypes.Row) []adtypes.Row {
	if s.Controlled() {
		return rows
	}
	return Sort(rows, s.cfg)
}

// Indicator returns the header arrow for key.
func (s *Sorter) Indicator(key string) string {
	if s.cfg.Key != key {
		return "↕"
	}
	if s.cfg.Direction == Descending {
		return "▼"
	}
	return "▲"
}
