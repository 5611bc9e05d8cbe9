package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"adsdash/internal/logger"
	"adsdash/internal/services"
	"adsdash/internal/storage"
	"adsdash/pkg/adtypes"
)

// SEO query bounds.
const (
	DefaultCTRThreshold = 2
	MinCTRThreshold     = 1
	MaxCTRThreshold     = 100
	DefaultRowLimit     = 100
	MinRowLimit         = 1
	MaxRowLimit         = 25000
)

const seoAnalyzePrompt = "Analyze the SEO of these pages and suggest optimizations"

// ErrNoSEOPages is returned by Analyze before any pages were fetched.
var ErrNoSEOPages = errors.New("fetch pages first")

// SEOSource serves the SEO endpoints and the chat stream used by the SEO agent.
type SEOSource interface {
	SEODateRange(ctx context.Context) (*adtypes.SEODateRange, error)
	LowCTRPages(ctx context.Context, q adtypes.SEOQuery) (*adtypes.SEOPagesResponse, json.RawMessage, error)
	Chat(ctx context.Context, req adtypes.ChatRequest) (io.ReadCloser, error)
}

// SEOView is the state of the low-CTR page analysis.
type SEOView struct {
	mu        sync.Mutex
	source    SEOSource
	store     storage.Store
	query     adtypes.SEOQuery
	available adtypes.DateRange
	pages     []adtypes.SEOPage
	raw       json.RawMessage
	message   string
}

// NewSEOView creates the view and restores the query parameters from store.
func NewSEOView(source SEOSource, store storage.Store) (*SEOView, error) {
	v := &SEOView{
		source: source,
		store:  store,
		pages:  []adtypes.SEOPage{},
	}

	ctr, err := v.storedInt(storage.KeySEOCTRThreshold)
	if err != nil {
		return nil, err
	}
	limit, err := v.storedInt(storage.KeySEORowLimit)
	if err != nil {
		return nil, err
	}
	start, _, err := store.Get(storage.KeySEOStartDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read seo start date: %w", err)
	}
	end, _, err := store.Get(storage.KeySEOEndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read seo end date: %w", err)
	}

	v.query = adtypes.SEOQuery{
		CTRThreshold: clamp(ctr, DefaultCTRThreshold, MinCTRThreshold, MaxCTRThreshold),
		RowLimit:     clamp(limit, DefaultRowLimit, MinRowLimit, MaxRowLimit),
		StartDate:    start,
		EndDate:      end,
	}
	return v, nil
}

func (v *SEOView) storedInt(key string) (int, error) {
	s, ok, err := v.store.Get(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// clamp maps zero to def and bounds n to [lo, hi].
func clamp(n, def, lo, hi int) int {
	if n == 0 {
		n = def
	}
	return min(hi, max(lo, n))
}

// Query returns the current query parameters.
func (v *SEOView) Query() adtypes.SEOQuery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// SetCTRThreshold sets the threshold in percent. Zero selects the default; other
// values are clamped to 1..100.
func (v *SEOView) SetCTRThreshold(n int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.CTRThreshold = clamp(n, DefaultCTRThreshold, MinCTRThreshold, MaxCTRThreshold)
	return v.store.Set(storage.KeySEOCTRThreshold, strconv.Itoa(v.query.CTRThreshold))
}

// SetRowLimit sets the row limit. Zero selects the default; other values are clamped
// to 1..25000.
func (v *SEOView) SetRowLimit(n int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.RowLimit = clamp(n, DefaultRowLimit, MinRowLimit, MaxRowLimit)
	return v.store.Set(storage.KeySEORowLimit, strconv.Itoa(v.query.RowLimit))
}

// SetDates sets the query date range.
func (v *SEOView) SetDates(start, end string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setDates(start, end)
}

func (v *SEOView) setDates(start, end string) error {
	v.query.StartDate = start
	v.query.EndDate = end
	if err := v.store.Set(storage.KeySEOStartDate, start); err != nil {
		return err
	}
	return v.store.Set(storage.KeySEOEndDate, end)
}

// LoadDateRange asks the backend which dates have data. On success the range becomes
// both the available range and the query dates; any other status leaves them alone.
func (v *SEOView) LoadDateRange(ctx context.Context) error {
	dr, err := v.source.SEODateRange(ctx)
	if err != nil {
		logger.Error("SEO date range fetch failed", "error", err)
		return err
	}
	if dr.Status != "success" {
		logger.Debug("SEO date range unavailable", "status", dr.Status, "message", dr.Message)
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.available = adtypes.DateRange{Start: dr.StartDate, End: dr.EndDate}
	return v.setDates(dr.StartDate, dr.EndDate)
}

// Available returns the date range reported by the backend.
func (v *SEOView) Available() adtypes.DateRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.available
}

// Fetch queries the low-CTR pages. On success the page list is also cached for the
// SEO agent; otherwise the list is emptied and Message reports the backend's reason.
func (v *SEOView) Fetch(ctx context.Context) error {
	q := v.Query()
	resp, raw, err := v.source.LowCTRPages(ctx, q)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.pages = []adtypes.SEOPage{}
		v.raw = nil
		v.message = "request failed: " + err.Error()
		return err
	}
	if resp.Status != "success" {
		v.pages = []adtypes.SEOPage{}
		v.raw = nil
		v.message = resp.Message
		if v.message == "" {
			v.message = "failed to fetch data"
		}
		return errors.New(v.message)
	}

	v.pages = resp.Data
	v.raw = raw
	v.message = ""
	return v.store.Set(storage.KeySEOPagesData, string(raw))
}

// Pages returns the pages of the last successful fetch.
func (v *SEOView) Pages() []adtypes.SEOPage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]adtypes.SEOPage(nil), v.pages...)
}

// Message returns the error text of the last fetch, empty after a success.
func (v *SEOView) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.message
}

// Analyze sends the fetched pages to the SEO agent and streams its answer, calling
// onUpdate with the text received so far after every chunk. The full answer is
// returned; a failure mid-stream returns the text as "Analysis failed: <reason>".
func (v *SEOView) Analyze(ctx context.Context, onUpdate func(string)) (string, error) {
	v.mu.Lock()
	raw := v.raw
	v.mu.Unlock()
	if len(raw) == 0 || string(raw) == "[]" {
		return "", ErrNoSEOPages
	}

	body, err := v.source.Chat(ctx, adtypes.ChatRequest{
		Message:        seoAnalyzePrompt,
		Messages:       []adtypes.Message{},
		SelectedTables: []string{"seo"},
		SEOPagesData:   raw,
	})
	if err != nil {
		return "Analysis failed: " + err.Error(), err
	}
	defer body.Close()

	var result string
	err = services.ReadTextStream(body, func(chunk string) {
		result += chunk
		if onUpdate != nil {
			onUpdate(result)
		}
	})
	if err != nil {
		return "Analysis failed: " + err.Error(), err
	}
	return result, nil
}
