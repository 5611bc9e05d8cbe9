package services

import (
	"fmt"
	"sync"
)

// Expert is a data domain the chat agent can consult.
type Expert struct {
	ID    string
	Label string
}

// AllExperts lists every domain in display order.
var AllExperts = []Expert{
	{"Anomalies", "🛡️ Anomaly Guard"},
	{"Campaigns", "📊 Campaign Manager"},
	{"Products", "📦 Product Specialist"},
	{"search_term", "🔍 Search Term Analyst"},
	{"asset", "🎨 Creative Asset Expert"},
	{"audience", "👥 Audience Strategist"},
	{"age", "🎂 Age Demographics"},
	{"gender", "⚧ Gender Demographics"},
	{"location", "🌍 Location & Geo Expert"},
	{"ad_schedule", "⏰ Time/Schedule Analyst"},
	{"channel", "📡 Channel (PMax) Auditor"},
	{"seo", "🔎 SEO Analyst"},
}

// SEOExpert is the domain that receives the cached SEO page data.
const SEOExpert = "seo"

// Experts is the in-memory expert selection. Every expert starts selected.
type Experts struct {
	mu       sync.Mutex
	selected map[string]bool
}

// NewExperts returns a selection with every expert enabled.
func NewExperts() *Experts {
	e := &Experts{selected: make(map[string]bool, len(AllExperts))}
	e.EnableAll()
	return e
}

// FindExpert returns the expert with id.
func FindExpert(id string) (Expert, bool) {
	for _, ex := range AllExperts {
		if ex.ID == id {
			return ex, true
		}
	}
	return Expert{}, false
}

// Toggle flips the selection of id and reports whether it is now selected.
func (e *Experts) Toggle(id string) (bool, error) {
	if _, ok := FindExpert(id); !ok {
		return false, fmt.Errorf("unknown expert %q", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected[id] = !e.selected[id]
	return e.selected[id], nil
}

// EnableAll selects every expert.
func (e *Experts) EnableAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ex := range AllExperts {
		e.selected[ex.ID] = true
	}
}

// IsSelected reports whether id is selected.
func (e *Experts) IsSelected(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected[id]
}

// Selected returns the selected ids in display order.
func (e *Experts) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []string{}
	for _, ex := range AllExperts {
		if e.selected[ex.ID] {
			out = append(out, ex.ID)
		}
	}
	return out
}
