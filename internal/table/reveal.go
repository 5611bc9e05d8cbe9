package table

import (
	"fmt"

	"adsdash/pkg/adtypes"
)

// Incremental reveal defaults.
const (
	PageSize        = 50
	ScrollThreshold = 50
)

// Reveal pages through an already fetched row set: the first PageSize rows are shown,
// and each scroll that lands near the bottom reveals PageSize more.
type Reveal struct {
	limit int
	step  int
}

// NewReveal returns a reveal window of PageSize rows.
func NewReveal() *Reveal {
	return NewRevealWithStep(PageSize)
}

// NewRevealWithStep returns a reveal window growing by step rows.
func NewRevealWithStep(step int) *Reveal {
	if step <= 0 {
		step = PageSize
	}
	return &Reveal{limit: step, step: step}
}

// Limit returns the number of rows currently revealed.
func (r *Reveal) Limit() int {
	return r.limit
}

// Reset goes back to the first page, used whenever the row set is replaced.
func (r *Reveal) Reset() {
	r.limit = r.step
}

// OnScroll handles a scroll of the row container. It reveals another page when the
// viewport is within ScrollThreshold of the bottom and more rows exist, and reports
// whether it did.
func (r *Reveal) OnScroll(scrollTop, scrollHeight, clientHeight, total int) bool {
	if scrollHeight-scrollTop-clientHeight >= ScrollThreshold {
		return false
	}
	return r.More(total)
}

// More reveals the next page if rows remain.
func (r *Reveal) More(total int) bool {
	if r.limit >= total {
		return false
	}
	r.limit += r.step
	return true
}

// Window returns the revealed prefix of rows.
func (r *Reveal) Window(rows []adtypes.Row) []adtypes.Row {
	if len(rows) <= r.limit {
		return rows
	}
	return rows[:r.limit]
}

// Status renders the "(shown / total)" footer.
func (r *Reveal) Status(total int) string {
	shown := r.limit
	if total < shown {
		shown = total
	}
	return fmt.Sprintf("(%d / %d)", shown, total)
}
