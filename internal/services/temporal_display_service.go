package services

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
)

const defaultRefreshInterval = 100 * time.Millisecond

// TemporalDisplayService shows transient status lines, such as the time spent waiting
// for the agent. A line is redrawn in place on every tick and erased when it stops.
type TemporalDisplayService struct {
	out      io.Writer
	interval time.Duration

	mu     sync.Mutex
	active map[string]*display
}

// display is one running status line.
type display struct {
	started   time.Time
	render    func(elapsed time.Duration) string
	stop      chan struct{}
	done      chan struct{}
	lastWidth int
}

// TemporalDisplayOption configures a TemporalDisplayService.
type TemporalDisplayOption func(*TemporalDisplayService)

// WithRefreshInterval sets how often lines are redrawn.
func WithRefreshInterval(d time.Duration) TemporalDisplayOption {
	return func(t *TemporalDisplayService) {
		if d > 0 {
			t.interval = d
		}
	}
}

// NewTemporalDisplayService creates a display service writing to out, or stdout when
// out is nil.
func NewTemporalDisplayService(out io.Writer, options ...TemporalDisplayOption) *TemporalDisplayService {
	if out == nil {
		out = os.Stdout
	}
	t := &TemporalDisplayService{
		out:      out,
		interval: defaultRefreshInterval,
		active:   make(map[string]*display),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Name returns the service name "temporal-display" for registration.
func (t *TemporalDisplayService) Name() string {
	return "temporal-display"
}

// Initialize is a no-op; the service is ready once created.
func (t *TemporalDisplayService) Initialize() error {
	return nil
}

// StartTimer shows label followed by the whole seconds elapsed.
func (t *TemporalDisplayService) StartTimer(id, label string) error {
	return t.StartCustomDisplay(id, func(elapsed time.Duration) string {
		return fmt.Sprintf("%s %ds", label, int(elapsed.Seconds()))
	})
}

// StartCustomDisplay shows render(elapsed) until Stop. A running display with the same id
// is replaced.
func (t *TemporalDisplayService) StartCustomDisplay(id string, render func(time.Duration) string) error {
	if render == nil {
		return fmt.Errorf("display %q needs a renderer", id)
	}
	t.Stop(id)

	d := &display{
		started: time.Now(),
		render:  render,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	t.mu.Lock()
	t.active[id] = d
	t.mu.Unlock()

	go t.run(d)
	return nil
}

// Stop erases the display and returns once its line is gone. Unknown ids are ignored.
func (t *TemporalDisplayService) Stop(id string) {
	t.mu.Lock()
	d, ok := t.active[id]
	delete(t.active, id)
	t.mu.Unlock()
	if !ok {
		return
	}
	close(d.stop)
	<-d.done
}

// StopAll stops every running display.
func (t *TemporalDisplayService) StopAll() {
	t.mu.Lock()
	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	for _, id := range ids {
		t.Stop(id)
	}
}

// IsActive reports whether a display with id is running.
func (t *TemporalDisplayService) IsActive(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

func (t *TemporalDisplayService) run(d *display) {
	ticker := time.NewTicker(t.interval)
	defer func() {
		ticker.Stop()
		t.clear(d)
		close(d.done)
	}()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			t.clear(d)
			content := d.render(time.Since(d.started))
			_, _ = io.WriteString(t.out, "\r"+content)
			d.lastWidth = ansi.StringWidth(content)
		}
	}
}

func (t *TemporalDisplayService) clear(d *display) {
	if d.lastWidth == 0 {
		return
	}
	_, _ = io.WriteString(t.out, "\r"+strings.Repeat(" ", d.lastWidth)+"\r")
	d.lastWidth = 0
}

// GetGlobalTemporalDisplayService returns the registered display service.
func GetGlobalTemporalDisplayService() (*TemporalDisplayService, error) {
	return Lookup[*TemporalDisplayService](GetGlobalRegistry(), "temporal-display")
}
