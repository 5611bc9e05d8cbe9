package shell

import (
	"fmt"
	"strconv"
	"sync"

	"adsdash/internal/widget"
)

// Terminal cells are mapped onto the window's pixel geometry.
const (
	cellWidth      = 10
	viewportHeight = 1000
)

// pointer replays typed gestures to the window as pointer events.
type pointer struct {
	mu   sync.Mutex
	next int
	subs map[int]func(widget.PointerEvent)
}

func newPointer() *pointer {
	return &pointer{subs: make(map[int]func(widget.PointerEvent))}
}

func (p *pointer) Subscribe(fn func(widget.PointerEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Subscribers returns the number of active listeners.
func (p *pointer) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *pointer) emit(ev widget.PointerEvent) {
	p.mu.Lock()
	fns := make([]func(widget.PointerEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// drag presses at from, moves by (dx, dy) and releases.
func (p *pointer) drag(from widget.Point, dx, dy int) {
	p.emit(widget.PointerEvent{Kind: widget.PointerMove, X: from.X + dx, Y: from.Y + dy})
	p.emit(widget.PointerEvent{Kind: widget.PointerUp, X: from.X + dx, Y: from.Y + dy})
}

// wrapWidth is the markdown wrap width for the window: the terminal in fullscreen,
// the window width otherwise.
func (s *Shell) wrapWidth() int {
	g := s.window.Geometry()
	if g.FullScreen {
		return s.columns
	}
	return max(1, g.Size.Width/cellWidth)
}

func (s *Shell) rewrap() error {
	if s.markdown == nil {
		return nil
	}
	return s.markdown.SetWordWrap(s.wrapWidth())
}

func (s *Shell) describeWindow() string {
	g := s.window.Geometry()
	if g.FullScreen {
		return fmt.Sprintf("Window: fullscreen, wrap %d", s.wrapWidth())
	}
	return fmt.Sprintf("Window: %dx%d at (%d,%d), wrap %d",
		g.Size.Width, g.Size.Height, g.Position.X, g.Position.Y, s.wrapWidth())
}

func (s *Shell) fullscreenCmd(_ []string) error {
	s.window.ToggleFullScreen()
	if err := s.rewrap(); err != nil {
		return err
	}
	s.printer.Info(s.describeWindow())
	return nil
}

// resizeCmd accepts "resize <width> <height>" or "resize <handle> <dx> <dy>".
func (s *Shell) resizeCmd(args []string) error {
	switch len(args) {
	case 2:
		width, height, err := twoInts(args[0], args[1])
		if err != nil {
			return err
		}
		if err := s.window.SetSize(width, height); err != nil {
			return err
		}
	case 3:
		handle, ok := widget.ParseHandle(args[0])
		if !ok {
			return fmt.Errorf("unknown resize handle %q (n s e w ne nw se sw)", args[0])
		}
		dx, dy, err := twoInts(args[1], args[2])
		if err != nil {
			return err
		}
		if s.window.Geometry().FullScreen {
			return fmt.Errorf("cannot resize in fullscreen")
		}
		s.window.PressHandle(handle, 0, 0)
		s.pointer.drag(widget.Point{}, dx, dy)
	default:
		return fmt.Errorf("usage: /resize <width> <height> | /resize <handle> <dx> <dy>")
	}
	if err := s.rewrap(); err != nil {
		return err
	}
	s.printer.Info(s.describeWindow())
	return nil
}

// moveCmd drags the window by its header.
func (s *Shell) moveCmd(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: /move <dx> <dy>")
	}
	dx, dy, err := twoInts(args[0], args[1])
	if err != nil {
		return err
	}
	g := s.window.Geometry()
	if g.FullScreen {
		return fmt.Errorf("cannot move in fullscreen")
	}
	grab := widget.Point{X: g.Position.X + cellWidth, Y: g.Position.Y + cellWidth}
	s.window.PressHeader(grab.X, grab.Y)
	s.pointer.drag(grab, dx, dy)
	s.printer.Info(s.describeWindow())
	return nil
}

func twoInts(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", a)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", b)
	}
	return x, y, nil
}
