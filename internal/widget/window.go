package widget

import (
	"fmt"
	"sync"
)

// Window defaults and limits, in pixels.
const (
	DefaultWidth   = 450
	DefaultHeight  = 650
	MinWidth       = 350
	MinHeight      = 450
	LauncherSize   = 56
	edgeGrip       = 20
	openMargin     = 10
	defaultOffsetX = 470
	defaultOffsetY = 700
)

// State is the gesture state of a window.
type State int

// Gesture states.
const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Point is a position in viewport coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width and height.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Geometry is a snapshot of the window.
type Geometry struct {
	Position   Point `json:"position"`
	Size       Size  `json:"size"`
	Open       bool  `json:"open"`
	FullScreen bool  `json:"full_screen"`
}

// Rect is the area the window occupies on screen.
type Rect struct {
	Point
	Size
}

type resizeStart struct {
	pointer Point
	size    Size
	origin  Point
}

// Window is the floating chat window state store.
type Window struct {
	mu       sync.Mutex
	source   EventSource
	viewport Size

	pos        Point
	size       Size
	open       bool
	fullScreen bool

	state       State
	hasMoved    bool
	dragOffset  Point
	handle      Handle
	start       resizeStart
	unsubscribe func()
}

// New returns a closed window at its default place in viewport.
func New(viewport Size, source EventSource) *Window {
	return &Window{
		source:   source,
		viewport: viewport,
		pos:      Point{X: viewport.Width - defaultOffsetX, Y: viewport.Height - defaultOffsetY},
		size:     Size{Width: DefaultWidth, Height: DefaultHeight},
	}
}

// Geometry returns the current geometry.
func (w *Window) Geometry() Geometry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Geometry{Position: w.pos, Size: w.size, Open: w.open, FullScreen: w.fullScreen}
}

// State returns the gesture state.
func (w *Window) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Viewport returns the viewport size.
func (w *Window) Viewport() Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewport
}

// SetViewport updates the viewport, as after a terminal resize.
func (w *Window) SetViewport(viewport Size) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.viewport = viewport
}

// Bounds returns the rectangle the widget occupies: the whole viewport in fullscreen,
// the launcher button when closed, the window otherwise.
func (w *Window) Bounds() Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.open && w.fullScreen:
		return Rect{Size: w.viewport}
	case w.open:
		return Rect{Point: w.pos, Size: w.size}
	default:
		return Rect{Point: w.pos, Size: Size{Width: LauncherSize, Height: LauncherSize}}
	}
}

// PressHeader starts a drag from the header bar of the open window.
func (w *Window) PressHeader(x, y int) {
	w.beginDrag(x, y)
}

// PressLauncher starts a potential drag of the collapsed launcher. A release without
// movement followed by ClickLauncher toggles the window.
func (w *Window) PressLauncher(x, y int) {
	w.beginDrag(x, y)
}

// PressHandle starts a resize from handle h.
func (w *Window) PressHandle(h Handle, x, y int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fullScreen || w.state != Idle {
		return
	}
	w.state = Resizing
	w.handle = h
	w.start = resizeStart{pointer: Point{X: x, Y: y}, size: w.size, origin: w.pos}
	w.subscribe()
}

func (w *Window) beginDrag(x, y int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fullScreen || w.state != Idle {
		return
	}
	w.state = Dragging
	w.hasMoved = false
	w.dragOffset = Point{X: x - w.pos.X, Y: y - w.pos.Y}
	w.subscribe()
}

// subscribe attaches the gesture listener. Callers hold mu.
func (w *Window) subscribe() {
	if w.source == nil {
		return
	}
	w.unsubscribe = w.source.Subscribe(w.handleEvent)
}

// release ends the active gesture. Callers hold mu.
func (w *Window) release() {
	w.state = Idle
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}

func (w *Window) handleEvent(ev PointerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev.Kind {
	case PointerUp:
		w.release()
	case PointerMove:
		switch w.state {
		case Dragging:
			w.drag(ev.X, ev.Y)
		case Resizing:
			w.resize(ev.X, ev.Y)
		}
	}
}

// drag moves the window so the grabbed point follows the pointer, keeping at least
// a grip of it inside the viewport. Callers hold mu.
func (w *Window) drag(x, y int) {
	w.hasMoved = true

	width := LauncherSize
	if w.open {
		width = w.size.Width
	}

	nx := x - w.dragOffset.X
	ny := y - w.dragOffset.Y
	if ny < 0 {
		ny = 0
	}
	if nx < -width+edgeGrip {
		nx = -width + edgeGrip
	}
	if nx > w.viewport.Width-edgeGrip {
		nx = w.viewport.Width - edgeGrip
	}
	if ny > w.viewport.Height-edgeGrip {
		ny = w.viewport.Height - edgeGrip
	}
	w.pos = Point{X: nx, Y: ny}
}

// resize applies the pointer delta to the active handle. East and south edges clamp to
// the minimum; west and north edges only move while the result stays above it, shifting
// the origin so the opposite edge stays put. Callers hold mu.
func (w *Window) resize(x, y int) {
	dx := x - w.start.pointer.X
	dy := y - w.start.pointer.Y

	size := w.start.size
	origin := w.start.origin

	if w.handle.has('e') {
		size.Width = max(MinWidth, w.start.size.Width+dx)
	} else if w.handle.has('w') {
		if proposed := w.start.size.Width - dx; proposed >= MinWidth {
			size.Width = proposed
			origin.X = w.start.origin.X + dx
		}
	}

	if w.handle.has('s') {
		size.Height = max(MinHeight, w.start.size.Height+dy)
	} else if w.handle.has('n') {
		if proposed := w.start.size.Height - dy; proposed >= MinHeight {
			size.Height = proposed
			origin.Y = w.start.origin.Y + dy
		}
	}

	w.size = size
	w.pos = origin
}

// ClickLauncher toggles the window unless the preceding press turned into a drag.
// Opening pulls the window back inside the viewport.
func (w *Window) ClickLauncher() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hasMoved {
		return
	}
	if !w.open {
		w.fitOnOpen()
	}
	w.open = !w.open
}

// Open shows the window, repositioning it into the viewport.
func (w *Window) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open {
		return
	}
	w.fitOnOpen()
	w.open = true
}

// Minimize collapses the window to its launcher and leaves fullscreen.
func (w *Window) Minimize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
	w.fullScreen = false
}

// ToggleFullScreen switches fullscreen. Any gesture in progress is abandoned.
func (w *Window) ToggleFullScreen() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Idle {
		w.release()
	}
	w.fullScreen = !w.fullScreen
}

// SetSize resizes the window directly, clamped to the minimum size.
func (w *Window) SetSize(width, height int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fullScreen {
		return fmt.Errorf("cannot resize in fullscreen")
	}
	w.size = Size{Width: max(MinWidth, width), Height: max(MinHeight, height)}
	return nil
}

// fitOnOpen pulls the window into the viewport. Callers hold mu.
func (w *Window) fitOnOpen() {
	nx, ny := w.pos.X, w.pos.Y
	if nx+w.size.Width > w.viewport.Width {
		nx = w.viewport.Width - (w.size.Width + openMargin)
	}
	if ny+w.size.Height > w.viewport.Height {
		ny = w.viewport.Height - (w.size.Height + openMargin)
	}
	if ny < 0 {
		ny = 0
	}
	if nx < 0 {
		nx = openMargin
	}
	w.pos = Point{X: nx, Y: ny}
}
