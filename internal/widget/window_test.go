package widget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource records subscriptions and lets tests emit pointer events.
type fakeSource struct {
	mu        sync.Mutex
	listeners map[int]func(PointerEvent)
	next      int
}

func newFakeSource() *fakeSource {
	return &fakeSource{listeners: make(map[int]func(PointerEvent))}
}

func (f *fakeSource) Subscribe(fn func(PointerEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeSource) emit(ev PointerEvent) {
	f.mu.Lock()
	fns := make([]func(PointerEvent), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeSource) move(x, y int) { f.emit(PointerEvent{Kind: PointerMove, X: x, Y: y}) }
func (f *fakeSource) up()           { f.emit(PointerEvent{Kind: PointerUp}) }

var viewport = Size{Width: 1280, Height: 800}

func TestNew_Defaults(t *testing.T) {
	w := New(viewport, newFakeSource())
	g := w.Geometry()

	assert.Equal(t, Point{X: 810, Y: 100}, g.Position)
	assert.Equal(t, Size{Width: 450, Height: 650}, g.Size)
	assert.False(t, g.Open)
	assert.False(t, g.FullScreen)
	assert.Equal(t, Idle, w.State())
	assert.Equal(t, Rect{Point: Point{X: 810, Y: 100}, Size: Size{Width: 56, Height: 56}}, w.Bounds())
}

func TestDrag_ClampsAndUnsubscribes(t *testing.T) {
	src := newFakeSource()
	w := New(viewport, src)
	w.Open()
	start := w.Geometry().Position

	w.PressHeader(start.X+10, start.Y+5)
	assert.Equal(t, Dragging, w.State())
	assert.Equal(t, 1, src.count())

	src.move(start.X+110, start.Y+55)
	assert.Equal(t, Point{X: start.X + 100, Y: start.Y + 50}, w.Geometry().Position)

	// above the top edge
	src.move(500, -300)
	assert.Equal(t, 0, w.Geometry().Position.Y)

	// far left keeps a 20px grip of the window
	src.move(-5000, 100)
	assert.Equal(t, -450+20, w.Geometry().Position.X)

	// far right and bottom
	src.move(5000, 5000)
	assert.Equal(t, Point{X: 1280 - 20, Y: 800 - 20}, w.Geometry().Position)

	src.up()
	assert.Equal(t, Idle, w.State())
	assert.Equal(t, 0, src.count())

	// moves after release are ignored
	src.move(0, 0)
	assert.Equal(t, Point{X: 1260, Y: 780}, w.Geometry().Position)
}

func TestDrag_LauncherUsesLauncherWidth(t *testing.T) {
	src := newFakeSource()
	w := New(viewport, src)

	w.PressLauncher(810, 100)
	src.move(-5000, 100)
	assert.Equal(t, -56+20, w.Geometry().Position.X)
	src.up()
}

func TestClickLauncher_TogglesOnlyWithoutMovement(t *testing.T) {
	src := newFakeSource()
	w := New(viewport, src)

	w.PressLauncher(820, 110)
	src.up()
	w.ClickLauncher()
	assert.True(t, w.Geometry().Open)

	w.PressLauncher(820, 110)
	src.move(700, 110)
	src.up()
	w.ClickLauncher()
	assert.True(t, w.Geometry().Open, "a drag must not toggle")

	w.PressLauncher(700, 110)
	src.up()
	w.ClickLauncher()
	assert.False(t, w.Geometry().Open)
}

func TestOpen_RepositionsIntoViewport(t *testing.T) {
	tests := []struct {
		name  string
		start Point
		want  Point
	}{
		{name: "overflowing right and bottom", start: Point{X: 1200, Y: 700}, want: Point{X: 1280 - 460, Y: 800 - 660}},
		{name: "negative left", start: Point{X: -30, Y: 40}, want: Point{X: 10, Y: 40}},
		{name: "already inside", start: Point{X: 100, Y: 100}, want: Point{X: 100, Y: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(viewport, nil)
			w.pos = tt.start
			w.ClickLauncher()
			assert.Equal(t, tt.want, w.Geometry().Position)
		})
	}

	t.Run("viewport shorter than window", func(t *testing.T) {
		w := New(Size{Width: 1280, Height: 500}, nil)
		w.pos = Point{X: 100, Y: 100}
		w.Open()
		assert.Equal(t, 0, w.Geometry().Position.Y)
	})
}

func TestResize(t *testing.T) {
	tests := []struct {
		name     string
		handle   Handle
		dx, dy   int
		wantSize Size
		wantPos  Point
	}{
		{name: "east grows", handle: HandleE, dx: 100, wantSize: Size{Width: 550, Height: 650}, wantPos: Point{X: 200, Y: 100}},
		{name: "east clamps", handle: HandleE, dx: -300, wantSize: Size{Width: 350, Height: 650}, wantPos: Point{X: 200, Y: 100}},
		{name: "south clamps", handle: HandleS, dy: -500, wantSize: Size{Width: 450, Height: 450}, wantPos: Point{X: 200, Y: 100}},
		{name: "west grows and shifts", handle: HandleW, dx: -50, wantSize: Size{Width: 500, Height: 650}, wantPos: Point{X: 150, Y: 100}},
		{name: "west below minimum ignored", handle: HandleW, dx: 150, wantSize: Size{Width: 450, Height: 650}, wantPos: Point{X: 200, Y: 100}},
		{name: "north shrinks and shifts", handle: HandleN, dy: 100, wantSize: Size{Width: 450, Height: 550}, wantPos: Point{X: 200, Y: 200}},
		{name: "north below minimum ignored", handle: HandleN, dy: 250, wantSize: Size{Width: 450, Height: 650}, wantPos: Point{X: 200, Y: 100}},
		{name: "south east", handle: HandleSE, dx: 10, dy: 20, wantSize: Size{Width: 460, Height: 670}, wantPos: Point{X: 200, Y: 100}},
		{name: "north west", handle: HandleNW, dx: -10, dy: -20, wantSize: Size{Width: 460, Height: 670}, wantPos: Point{X: 190, Y: 80}},
		{name: "north east", handle: HandleNE, dx: 10, dy: 10, wantSize: Size{Width: 460, Height: 640}, wantPos: Point{X: 200, Y: 110}},
		{name: "south west", handle: HandleSW, dx: 10, dy: 10, wantSize: Size{Width: 440, Height: 660}, wantPos: Point{X: 210, Y: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			w := New(viewport, src)
			w.pos = Point{X: 200, Y: 100}
			w.Open()

			w.PressHandle(tt.handle, 300, 300)
			assert.Equal(t, Resizing, w.State())
			src.move(300+tt.dx, 300+tt.dy)
			src.up()

			g := w.Geometry()
			assert.Equal(t, tt.wantSize, g.Size)
			assert.Equal(t, tt.wantPos, g.Position)
			assert.Equal(t, 0, src.count())
		})
	}
}

func TestGestures_OneAtATime(t *testing.T) {
	src := newFakeSource()
	w := New(viewport, src)
	w.Open()

	w.PressHandle(HandleE, 0, 0)
	w.PressHeader(10, 10)
	assert.Equal(t, Resizing, w.State())
	assert.Equal(t, 1, src.count())
	src.up()
	assert.Equal(t, 0, src.count())
}

func TestFullScreen_DisablesGestures(t *testing.T) {
	src := newFakeSource()
	w := New(viewport, src)
	w.Open()
	w.ToggleFullScreen()

	w.PressHeader(10, 10)
	w.PressHandle(HandleSE, 10, 10)
	assert.Equal(t, Idle, w.State())
	assert.Equal(t, 0, src.count())
	assert.Equal(t, Rect{Size: viewport}, w.Bounds())
	assert.Error(t, w.SetSize(600, 700))

	w.Minimize()
	g := w.Geometry()
	assert.False(t, g.Open)
	assert.False(t, g.FullScreen)
}

func TestFullScreen_AbandonsActiveGesture(t *testing.T) {
	src := newFakeSource()
	w := New(viewport, src)
	w.Open()

	w.PressHeader(900, 200)
	require.Equal(t, 1, src.count())
	w.ToggleFullScreen()
	assert.Equal(t, Idle, w.State())
	assert.Equal(t, 0, src.count())
}

func TestSetSize_Clamps(t *testing.T) {
	w := New(viewport, nil)
	require.NoError(t, w.SetSize(100, 2000))
	assert.Equal(t, Size{Width: 350, Height: 2000}, w.Geometry().Size)
}

func TestParseHandle(t *testing.T) {
	h, ok := ParseHandle("se")
	assert.True(t, ok)
	assert.Equal(t, HandleSE, h)

	_, ok = ParseHandle("x")
	assert.False(t, ok)
}

func TestScrollTracker(t *testing.T) {
	s := NewScrollTracker()
	assert.True(t, s.ShouldAutoScroll())

	s.OnScroll(100, 1000, 400)
	assert.False(t, s.ShouldAutoScroll())

	s.OnScroll(560, 1000, 400)
	assert.True(t, s.ShouldAutoScroll())

	s.OnScroll(0, 1000, 400)
	s.Reset()
	assert.True(t, s.ShouldAutoScroll())
}
