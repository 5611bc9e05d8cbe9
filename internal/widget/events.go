// Package widget implements the geometry of the floating chat window: its position and
// size inside a viewport and the drag and resize gestures that change them.
//
// Gestures are an explicit state machine. A press on the header, the launcher or a resize
// handle moves the machine out of Idle and subscribes to pointer move and release events;
// the release returns it to Idle and drops the subscription, so no listener outlives its
// gesture.
package widget

// EventKind is the kind of a pointer event.
type EventKind int

// Pointer event kinds delivered by an EventSource.
const (
	PointerMove EventKind = iota
	PointerUp
)

// PointerEvent is a pointer position in viewport coordinates.
type PointerEvent struct {
	Kind EventKind
	X    int
	Y    int
}

// EventSource delivers pointer events to subscribers until they unsubscribe.
type EventSource interface {
	Subscribe(fn func(PointerEvent)) (unsubscribe func())
}

// Handle names one of the eight resize handles.
type Handle string

// Resize handles.
const (
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleE  Handle = "e"
	HandleW  Handle = "w"
	HandleNE Handle = "ne"
	HandleNW Handle = "nw"
	HandleSE Handle = "se"
	HandleSW Handle = "sw"
)

// ParseHandle validates a handle name.
func ParseHandle(s string) (Handle, bool) {
	switch h := Handle(s); h {
	case HandleN, HandleS, HandleE, HandleW, HandleNE, HandleNW, HandleSE, HandleSW:
		return h, true
	}
	return "", false
}

func (h Handle) has(edge byte) bool {
	for i := 0; i < len(h); i++ {
		if h[i] == edge {
			return true
		}
	}
	return false
}
