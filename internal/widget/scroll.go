package widget

// ScrollThreshold is how close to the bottom, in pixels, the message list must be for
// new content to scroll it.
const ScrollThreshold = 50

// ScrollTracker decides whether growing content should keep the message list pinned to
// the bottom. Scrolling up to read history unpins it; scrolling back down re-pins it.
type ScrollTracker struct {
	pinned bool
}

// NewScrollTracker returns a tracker pinned to the bottom.
func NewScrollTracker() *ScrollTracker {
	return &ScrollTracker{pinned: true}
}

// OnScroll records the latest scroll position.
func (s *ScrollTracker) OnScroll(scrollTop, scrollHeight, clientHeight int) {
	s.pinned = scrollHeight-scrollTop-clientHeight < ScrollThreshold
}

// ShouldAutoScroll reports whether new content should scroll into view.
func (s *ScrollTracker) ShouldAutoScroll() bool {
	return s.pinned
}

// Reset re-pins the tracker, as when switching conversation or reopening the window.
func (s *ScrollTracker) Reset() {
	s.pinned = true
}
