package table

// Column width limits in pixels.
const (
	DefaultColumnWidth = 150
	MinColumnWidth     = 50
)

type columnResize struct {
	column     int
	startX     int
	startWidth int
}

// ColumnWidths tracks per-column pixel widths and the drag that is resizing one of them.
// Each drag handle adjusts only its own column.
type ColumnWidths struct {
	widths   map[int]int
	resizing *columnResize
}

// NewColumnWidths returns widths for n columns, all at the default width.
func NewColumnWidths(n int) *ColumnWidths {
	c := &ColumnWidths{}
	c.Reset(n)
	return c
}

// Reset restores the default width for n columns and cancels any drag.
func (c *ColumnWidths) Reset(n int) {
	c.widths = make(map[int]int, n)
	for i := 0; i < n; i++ {
		c.widths[i] = DefaultColumnWidth
	}
	c.resizing = nil
}

// Width returns the width of column i.
func (c *ColumnWidths) Width(i int) int {
	if w, ok := c.widths[i]; ok {
		return w
	}
	return DefaultColumnWidth
}

// BeginResize starts dragging the handle of column i at pointer position x.
func (c *ColumnWidths) BeginResize(i, x int) {
	c.resizing = &columnResize{column: i, startX: x, startWidth: c.Width(i)}
}

// Resizing reports whether a handle is being dragged.
func (c *ColumnWidths) Resizing() bool {
	return c.resizing != nil
}

// Drag moves the active handle to pointer position x. It does nothing when no handle is held.
func (c *ColumnWidths) Drag(x int) {
	if c.resizing == nil {
		return
	}
	w := c.resizing.startWidth + x - c.resizing.startX
	if w < MinColumnWidth {
		w = MinColumnWidth
	}
	c.widths[c.resizing.column] = w
}

// EndResize releases the active handle.
func (c *ColumnWidths) EndResize() {
	c.resizing = nil
}

// Set assigns a width directly, honoring the minimum.
func (c *ColumnWidths) Set(i, width int) {
	if width < MinColumnWidth {
		width = MinColumnWidth
	}
	c.widths[i] = width
}
