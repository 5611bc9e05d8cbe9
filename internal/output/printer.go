// Package output writes adsdash results to the terminal: status messages through a
// Printer and dashboard views through a Renderer. Both fall back to plain text when the
// terminal has no color support.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"adsdash/internal/services"
)

// Semantic message kinds and their plain-text prefixes.
const (
	prefixInfo    = "ℹ "
	prefixSuccess = "✓ "
	prefixWarning = "⚠ "
	prefixError   = "✗ "
)

// Printer writes status messages, styled by a theme.
type Printer struct {
	mu     sync.Mutex
	writer io.Writer
	theme  *services.Theme
	plain  bool
}

// Option configures a Printer.
type Option func(*Printer)

// WithWriter sets the destination. Nil is ignored.
func WithWriter(writer io.Writer) Option {
	return func(p *Printer) {
		if writer != nil {
			p.writer = writer
		}
	}
}

// WithTheme styles messages with theme.
func WithTheme(theme *services.Theme) Option {
	return func(p *Printer) {
		p.theme = theme
	}
}

// PlainText disables all styling.
func PlainText() Option {
	return func(p *Printer) {
		p.plain = true
	}
}

// NewPrinter creates a Printer writing to stdout. Styling is off when stdout has no
// color support.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{writer: os.Stdout}
	for _, opt := range options {
		opt(p)
	}
	if !p.plain && !SupportsColor(p.writer) {
		p.plain = true
	}
	return p
}

// Plain reports whether styling is disabled.
func (p *Printer) Plain() bool {
	return p.plain || p.theme == nil
}

// Print writes text as is.
func (p *Printer) Print(text string) {
	p.write(text)
}

// Printf writes formatted text.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.write(fmt.Sprintf(format, args...))
}

// Println writes text followed by a newline.
func (p *Printer) Println(text string) {
	p.write(withNewline(text))
}

// Info writes an informational line.
func (p *Printer) Info(text string) {
	p.semantic(prefixInfo, text, func(t *services.Theme) lipgloss.Style { return t.Info })
}

// Success writes a success line.
func (p *Printer) Success(text string) {
	p.semantic(prefixSuccess, text, func(t *services.Theme) lipgloss.Style { return t.Good })
}

// Warning writes a warning line.
func (p *Printer) Warning(text string) {
	p.semantic(prefixWarning, text, func(t *services.Theme) lipgloss.Style { return t.Banner })
}

// Error writes an error line.
func (p *Printer) Error(text string) {
	p.semantic(prefixError, text, func(t *services.Theme) lipgloss.Style { return t.Error })
}

func (p *Printer) semantic(prefix, text string, style func(*services.Theme) lipgloss.Style) {
	line := prefix + text
	if !p.Plain() {
		line = style(p.theme).Render(line)
	}
	p.write(withNewline(line))
}

func (p *Printer) write(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Plain() {
		text = ansi.Strip(text)
	}
	_, _ = io.WriteString(p.writer, text)
}

func withNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

// SupportsColor reports whether w is a terminal that renders color. NO_COLOR and
// TERM=dumb turn color off.
func SupportsColor(w io.Writer) bool {
	return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
}

var (
	globalPrinter *Printer
	globalMu      sync.RWMutex
)

func init() {
	globalPrinter = NewPrinter()
}

// SetGlobalPrinter replaces the printer used by the package-level functions.
func SetGlobalPrinter(printer *Printer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalPrinter = printer
}

// GetGlobalPrinter returns the printer used by the package-level functions.
func GetGlobalPrinter() *Printer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalPrinter
}

// Println writes text with a newline using the global printer.
func Println(text string) {
	GetGlobalPrinter().Println(text)
}

// Info writes an informational line using the global printer.
func Info(text string) {
	GetGlobalPrinter().Info(text)
}

// Success writes a success line using the global printer.
func Success(text string) {
	GetGlobalPrinter().Success(text)
}

// Warning writes a warning line using the global printer.
func Warning(text string) {
	GetGlobalPrinter().Warning(text)
}

// Error writes an error line using the global printer.
func Error(text string) {
	GetGlobalPrinter().Error(text)
}
