package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"adsdash/internal/logger"
)

// defaultWordWrap is the wrap width of rendered agent answers.
const defaultWordWrap = 100

// MarkdownService renders agent answers, which the agent writes as markdown, for the
// terminal using Glamour.
type MarkdownService struct {
	initialized bool
	style       string
	width       int
	renderer    *glamour.TermRenderer
}

// NewMarkdownService creates a MarkdownService for the given adsdash theme.
func NewMarkdownService(theme string) *MarkdownService {
	return &MarkdownService{style: glamourStyle(theme), width: defaultWordWrap}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize builds the renderer.
func (m *MarkdownService) Initialize() error {
	renderer, err := newGlamourRenderer(m.style, m.width)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	m.renderer = renderer
	m.initialized = true
	logger.Debug("MarkdownService initialized", "style", m.style, "width", m.width)
	return nil
}

func newGlamourRenderer(style string, width int) (*glamour.TermRenderer, error) {
	if style == "auto" {
		return glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	}
	return glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width))
}

// Render renders markdown to ANSI terminal output. Blank input renders as "".
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// SetWordWrap rebuilds the renderer for a new terminal width.
func (m *MarkdownService) SetWordWrap(width int) error {
	if width <= 0 {
		return fmt.Errorf("word wrap width must be positive, got %d", width)
	}
	renderer, err := newGlamourRenderer(m.style, width)
	if err != nil {
		return fmt.Errorf("failed to create renderer with word wrap %d: %w", width, err)
	}
	m.renderer = renderer
	m.width = width
	m.initialized = true
	return nil
}

// glamourStyle maps an adsdash theme to a Glamour standard style.
func glamourStyle(theme string) string {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case "dark":
		return "dark"
	case "plain":
		return "notty"
	default:
		return "auto"
	}
}

// GetGlobalMarkdownService returns the registered markdown service.
func GetGlobalMarkdownService() (*MarkdownService, error) {
	return Lookup[*MarkdownService](GetGlobalRegistry(), "markdown")
}
