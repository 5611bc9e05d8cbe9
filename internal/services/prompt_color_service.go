package services

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	// {{color:spec}}text{{/color}}, spec being a theme element, a color name or #hex.
	colorMarkup = regexp.MustCompile(`\{\{color:([^}]+)\}\}(.*?)\{\{/color\}\}`)
	// {{bold}}text{{/bold}}; the closing tag is checked in code.
	styleMarkup = regexp.MustCompile(`\{\{(bold|italic|underline)\}\}(.*?)\{\{/(bold|italic|underline)\}\}`)
)

// PromptColorService renders the chat shell prompt template. Color markup is resolved
// against the configured theme, or stripped when the terminal has no colors.
type PromptColorService struct {
	initialized bool
	template    string
	themeName   string
	theme       *Theme
	colors      bool
}

// NewPromptColorService creates the service for a prompt template and theme name.
func NewPromptColorService(template, theme string) *PromptColorService {
	return &PromptColorService{template: template, themeName: theme}
}

// Name returns the service name "prompt_color" for registration.
func (p *PromptColorService) Name() string {
	return "prompt_color"
}

// Initialize resolves the theme. The theme service is optional; without it only named
// colors apply.
func (p *PromptColorService) Initialize() error {
	if p.initialized {
		return nil
	}
	if themes, err := GetGlobalThemeService(); err == nil {
		p.theme = themes.GetThemeByName(p.themeName)
	}
	p.colors = lipgloss.ColorProfile() != termenv.Ascii && !strings.EqualFold(p.themeName, "plain")
	p.initialized = true
	return nil
}

// Prompt returns the rendered prompt template.
func (p *PromptColorService) Prompt() string {
	template := p.template
	if template == "" {
		template = DefaultPrompt
	}
	return p.ProcessColorMarkup(template)
}

// ProcessColorMarkup turns color and style markup into ANSI codes, or strips it when
// colors are off. Before Initialize the input is returned unchanged.
func (p *PromptColorService) ProcessColorMarkup(input string) string {
	if !p.initialized {
		return input
	}
	if !p.colors {
		return StripPromptMarkup(input)
	}

	result := colorMarkup.ReplaceAllStringFunc(input, func(match string) string {
		m := colorMarkup.FindStringSubmatch(match)
		return p.colorStyle(m[1]).Render(m[2])
	})
	return styleMarkup.ReplaceAllStringFunc(result, func(match string) string {
		m := styleMarkup.FindStringSubmatch(match)
		if m[1] != m[3] {
			return match
		}
		return textStyle(m[1]).Render(m[2])
	})
}

// StripPromptMarkup removes the markup and keeps the text.
func StripPromptMarkup(input string) string {
	result := colorMarkup.ReplaceAllString(input, "$2")
	return styleMarkup.ReplaceAllStringFunc(result, func(match string) string {
		m := styleMarkup.FindStringSubmatch(match)
		if m[1] != m[3] {
			return match
		}
		return m[2]
	})
}

func (p *PromptColorService) colorStyle(spec string) lipgloss.Style {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if p.theme != nil {
		if style, ok := themeElement(p.theme, spec); ok {
			return style
		}
	}
	return namedColor(spec)
}

func themeElement(t *Theme, name string) (lipgloss.Style, bool) {
	switch name {
	case "header":
		return t.Header, true
	case "good", "success":
		return t.Good, true
	case "bad":
		return t.Bad, true
	case "muted":
		return t.Muted, true
	case "anomaly", "warning":
		return t.Anomaly, true
	case "banner":
		return t.Banner, true
	case "error":
		return t.Error, true
	case "info":
		return t.Info, true
	case "user":
		return t.User, true
	case "agent":
		return t.Agent, true
	}
	return lipgloss.Style{}, false
}

var ansiColorNames = map[string]string{
	"red": "1", "green": "2", "yellow": "3", "blue": "4", "magenta": "5", "purple": "5",
	"cyan": "6", "white": "7", "gray": "8", "grey": "8",
}

func namedColor(spec string) lipgloss.Style {
	style := lipgloss.NewStyle()
	if code, ok := ansiColorNames[spec]; ok {
		return style.Foreground(lipgloss.Color(code))
	}
	// Hex values and ANSI numbers pass through.
	return style.Foreground(lipgloss.Color(spec))
}

func textStyle(kind string) lipgloss.Style {
	switch kind {
	case "bold":
		return lipgloss.NewStyle().Bold(true)
	case "italic":
		return lipgloss.NewStyle().Italic(true)
	case "underline":
		return lipgloss.NewStyle().Underline(true)
	}
	return lipgloss.NewStyle()
}

// GetGlobalPromptColorService returns the registered prompt service.
func GetGlobalPromptColorService() (*PromptColorService, error) {
	return Lookup[*PromptColorService](GetGlobalRegistry(), "prompt_color")
}
