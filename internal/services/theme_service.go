package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"gopkg.in/yaml.v3"

	"adsdash/internal/data/embedded"
	"adsdash/internal/logger"
	"adsdash/pkg/adtypes"
)

// ThemeService provides the dashboard themes loaded from the embedded YAML files.
type ThemeService struct {
	initialized bool
	themes      map[string]*Theme
}

// Theme holds the lipgloss styles of the dashboard elements.
type Theme struct {
	Name    string
	Header  lipgloss.Style
	Good    lipgloss.Style
	Bad     lipgloss.Style
	Muted   lipgloss.Style
	Anomaly lipgloss.Style
	Banner  lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	User    lipgloss.Style
	Agent   lipgloss.Style
}

// NewThemeService creates a new ThemeService instance with themes loaded from YAML.
func NewThemeService() *ThemeService {
	service := &ThemeService{themes: make(map[string]*Theme)}
	service.loadThemesFromYAML()
	return service
}

// Name returns the service name "theme" for registration.
func (t *ThemeService) Name() string {
	return "theme"
}

// Initialize sets up the ThemeService for operation.
func (t *ThemeService) Initialize() error {
	t.initialized = true
	return nil
}

func (t *ThemeService) loadThemesFromYAML() {
	themeFiles := map[string][]byte{
		"default": embedded.DefaultThemeData,
		"dark":    embedded.DarkThemeData,
		"plain":   embedded.PlainThemeData,
	}

	for themeName, themeData := range themeFiles {
		theme, err := loadThemeFile(themeData)
		if err != nil {
			logger.Error("Failed to load theme", "theme", themeName, "error", err)
			t.themes[themeName] = plainTheme(themeName)
			continue
		}
		t.themes[themeName] = theme
	}

	if _, exists := t.themes["plain"]; !exists {
		t.themes["plain"] = plainTheme("plain")
	}
}

func loadThemeFile(data []byte) (*Theme, error) {
	var config adtypes.ThemeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}
	if config.Name == "" {
		return nil, fmt.Errorf("theme file has no name")
	}

	s := config.Styles
	return &Theme{
		Name:    config.Name,
		Header:  createStyle(s.Header),
		Good:    createStyle(s.Good),
		Bad:     createStyle(s.Bad),
		Muted:   createStyle(s.Muted),
		Anomaly: createStyle(s.Anomaly),
		Banner:  createStyle(s.Banner),
		Error:   createStyle(s.Error),
		Info:    createStyle(s.Info),
		User:    createStyle(s.User),
		Agent:   createStyle(s.Agent),
	}, nil
}

// createStyle converts a StyleConfig to a lipgloss.Style.
func createStyle(config adtypes.StyleConfig) lipgloss.Style {
	style := lipgloss.NewStyle()

	if color := parseColor(config.Foreground); color != nil {
		style = style.Foreground(color)
	}
	if color := parseColor(config.Background); color != nil {
		style = style.Background(color)
	}

	if config.Bold != nil && *config.Bold {
		style = style.Bold(true)
	}
	if config.Italic != nil && *config.Italic {
		style = style.Italic(true)
	}
	if config.Underline != nil && *config.Underline {
		style = style.Underline(true)
	}
	if config.Strikethrough != nil && *config.Strikethrough {
		style = style.Strikethrough(true)
	}
	return style
}

// parseColor parses a color value that can be a string or a map with light/dark keys.
func parseColor(colorValue interface{}) lipgloss.TerminalColor {
	switch v := colorValue.(type) {
	case string:
		return lipgloss.Color(v)
	case map[string]interface{}:
		light, hasLight := v["light"].(string)
		dark, hasDark := v["dark"].(string)
		if hasLight && hasDark {
			return lipgloss.AdaptiveColor{Light: light, Dark: dark}
		}
		return nil
	default:
		return nil
	}
}

func plainTheme(name string) *Theme {
	plain := lipgloss.NewStyle()
	return &Theme{
		Name: name, Header: plain, Good: plain, Bad: plain, Muted: plain, Anomaly: plain,
		Banner: plain, Error: plain, Info: plain, User: plain, Agent: plain,
	}
}

// GetAvailableThemes returns the sorted theme names.
func (t *ThemeService) GetAvailableThemes() []string {
	if !t.initialized {
		return []string{}
	}

	themes := make([]string, 0, len(t.themes))
	for name := range t.themes {
		themes = append(themes, name)
	}
	sort.Strings(themes)
	return themes
}

// GetThemeByName returns the named theme, case-insensitively. It never fails: unknown
// names get the plain theme.
func (t *ThemeService) GetThemeByName(theme string) *Theme {
	if !t.initialized {
		return plainTheme("plain")
	}

	normalized := strings.ToLower(strings.TrimSpace(theme))
	if normalized == "" {
		normalized = "default"
	}
	if themeObj, exists := t.themes[normalized]; exists {
		return themeObj
	}
	logger.Debug("Invalid theme requested, using plain theme", "theme", theme, "available", t.GetAvailableThemes())
	return t.themes["plain"]
}

// Trend picks the style of a metric change. Only unfavourable moves are colored.
func (th *Theme) Trend(bad bool) lipgloss.Style {
	if bad {
		return th.Bad
	}
	return lipgloss.NewStyle()
}

// CreateList creates a new list with theme styling applied.
func (th *Theme) CreateList(items ...string) *list.List {
	l := list.New().EnumeratorStyle(th.Muted)
	for _, item := range items {
		l.Item(item)
	}
	return l
}

// GetGlobalThemeService returns the registered theme service.
func GetGlobalThemeService() (*ThemeService, error) {
	return Lookup[*ThemeService](GetGlobalRegistry(), "theme")
}
