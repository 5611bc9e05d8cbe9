// Package adtypes defines theme-related data structures for the adsdash renderer.
package adtypes

// ThemeConfig represents a theme configuration loaded from YAML.
type ThemeConfig struct {
	// Name is the theme identifier (e.g., "default", "dark", "plain")
	Name string `yaml:"name" json:"name"`

	// Description provides a brief description of the theme
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Styles contains the style definitions for the dashboard elements
	Styles ThemeStyles `yaml:"styles" json:"styles"`
}

// ThemeStyles defines the styling configuration for the dashboard elements.
type ThemeStyles struct {
	// Header style for table headers and panel titles
	Header StyleConfig `yaml:"header" json:"header"`

	// Good style for favourable trends (ROAS rise, CPA drop)
	Good StyleConfig `yaml:"good" json:"good"`

	// Bad style for unfavourable trends (ROAS drop, CPA rise)
	Bad StyleConfig `yaml:"bad" json:"bad"`

	// Muted style for neutral values and placeholders
	Muted StyleConfig `yaml:"muted" json:"muted"`

	// Anomaly style for highlighted rows
	Anomaly StyleConfig `yaml:"anomaly" json:"anomaly"`

	// Banner style for the anomaly diagnostic banner
	Banner StyleConfig `yaml:"banner" json:"banner"`

	// Error style for error placeholders and messages
	Error StyleConfig `yaml:"error" json:"error"`

	// Info style for status lines
	Info StyleConfig `yaml:"info" json:"info"`

	// User style for the user role label in chat transcripts
	User StyleConfig `yaml:"user" json:"user"`

	// Agent style for the agent role label in chat transcripts
	Agent StyleConfig `yaml:"agent" json:"agent"`
}

// StyleConfig represents the styling options for a single element.
// Colors may be plain strings or adaptive maps with light/dark keys.
type StyleConfig struct {
	Foreground    interface{} `yaml:"foreground,omitempty" json:"foreground,omitempty"`
	Background    interface{} `yaml:"background,omitempty" json:"background,omitempty"`
	Bold          *bool       `yaml:"bold,omitempty" json:"bold,omitempty"`
	Italic        *bool       `yaml:"italic,omitempty" json:"italic,omitempty"`
	Underline     *bool       `yaml:"underline,omitempty" json:"underline,omitempty"`
	Strikethrough *bool       `yaml:"strikethrough,omitempty" json:"strikethrough,omitempty"`
}
