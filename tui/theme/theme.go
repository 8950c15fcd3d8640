// Package theme defines the shared lipgloss styles for Canopy's
// terminal output.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Kanagawa-derived palette; adaptive pairs are dark/light.
var (
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#98BB6C", Light: "#4E7C5A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#E6C384", Light: "#A68A64"}
	colorOrange = lipgloss.AdaptiveColor{Dark: "#FF9E3B", Light: "#B35C00"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF5D62", Light: "#C34043"}
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#7FB4CA", Light: "#4F7CAC"}
	colorCyan   = lipgloss.AdaptiveColor{Dark: "#7AA89F", Light: "#497B73"}
	colorViolet = lipgloss.AdaptiveColor{Dark: "#957FB8", Light: "#674D7A"}
	colorText   = lipgloss.AdaptiveColor{Dark: "#DCD7BA", Light: "#2B2F42"}
	colorMuted  = lipgloss.AdaptiveColor{Dark: "#727169", Light: "#6C7086"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#363646", Light: "#B5BDC5"}
)

// Palette exposes the raw adaptive colors for callers that compose
// their own styles.
type Palette struct {
	Green  lipgloss.AdaptiveColor
	Yellow lipgloss.AdaptiveColor
	Orange lipgloss.AdaptiveColor
	Red    lipgloss.AdaptiveColor
	Blue   lipgloss.AdaptiveColor
	Cyan   lipgloss.AdaptiveColor
	Violet lipgloss.AdaptiveColor
	Text   lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor
	Border lipgloss.AdaptiveColor
}

// Theme groups the styles used across CLI and TUI surfaces.
type Theme struct {
	Colors   Palette
	Title    lipgloss.Style
	Accent   lipgloss.Style
	Text     lipgloss.Style
	Italic   lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Selected lipgloss.Style
	Border   lipgloss.Style
}

// DefaultTheme is the theme used unless a caller builds its own.
var DefaultTheme = New()

// New constructs the default theme.
func New() *Theme {
	return &Theme{
		Colors: Palette{
			Green:  colorGreen,
			Yellow: colorYellow,
			Orange: colorOrange,
			Red:    colorRed,
			Blue:   colorBlue,
			Cyan:   colorCyan,
			Violet: colorViolet,
			Text:   colorText,
			Muted:  colorMuted,
			Border: colorBorder,
		},
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorViolet),
		Italic:   lipgloss.NewStyle().Italic(true).Foreground(colorMuted),
		Accent:   lipgloss.NewStyle().Foreground(colorBlue),
		Text:     lipgloss.NewStyle().Foreground(colorText),
		Muted:    lipgloss.NewStyle().Foreground(colorMuted),
		Success:  lipgloss.NewStyle().Foreground(colorGreen),
		Warning:  lipgloss.NewStyle().Foreground(colorYellow),
		Error:    lipgloss.NewStyle().Foreground(colorRed),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(colorText),
		Border:   lipgloss.NewStyle().Foreground(colorBorder),
	}
}

// HasDarkBackground reports the terminal background, used by callers
// that render outside lipgloss' adaptive handling.
func HasDarkBackground() bool {
	return termenv.HasDarkBackground()
}
