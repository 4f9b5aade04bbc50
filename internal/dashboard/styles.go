// Package dashboard is a small read-only bubbletea viewer over the
// engine's event stream. It holds no engine state of its own beyond what
// it renders and issues no pane keystrokes — the core never imports this
// package, and it never calls anything but Engine.Subscribe and
// registry.List.
package dashboard

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme names a color scheme, mirroring the teacher's light/dark split.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var darkColors = struct {
	Bg, Border, Text, TextDim lipgloss.Color
	Accent, Green, Yellow, Red, Comment lipgloss.Color
}{
	Bg:      lipgloss.Color("#1a1b26"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

var lightColors = struct {
	Bg, Border, Text, TextDim lipgloss.Color
	Accent, Green, Yellow, Red, Comment lipgloss.Color
}{
	Bg:      lipgloss.Color("#d5d6db"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

var (
	ColorBg      lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

var (
	TitleStyle  lipgloss.Style
	HeaderStyle lipgloss.Style
	PanelStyle  lipgloss.Style
	DimStyle    lipgloss.Style

	StatusActiveStyle  lipgloss.Style
	StatusWaitingStyle lipgloss.Style
	StatusEndedStyle   lipgloss.Style
	StatusErrorStyle   lipgloss.Style
)

var themeMu sync.RWMutex

// InitTheme sets the active palette and rebuilds every derived style. Safe
// to call again at runtime when the OS appearance changes or when a
// session's attention state flips. alert, when true, pins the title bar to
// the red accent regardless of theme so it stays visible under either
// palette.
func InitTheme(theme Theme, alert bool) {
	themeMu.Lock()
	defer themeMu.Unlock()

	colors := darkColors
	if theme == ThemeLight {
		colors = lightColors
	}
	ColorBg = colors.Bg
	ColorBorder = colors.Border
	ColorText = colors.Text
	ColorTextDim = colors.TextDim
	ColorAccent = colors.Accent
	ColorGreen = colors.Green
	ColorYellow = colors.Yellow
	ColorRed = colors.Red
	ColorComment = colors.Comment

	titleColor := ColorAccent
	if alert {
		titleColor = ColorRed
	}
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(titleColor)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorTextDim)
	PanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorBorder).Padding(0, 1)
	DimStyle = lipgloss.NewStyle().Foreground(ColorComment)

	StatusActiveStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	StatusWaitingStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StatusEndedStyle = lipgloss.NewStyle().Foreground(ColorComment)
	StatusErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
}

func init() {
	InitTheme(ThemeDark, false)
}
