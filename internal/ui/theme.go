package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of one settings theme.
type Theme struct {
	Name string

	Background string
	Surface    string
	Border     string

	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Header      lipgloss.Style
	Footer      lipgloss.Style
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style
	Toast       lipgloss.Style
	Pane        lipgloss.Style
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		InfoText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Info)),

		Toast: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Background)).
			Background(lipgloss.Color(t.Warning)).
			Padding(0, 1),

		Pane: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)),
	}
}

// Theme definitions. Names match the "theme" settings key.

var themes = map[string]Theme{
	"dark":  darkTheme(),
	"light": lightTheme(),
}

var themeOrder = []string{"dark", "light"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return darkTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func darkTheme() Theme {
	// Dracula palette: https://draculatheme.com/spec
	return Theme{
		Name:       "dark",
		Background: "#191A21",
		Surface:    "#282A36",
		Border:     "#44475A",
		Text:       "#F8F8F2",
		Muted:      "#6272A4",
		Accent:     "#BD93F9",
		Success:    "#50FA7B",
		Warning:    "#FFB86C",
		Danger:     "#FF5555",
		Info:       "#8BE9FD",
	}
}

func lightTheme() Theme {
	// Tailwind CSS slate scale, inverted for light backgrounds.
	return Theme{
		Name:       "light",
		Background: "#f8fafc", // slate-50
		Surface:    "#e2e8f0", // slate-200
		Border:     "#94a3b8", // slate-400
		Text:       "#0f172a", // slate-900
		Muted:      "#64748b", // slate-500
		Accent:     "#0284c7", // sky-600
		Success:    "#16a34a", // green-600
		Warning:    "#d97706", // amber-600
		Danger:     "#dc2626", // red-600
		Info:       "#0891b2", // cyan-600
	}
}
