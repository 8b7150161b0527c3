package viz

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the charts and the monitor.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Stance  lipgloss.Color
	Swing   lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

var (
	ThemeDefault = Theme{
		Name:    "default",
		Primary: lipgloss.Color("86"),
		Stance:  lipgloss.Color("49"),
		Swing:   lipgloss.Color("240"),
		Text:    lipgloss.Color("252"),
		Muted:   lipgloss.Color("245"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff4444"),
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Stance:  lipgloss.Color("#00cc00"),
		Swing:   lipgloss.Color("#004400"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#008800"),
		Success: lipgloss.Color("#88ff88"),
		Warning: lipgloss.Color("#ccff00"),
		Error:   lipgloss.Color("#ff0000"),
	}

	ThemeMono = Theme{
		Name:    "mono",
		Primary: lipgloss.Color("#ffffff"),
		Stance:  lipgloss.Color("#dddddd"),
		Swing:   lipgloss.Color("#555555"),
		Text:    lipgloss.Color("#cccccc"),
		Muted:   lipgloss.Color("#888888"),
		Success: lipgloss.Color("#ffffff"),
		Warning: lipgloss.Color("#aaaaaa"),
		Error:   lipgloss.Color("#ffffff"),
	}
)

var themes = map[string]Theme{
	ThemeDefault.Name:    ThemeDefault,
	ThemeRetroGreen.Name: ThemeRetroGreen,
	ThemeMono.Name:       ThemeMono,
}

// GetTheme falls back to the default theme for unknown names.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return ThemeDefault
}

func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
