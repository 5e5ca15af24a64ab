package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/isruplay/internal/playback"
)

// Theme defines the colour scheme of the dashboard.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Border    lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

var (
	ThemeMars = Theme{
		Name:      "mars",
		Primary:   lipgloss.Color("#ff7043"), // regolith
		Secondary: lipgloss.Color("#ffcc80"),
		Text:      lipgloss.Color("#fff3e0"),
		Muted:     lipgloss.Color("#8d6e63"),
		Border:    lipgloss.Color("#5d4037"),
		Success:   lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff4444"),
	}

	ThemeCyberpunk = Theme{
		Name:      "cyberpunk",
		Primary:   lipgloss.Color("#ff00ff"),
		Secondary: lipgloss.Color("#00ffff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666688"),
		Border:    lipgloss.Color("#444466"),
		Success:   lipgloss.Color("#00ff00"),
		Warning:   lipgloss.Color("#ff8800"),
		Error:     lipgloss.Color("#ff0000"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#0088ff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
		Border:    lipgloss.Color("#444444"),
		Success:   lipgloss.Color("#00ff00"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff0000"),
	}

	Themes = []Theme{ThemeMars, ThemeCyberpunk, ThemeMinimal}
)

// GetTheme returns a theme by name, falling back to mars.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeMars
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

type styles struct {
	title    lipgloss.Style
	subtle   lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	err      lipgloss.Style
	panel    lipgloss.Style
	statusBy map[playback.State]lipgloss.Style
	barFull  lipgloss.Style
	barEmpty lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		subtle: lipgloss.NewStyle().Foreground(t.Muted),
		label:  lipgloss.NewStyle().Foreground(t.Muted),
		value:  lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		err:    lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		statusBy: map[playback.State]lipgloss.Style{
			playback.Idle:     lipgloss.NewStyle().Foreground(t.Muted),
			playback.Running:  lipgloss.NewStyle().Bold(true).Foreground(t.Success),
			playback.Paused:   lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
			playback.Finished: lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		},
		barFull:  lipgloss.NewStyle().Foreground(t.Primary),
		barEmpty: lipgloss.NewStyle().Foreground(t.Border),
	}
}

func (s styles) state(st playback.State) string {
	return s.statusBy[st].Render(strings.ToUpper(st.String()))
}

// progress renders step/total as a bar of the given width.
func (s styles) progress(step, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = step * width / total
	}
	if filled > width {
		filled = width
	}
	return s.barFull.Render(strings.Repeat("█", filled)) + s.barEmpty.Render(strings.Repeat("░", width-filled))
}

func (s styles) separator(width int) string {
	if width < 8 {
		return s.subtle.Render(strings.Repeat("─", width))
	}
	mid := width / 2
	return s.subtle.Render(strings.Repeat("─", mid-3) + " ◆ " + strings.Repeat("─", width-mid-3))
}
