package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sacrosaunt/churnchurnchurn/internal/considerations"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
)

type theme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	helpText    lipgloss.Style
	fieldKey    lipgloss.Style
	fieldValue  lipgloss.Style
	fieldPick   lipgloss.Style
	muted       lipgloss.Style
	urgent      lipgloss.Style
	optimized   lipgloss.Style
	badges      map[offerstate.DisplayStatus]lipgloss.Style
	kinds       map[considerations.Kind]lipgloss.Style
}

func newTheme() theme {
	green := lipgloss.Color("#05c46b")
	blue := lipgloss.Color("#3c9ee7")
	amber := lipgloss.Color("#ffb142")
	red := lipgloss.Color("#ff5e57")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3b8")
	panelBg := lipgloss.Color("#1b1f2b")

	badge := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}

	return theme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),
		footer: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		fieldKey:    lipgloss.NewStyle().Foreground(blue),
		fieldValue:  lipgloss.NewStyle().Foreground(text),
		fieldPick:   lipgloss.NewStyle().Foreground(amber).Bold(true),
		muted:       lipgloss.NewStyle().Foreground(muted),
		urgent:      lipgloss.NewStyle().Foreground(red).Bold(true),
		optimized:   lipgloss.NewStyle().Foreground(green),
		badges: map[offerstate.DisplayStatus]lipgloss.Style{
			offerstate.Processing:     badge(amber),
			offerstate.Failed:         badge(red),
			offerstate.Claimed:        badge(green),
			offerstate.Waiting:        badge(blue),
			offerstate.PendingDeposit: badge(amber),
			offerstate.Unopened:       badge(muted),
		},
		kinds: map[considerations.Kind]lipgloss.Style{
			considerations.Good:    badge(green),
			considerations.Caution: badge(amber),
			considerations.Warning: badge(red),
		},
	}
}

func (t theme) badge(status offerstate.DisplayStatus) string {
	style, ok := t.badges[status]
	if !ok {
		style = t.muted
	}
	return style.Render(offerstate.Label(status))
}
