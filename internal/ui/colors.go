package ui

import "github.com/charmbracelet/lipgloss"

const (
	plexAmber = lipgloss.Color("#E5A00D")
	matchGood = lipgloss.Color("#04B575")
	failRed   = lipgloss.Color("#FF4D4D")
)

var (
	warnAmber = lipgloss.AdaptiveColor{Light: "#B86E00", Dark: "#FFA500"}
	mutedGrey = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
)

// theme holds the styles shared by every screen of the model.
type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

var styles = theme{
	title: lipgloss.NewStyle().Foreground(plexAmber).Bold(true).MarginBottom(1),
	ok:    lipgloss.NewStyle().Foreground(matchGood).Bold(true),
	err:   lipgloss.NewStyle().Foreground(failRed).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(warnAmber),
	muted: lipgloss.NewStyle().Foreground(mutedGrey).Italic(true),
}
