package tui

import "github.com/charmbracelet/lipgloss"

var (
	cBrown   = lipgloss.Color("#8B4513")
	cSuccess = lipgloss.Color("#4CAF50")
	cError   = lipgloss.Color("#f44336")
	cMuted   = lipgloss.Color("#888888")
	cText    = lipgloss.Color("#FFFFFF")

	appStyle   = lipgloss.NewStyle().Padding(1, 2)
	titleStyle = lipgloss.NewStyle().Foreground(cBrown).Bold(true).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(cMuted)
	valueStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(cError).Bold(true)
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(cBrown).
			Padding(0, 1)

	bannerStyle  = lipgloss.NewStyle().Foreground(cText).Padding(0, 1).MarginTop(1)
	successStyle = bannerStyle.Copy().Background(cSuccess)
	failureStyle = bannerStyle.Copy().Background(cError)
)
