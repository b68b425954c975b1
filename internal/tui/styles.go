package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorFg      = lipgloss.Color("#ABB2BF")
	colorMuted   = lipgloss.Color("#636B78")
	colorRed     = lipgloss.Color("#E06C75")
	colorGreen   = lipgloss.Color("#98C379")
	colorYellow  = lipgloss.Color("#E5C07B")
	colorMagenta = lipgloss.Color("#C678DD")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true).
			PaddingLeft(1)

	folderStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			PaddingLeft(1)

	readyStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	evictedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	pendingStyle = lipgloss.NewStyle().Foreground(colorMuted)
	noticeStyle  = lipgloss.NewStyle().Foreground(colorYellow).PaddingLeft(1)

	listStyle = lipgloss.NewStyle().
			PaddingLeft(1)
)
