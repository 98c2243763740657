package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#7AA2F7")
	colorGreen   = lipgloss.Color("#9ECE6A")
	colorRed     = lipgloss.Color("#F7768E")
	colorAmber   = lipgloss.Color("#E0AF68")
	colorSubtle  = lipgloss.Color("#787C99")
	colorText    = lipgloss.Color("#C0CAF5")
	colorDimGray = lipgloss.Color("#414868")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	commandStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	textStyle = lipgloss.NewStyle().
			Foreground(colorText)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	groupRule = lipgloss.NewStyle().
			Foreground(colorDimGray)

	trackStyle = lipgloss.NewStyle().
			Foreground(colorAmber)

	selectedTrackStyle = lipgloss.NewStyle().
				Foreground(colorAmber).
				Bold(true).
				Reverse(true)

	playingStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorAmber).
			Bold(true)

	statusBar = lipgloss.NewStyle().
			Foreground(colorSubtle).
			Padding(0, 1)

	logBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDimGray).
			Padding(0, 1)
)
