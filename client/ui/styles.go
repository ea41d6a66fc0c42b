package ui

import (
	"chatroom/client/cable"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("63")
	mutedColor   = lipgloss.Color("241")
	errorColor   = lipgloss.Color("196")
	okColor      = lipgloss.Color("42")
	warnColor    = lipgloss.Color("214")
	textColor    = lipgloss.Color("255")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	dateStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	bodyStyle = lipgloss.NewStyle().
			Foreground(textColor)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true).
				Padding(1, 2)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Padding(1, 2)

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(primaryColor).
			Padding(0, 2)

	buttonBusyStyle = buttonStyle.
			Background(mutedColor)

	noticeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("230")).
				Background(errorColor).
				Padding(0, 1)

	noticeInfoStyle = noticeErrorStyle.
			Background(primaryColor)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

func statusIndicator(s cable.Status) string {
	color := mutedColor
	switch s {
	case cable.StatusConnected:
		color = okColor
	case cable.StatusConnecting, cable.StatusReconnecting:
		color = warnColor
	case cable.StatusDisconnected:
		color = errorColor
	}
	return lipgloss.NewStyle().Foreground(color).Render("● " + s.String())
}
