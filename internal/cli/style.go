package cli

import "github.com/charmbracelet/lipgloss"

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headStyle = lipgloss.NewStyle().Bold(true)
)

func warnBanner(msg string) string {
	return warnStyle.Render("WARN") + " " + msg
}

func errorBanner(msg string) string {
	return errStyle.Render("ERROR") + " " + msg
}

func okBanner(msg string) string {
	return okStyle.Render("OK") + " " + msg
}
