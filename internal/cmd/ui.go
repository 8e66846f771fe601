package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#7ec699")
	colorWarning = lipgloss.Color("#ffe3b3")
	colorError   = lipgloss.Color("#f28b82")
	colorInfo    = lipgloss.Color("#86bada")
	colorMuted   = lipgloss.Color("#6b6d8a")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(colorInfo).Width(16)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// panel renders a titled box.
func panel(title, body string, color lipgloss.Color) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)
	heading := titleStyle.Foreground(color).Render(title)
	return box.Render(heading+"\n\n"+body) + "\n"
}

type row struct {
	label string
	value string
}

// rows renders label and value pairs in columns.
func rows(rs ...row) string {
	var lines []string
	for _, r := range rs {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r.label), r.value))
	}
	return strings.Join(lines, "\n")
}

func mark(ok bool, yes, no string) string {
	if ok {
		return lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ " + yes)
	}
	return lipgloss.NewStyle().Foreground(colorError).Render("✗ " + no)
}

// truncateToken shows the head and tail of a token.
func truncateToken(s string) string {
	if len(s) <= 30 {
		return s
	}
	return s[:20] + "..." + s[len(s)-10:]
}
