package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const panelWidth = 60

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7eb8da")) // steel blue

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3d4450")) // slate

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7ec699")) // sage green

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c9d1d9")) // light gray

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7eb8da"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e")) // mid gray
)

// printHeader writes ╭─ TITLE ───╮ sized to panelWidth.
func printHeader(w io.Writer, title string) {
	titleUpper := strings.ToUpper(title)
	prefix := "╭─ "
	dashCount := panelWidth - lipgloss.Width(prefix+titleUpper+" ") - 1
	if dashCount < 0 {
		dashCount = 0
	}
	_, _ = fmt.Fprintln(w, borderStyle.Render(prefix)+
		titleStyle.Render(titleUpper)+
		borderStyle.Render(" "+strings.Repeat("─", dashCount)+"╮"))
}

func printFooter(w io.Writer) {
	_, _ = fmt.Fprintln(w, borderStyle.Render("╰"+strings.Repeat("─", panelWidth-2)+"╯"))
}

// printRow writes an aligned "label  value" line inside a panel.
func printRow(w io.Writer, label, value string) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n",
		borderStyle.Render("│"),
		labelStyle.Render(fmt.Sprintf("%-22s", label)),
		valueStyle.Render(value))
}
