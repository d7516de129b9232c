// Package render formats goal sets, notices and diffs for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"

	"okrdraft/internal/health"
	"okrdraft/internal/okr"
)

var (
	ColorTeal    = lipgloss.Color("#0D9488")
	ColorCyan    = lipgloss.Color("#0891B2")
	ColorGray    = lipgloss.Color("#6B7280")
	ColorAmber   = lipgloss.Color("#D97706")
	ColorRed     = lipgloss.Color("#DC2626")
	ColorGreen   = lipgloss.Color("#16A34A")
	ColorSurface = lipgloss.Color("#F0FDFA")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorTeal)
	labelStyle = lipgloss.NewStyle().Foreground(ColorGray)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1).
			Width(80)

	selectedCardStyle = cardStyle.
				BorderForeground(ColorTeal).
				Background(ColorSurface)

	noticeStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	warningStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(ColorAmber).Foreground(ColorAmber).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	statusOKStyle = lipgloss.NewStyle().Foreground(ColorGreen)
)

// FallbackNotice is shown above locally generated goals.
const FallbackNotice = "The goal service is unreachable. These suggestions were generated locally and are not AI-generated."

// GoalCard renders one goal. index is zero-based.
func GoalCard(index int, g okr.GeneratedGoal, selected bool) string {
	var b strings.Builder
	header := fmt.Sprintf("Goal %d: %s", index+1, g.Title)
	if selected {
		header += "  (selected)"
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(g.Description)
	for _, row := range [][2]string{
		{"KPI", g.KPI},
		{"Company top bet", g.CompanyTopBetAlignment},
		{"3E framework", g.Framework3E},
		{"Core value", g.CoreValue},
	} {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(row[0]+": ") + row[1])
	}
	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	return style.Render(b.String())
}

// Goals renders the whole set with an optional fallback banner.
func Goals(goals okr.GoalSet, selected int, isFallback bool) string {
	var parts []string
	if isFallback {
		parts = append(parts, Warning(FallbackNotice))
	}
	for i, g := range goals {
		parts = append(parts, GoalCard(i, g, i == selected))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Notice renders a success notice.
func Notice(text string) string { return noticeStyle.Render(text) }

// Warning renders a boxed warning.
func Warning(text string) string { return warningStyle.Render(text) }

// Error renders an error line.
func Error(text string) string { return errorStyle.Render(text) }

// Status renders a health report.
func Status(r health.Report) string {
	switch r.Status {
	case health.StatusConnected:
		return statusOKStyle.Render("API connected") + labelStyle.Render(" (checked "+r.CheckedAt.Format("15:04:05")+")")
	case health.StatusUnavailable:
		return errorStyle.Render("API unavailable") + labelStyle.Render(" (checked "+r.CheckedAt.Format("15:04:05")+")")
	default:
		return labelStyle.Render("Checking API connection...")
	}
}

// GoalDiff returns a unified diff between two versions of a goal, one field per
// line. An empty string means nothing changed.
func GoalDiff(before, after okr.GeneratedGoal, name string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        goalLines(before),
		B:        goalLines(after),
		FromFile: name + " (before)",
		ToFile:   name + " (after)",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff goal: %w", err)
	}
	return text, nil
}

func goalLines(g okr.GeneratedGoal) []string {
	fields := g.Fields()
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, fmt.Sprintf("%s: %s\n", f[0], f[1]))
	}
	return lines
}
