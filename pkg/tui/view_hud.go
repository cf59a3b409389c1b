package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aegis-scan/aegis/pkg/version"
)

func (m Model) viewHUD() string {
	status := "IDLE"
	statusColor := subtle
	if m.scanning {
		dots := strings.Repeat(".", m.tickCount%4)
		status = fmt.Sprintf("SCANNING%s", dots)
		statusColor = special
	} else if m.err != nil {
		status = "FAILED"
		statusColor = danger
	} else {
		status = "COMPLETE"
		statusColor = special
	}

	critical, high := 0, 0
	for _, f := range m.findings {
		switch f.Severity {
		case "critical":
			critical++
		case "high":
			high++
		}
	}

	segTitle := highlight.Render(fmt.Sprintf(" %s %s | account %s", version.AppName, version.Current, m.accountID))
	var segStatus string
	if m.scanning {
		segStatus = lipgloss.JoinHorizontal(lipgloss.Center,
			statusColor.Render(m.stage+" "),
			m.progress.View(),
		)
	} else {
		segStatus = statusColor.Render(fmt.Sprintf("[ %s ]", status))
	}
	segFindings := hudLabelStyle.Render("FINDINGS:") + hudValueStyle.Render(fmt.Sprintf("%d", len(m.findings)))
	segRisk := hudLabelStyle.Render("CRITICAL/HIGH:") + danger.Render(fmt.Sprintf("%d/%d", critical, high))

	width := m.width - 4
	if width < 0 {
		width = 0
	}

	left := lipgloss.JoinHorizontal(lipgloss.Center, segTitle, "  ", segStatus)
	right := lipgloss.JoinHorizontal(lipgloss.Center, segFindings, "  |  ", segRisk)

	spacerWidth := width - lipgloss.Width(left) - lipgloss.Width(right)
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	content := lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		lipgloss.NewStyle().Width(spacerWidth).Render(""),
		right,
	)

	return hudStyle.Width(m.width - 2).Render(content)
}
