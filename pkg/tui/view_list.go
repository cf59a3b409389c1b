package tui

import (
	"fmt"
	"strings"
)

func (m Model) viewList() string {
	s := strings.Builder{}
	findings := m.findings
	if len(findings) == 0 {
		if m.scanning {
			return fmt.Sprintf("\n\n   %s Scanning account %s...", m.spinner.View(), m.accountID)
		}
		return "\n\n   " + iconSafe.Render() + subtle.Render("  No findings. Posture looks clean.")
	}

	start, end := m.calculateWindow(len(findings))
	header := fmt.Sprintf("  %-8s | %-16s | %-24s | %s", "SEVERITY", "RULE", "LOCATION", "TITLE")
	s.WriteString(dimStyle.Render(header) + "\n")
	s.WriteString(dimStyle.Render("  "+strings.Repeat("─", 70)) + "\n")

	for i := start; i < end; i++ {
		f := findings[i]
		isSelected := i == m.cursor
		cursor := "  "
		if isSelected {
			cursor = "> "
		}

		dispLoc := f.Location
		if len(dispLoc) > 24 {
			dispLoc = dispLoc[:21] + "..."
		}
		dispTitle := f.Title
		if len(dispTitle) > 40 {
			dispTitle = dispTitle[:37] + "..."
		}

		baseLine := fmt.Sprintf("%-8s | %-16s | %-24s | %s", strings.ToUpper(string(f.Severity)), f.RuleCode, dispLoc, dispTitle)
		styled := severityStyle(string(f.Severity)).Render(baseLine)
		line := cursor + styled

		if isSelected {
			s.WriteString(listSelectedStyle.Render(line) + "\n")
		} else {
			s.WriteString(listNormalStyle.Render(line) + "\n")
		}
	}
	return s.String()
}

func (m Model) calculateWindow(total int) (int, int) {
	windowSize := m.height - 8
	if windowSize < 5 {
		windowSize = 5
	}
	start := m.cursor - (windowSize / 2)
	if start < 0 {
		start = 0
	}
	end := start + windowSize
	if end > total {
		end = total
		start = end - windowSize
		if start < 0 {
			start = 0
		}
	}
	return start, end
}
