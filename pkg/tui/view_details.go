package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) viewDetails() string {
	if m.cursor < 0 || m.cursor >= len(m.findings) {
		return "No finding selected"
	}
	f := m.findings[m.cursor]

	header := detailsHeaderStyle.Render(fmt.Sprintf("%s : %s", f.RuleCode, f.Title))

	sevLine := severityStyle(string(f.Severity)).Render(fmt.Sprintf("SEVERITY:   %s", strings.ToUpper(string(f.Severity))))
	statusLine := dimStyle.Render(fmt.Sprintf("STATUS:     %s", f.Status))
	locLine := subtle.Render(fmt.Sprintf("LOCATION:   %s", f.Location))

	var tacticLine string
	if f.Tactic != "" {
		tacticLine = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BFFF")).
			Render(fmt.Sprintf("ATT&CK:     %s / %s", f.Tactic, f.Technique))
	}

	var verdictLine string
	if f.Correlated {
		verdict := f.Verdict
		if verdict == "" {
			verdict = "correlated with other findings"
		}
		verdictLine = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D40FF")).
			Render("CORRELATED: " + verdict)
	}

	intelBlock := lipgloss.JoinVertical(lipgloss.Left, sevLine, statusLine, locLine, tacticLine, verdictLine)

	desc := dimStyle.Render(f.Description)

	remediation := "Remediation: none generated"
	if f.RemediationScript != "" {
		remediation = fmt.Sprintf("Remediation script:\n%s", f.RemediationScript)
	}

	actions := []string{
		"[y] Copy remediation script",
		"[b] Back to list",
	}
	actionLine := strings.Join(actions, "  ")

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		intelBlock,
		"",
		desc,
		"",
		highlight.Render(remediation),
		"",
		strings.Repeat("─", 50),
		highlight.Render("ACTIONS:"),
		actionLine,
	)

	return detailsBoxStyle.Render(content)
}
