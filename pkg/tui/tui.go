package tui

import (
	"encoding/base64"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aegis-scan/aegis/pkg/scan"
	"github.com/aegis-scan/aegis/pkg/version"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.state == ViewStateDetail {
				m.state = ViewStateList
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		}

		if m.state == ViewStateList {
			switch msg.String() {
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.findings)-1 {
					m.cursor++
				}
			case "enter", " ":
				if len(m.findings) > 0 {
					m.state = ViewStateDetail
				}
			case "y":
				if m.cursor < len(m.findings) {
					m.copyText(m.findings[m.cursor].Location)
				}
			}
		} else if m.state == ViewStateDetail {
			switch msg.String() {
			case "b", "esc":
				m.state = ViewStateList
			case "y":
				if m.cursor < len(m.findings) {
					m.copyText(m.findings[m.cursor].RemediationScript)
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20

	case spinner.TickMsg:
		m.tickCount++
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case eventMsg:
		m.stage = string(msg.Kind)
		if msg.Message != "" {
			m.message = msg.Message
		}
		return m, waitForEvent(m.eventsCh)

	case doneMsg:
		m.scanning = false
		m.err = msg.Err
		m.findings = sortedFindings(msg.State.CorrelatedFindings)
		m.result = Result(msg)
		m.hasResult = true
		cmd := m.progress.SetPercent(1.0)
		return m, cmd

	case tickMsg:
		pct := 0.15
		if !m.scanning {
			pct = 1.0
		}
		cmd := m.progress.SetPercent(pct)
		return m, tea.Batch(cmd, tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) }))
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	hud := m.viewHUD()

	var body string
	switch m.state {
	case ViewStateList:
		body = m.viewList()
	case ViewStateDetail:
		body = m.viewDetails()
	}

	footer := quickHelp(m.state)
	if m.statusMsg != "" && time.Since(m.statusTime) < 3*time.Second {
		footer = special.Render(" " + m.statusMsg)
	}
	if m.err != nil {
		footer = danger.Render(" scan error: " + m.err.Error())
	}

	return fmt.Sprintf("%s\n%s\n\n%s", hud, body, footer)
}

func sortedFindings(findings []scan.Finding) []scan.Finding {
	out := make([]scan.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return scan.SeverityRank(out[i].Severity) < scan.SeverityRank(out[j].Severity)
	})
	return out
}

func quickHelp(state ViewState) string {
	if state == ViewStateList {
		return subtle.Render(" [q] Quit ") + subtle.Render(" [up/down] Nav  [Enter] Details  [y] Copy location")
	}
	return subtle.Render(" [b/q] Back  [y] Copy remediation script")
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusTime = time.Now()
}

func (m *Model) copyText(text string) {
	if text == "" {
		return
	}
	if err := copyToClipboard(text); err != nil {
		copyToClipboardOSC52(text)
		m.setStatus("copied (OSC52)")
		return
	}
	m.setStatus("copied")
}

func copyToClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else {
			return fmt.Errorf("no clipboard tool found")
		}
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("unsupported os")
	}
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// copyToClipboardOSC52 writes the OSC 52 clipboard escape sequence,
// which works over SSH/remote terminals that forward it.
func copyToClipboardOSC52(text string) {
	b64 := base64.StdEncoding.EncodeToString([]byte(text))
	fmt.Printf("\x1b]52;c;%s\x07", b64)
}

// PrintExitSummary renders the final status line after the TUI program
// has exited, avoiding any overlap with its alternate-screen buffer.
func PrintExitSummary(startTime time.Time, findingCount int) {
	duration := time.Since(startTime).Seconds()
	fmt.Printf("\n[SUCCESS] Scan complete. %d findings in %.2fs.\n", findingCount, duration)
	fmt.Println(lipgloss.NewStyle().Foreground(colorNeonGreen).Bold(true).
		Render(fmt.Sprintf("%s %s", version.AppName, version.Current)))
}
