package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/aegis-scan/aegis/pkg/engine"
	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/engine/provenance"
	"github.com/aegis-scan/aegis/pkg/scan"
	ui "github.com/aegis-scan/aegis/pkg/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Launch an interactive posture scan (TUI)",
	Long: `Starts the Aegis interactive terminal interface for a real-time
cloud security posture scan.

Use --headless for CI/CD mode.

Example:
  aegis scan --project my-gcp-project
  aegis scan --headless --project my-gcp-project --json`,
	Run: func(cmd *cobra.Command, args []string) {
		if cliConfig.ProjectID == "" && !cliConfig.MockMode {
			fmt.Fprintln(os.Stderr, "[FATAL] --project is required (or pass --mock to run against the built-in fixture provider).")
			os.Exit(1)
		}

		var handler slog.Handler
		switch {
		case cliConfig.JsonLogs:
			handler = slog.NewJSONHandler(os.Stdout, nil)
		case cliConfig.Verbose:
			handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		default:
			handler = slog.NewTextHandler(io.Discard, nil)
		}
		cliConfig.Logger = slog.New(handler)

		if rulesDir != "" {
			codes, err := provenance.LoadRuleDir(rulesDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] failed to load rules from %s: %v\n", rulesDir, err)
			} else {
				cliConfig.Logger.Info("loaded custom remediation rules", "count", len(codes), "dir", rulesDir)
			}
		}

		sink, eventsCh := events.NewBufferedSink(64)
		cliConfig.Sink = sink

		eng, err := engine.New(cmd.Context(),
			engine.WithLogger(cliConfig.Logger),
			engine.WithConfig(cliConfig),
			engine.WithConcurrency(cliConfig.MaxConcurrency),
		)
		if err != nil {
			cliConfig.Logger.Error("failed to initialize engine", "error", err)
			os.Exit(1)
		}

		startTime := time.Now()
		doneCh := make(chan ui.Result, 1)

		go func() {
			final, err := eng.Run(cmd.Context())
			doneCh <- ui.Result{State: final, Err: err}
			close(doneCh)
		}()

		var final scan.State
		var runErr error

		if cliConfig.Headless {
		drain:
			for {
				select {
				case e, ok := <-eventsCh:
					if !ok {
						continue
					}
					if cliConfig.Verbose {
						cliConfig.Logger.Info("scan progress", "stage", e.Kind, "message", e.Message)
					}
				case result := <-doneCh:
					final, runErr = result.State, result.Err
					break drain
				}
			}
			printHeadlessReport(final, runErr)
		} else {
			model := ui.NewModel(cliConfig.AccountID, eventsCh, doneCh)
			p := tea.NewProgram(model)
			finalModel, err := p.Run()
			if err != nil {
				fmt.Printf("Alas, there's been an error: %v\n", err)
				os.Exit(1)
			}
			// The Result channel was already drained by the model's own
			// tea.Cmd; pull the terminal state back out of it rather than
			// reading the (now-empty, closed) channel a second time. If
			// the user quit before the scan finished, wait for it here so
			// exit codes still reflect the real outcome.
			if m, ok := finalModel.(ui.Model); ok {
				if result, has := m.Result(); has {
					final, runErr = result.State, result.Err
				} else {
					result := <-doneCh
					final, runErr = result.State, result.Err
				}
			}
			ui.PrintExitSummary(startTime, len(final.CorrelatedFindings))
		}

		if runErr != nil && errors.Is(runErr, engine.ErrPartialResult) {
			fmt.Println("\n[WARN] Scan completed with partial results (strict mode).")
			os.Exit(2)
		} else if runErr != nil {
			cliConfig.Logger.Error("scan failed", "error", runErr)
			os.Exit(1)
		} else if final.Partial {
			fmt.Println("\n[WARN] Scan completed with partial results. (pass --strict to fail the run on this)")
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func printHeadlessReport(state scan.State, runErr error) {
	findings := make([]scan.Finding, len(state.CorrelatedFindings))
	copy(findings, state.CorrelatedFindings)
	sort.SliceStable(findings, func(i, j int) bool {
		return scan.SeverityRank(findings[i].Severity) < scan.SeverityRank(findings[j].Severity)
	})

	fmt.Printf("\nScan complete: %d assets, %d findings (status: %s)\n", state.TotalAssets, len(findings), state.Status)
	for _, f := range findings {
		fmt.Printf("  [%-8s] %-16s %s (%s)\n", f.Severity, f.RuleCode, f.Title, f.Location)
		if f.RemediationScript != "" {
			fmt.Printf("             fix: %s\n", f.RemediationScript)
		}
	}
	if state.Report != nil {
		fmt.Printf("\nIncident report: %s\n", state.Report.ExecutiveSummary)
	}
}
