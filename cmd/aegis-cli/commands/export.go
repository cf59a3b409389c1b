package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/aegis-scan/aegis/pkg/engine"
	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/engine/report"
	"github.com/aegis-scan/aegis/pkg/scan"
	"github.com/aegis-scan/aegis/pkg/storage"
	"github.com/spf13/cobra"
)

var exportOutDir string

var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a scan and export findings (CSV, JSON)",
	Long: `Runs a headless scan and writes the resulting findings to disk.

Default output directory: ./aegis-out/`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Initializing forensic export...")

		cliConfig.Headless = true
		sink, eventsCh := events.NewBufferedSink(64)
		cliConfig.Sink = sink

		eng, err := engine.New(cmd.Context(),
			engine.WithConfig(cliConfig),
			engine.WithConcurrency(cliConfig.MaxConcurrency),
		)
		if err != nil {
			fmt.Printf("\n[ERROR] Failed to initialize engine: %v\n", err)
			os.Exit(1)
		}

		go func() {
			for range eventsCh {
				// export runs headless; progress events are discarded
			}
		}()

		final, err := eng.Run(cmd.Context())
		if err != nil {
			fmt.Printf("\n[ERROR] Export failed: %v\n", err)
			os.Exit(1)
		}

		blobStore := buildExportStore(cmd.Context(), exportOutDir)

		csvData, err := findingsCSV(final.CorrelatedFindings)
		if err != nil {
			fmt.Printf("[WARN] Failed to render CSV: %v\n", err)
		} else if err := blobStore.Put(cmd.Context(), "findings.csv", csvData); err != nil {
			fmt.Printf("[WARN] Failed to write CSV: %v\n", err)
		}

		jsonData, err := findingsJSON(final)
		if err != nil {
			fmt.Printf("[WARN] Failed to render JSON: %v\n", err)
		} else if err := blobStore.Put(cmd.Context(), "findings.json", jsonData); err != nil {
			fmt.Printf("[WARN] Failed to write JSON: %v\n", err)
		}

		assetGraph := report.BuildAssetGraph(final.Assets)
		dashboardHTML, err := report.RenderDashboard(final.CorrelatedFindings, assetGraph)
		if err != nil {
			fmt.Printf("[WARN] Failed to render dashboard: %v\n", err)
		} else if err := blobStore.Put(cmd.Context(), "dashboard.html", []byte(dashboardHTML)); err != nil {
			fmt.Printf("[WARN] Failed to write dashboard: %v\n", err)
		}

		fmt.Println("\n[SUCCESS] Export complete.")
		fmt.Printf("   CSV:       %s/findings.csv\n", exportOutDir)
		fmt.Printf("   JSON:      %s/findings.json\n", exportOutDir)
		fmt.Printf("   Dashboard: %s/dashboard.html\n", exportOutDir)
	},
}

func init() {
	ExportCmd.Flags().StringVar(&exportOutDir, "out", "aegis-out", "Output directory for exported findings")
}

// buildExportStore selects the BlobStore export artifacts are archived
// through: an AEGIS_S3_BUCKET env var opts into S3-backed archival (for
// long-lived, centrally auditable exports across scans), falling back to
// a LocalStore rooted at dir for the common single-host CLI case.
func buildExportStore(ctx context.Context, dir string) storage.BlobStore {
	if bucket := os.Getenv("AEGIS_S3_BUCKET"); bucket != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err == nil {
			fmt.Printf("[INFO] Archiving export to s3://%s\n", bucket)
			return storage.NewS3Store(cfg, bucket)
		}
		fmt.Printf("[WARN] Failed to load AWS config for S3 export backend, falling back to local: %v\n", err)
	}
	return storage.NewLocalStore(dir)
}

func findingsCSV(findings []scan.Finding) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"rule_code", "severity", "title", "location", "status", "correlated", "remediation_script"}); err != nil {
		return nil, err
	}
	for _, finding := range findings {
		row := []string{
			finding.RuleCode,
			string(finding.Severity),
			finding.Title,
			finding.Location,
			string(finding.Status),
			fmt.Sprintf("%t", finding.Correlated),
			finding.RemediationScript,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func findingsJSON(state scan.State) ([]byte, error) {
	payload := struct {
		AccountID string         `json:"account_id"`
		ProjectID string         `json:"project_id"`
		Status    string         `json:"status"`
		Partial   bool           `json:"partial"`
		Findings  []scan.Finding `json:"findings"`
	}{
		AccountID: state.AccountID,
		ProjectID: state.ProjectID,
		Status:    state.Status,
		Partial:   state.Partial,
		Findings:  state.CorrelatedFindings,
	}
	return json.MarshalIndent(payload, "", "  ")
}
