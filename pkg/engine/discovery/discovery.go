package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/providers/k8s"
	"github.com/aegis-scan/aegis/pkg/scan"
)

// serviceLister maps a known service name to the provider method that
// enumerates it, so Run can iterate instead of repeating a
// probe/list/record block four times.
type serviceLister func(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error)

func listers(p Provider) map[string]serviceLister {
	return map[string]serviceLister{
		"firewall": p.ListFirewallRules,
		"compute":  p.ListComputeInstances,
		"storage":  p.ListBuckets,
		"sql":      p.ListSQLInstances,
	}
}

// Result is Discovery's output, merged into ScanState by the graph
// runtime's discovery node.
type Result struct {
	Assets           []scan.Asset
	InitialFindings  []scan.Finding
	RawLogLines      []string
	ScanLog          scan.ScanLog
	CredentialProbes []scan.CredentialServiceProbe
}

// Run performs the full Discovery contract: credential probe, per-service
// enumeration of accessible services, and cloud-logging aggregation with
// threshold findings. A per-service failure never aborts the scan — it is
// recorded in the returned ScanLog and the service is simply omitted.
func Run(ctx context.Context, provider Provider, accountID, projectID string, cred scan.Credential, requestedServices []string, cfg config.ScanConfig) Result {
	start := time.Now()
	scanLog := scan.ScanLog{
		AccountID: accountID,
		Status:    scan.ScanLogRunning,
		StartedAt: start,
	}

	services := requestedServices
	if len(services) == 0 {
		services = KnownServices
	}

	probes := probeCredential(ctx, projectID, cred, provider)
	if warning := checkProjectMismatch(projectID, cred); warning != "" {
		scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
			Service: "credential-probe",
			Status:  scan.ScanStatusPartial,
			Error:   warning,
		})
	}

	var result Result
	result.CredentialProbes = probes

	accessible := accessibleServices(probes, services)
	listerBySvc := listers(provider)

	anyError := false
	for _, svc := range accessible {
		lister, ok := listerBySvc[svc]
		if !ok {
			continue
		}

		svcStart := time.Now()
		assets, err := lister(ctx, projectID, cred)
		duration := time.Since(svcStart)

		if err != nil {
			anyError = true
			scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
				Service:  svc,
				Status:   scan.ScanStatusError,
				Duration: duration,
				Error:    err.Error(),
			})
			continue
		}

		result.Assets = append(result.Assets, assets...)
		scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
			Service:    svc,
			Status:     scan.ScanStatusSuccess,
			Duration:   duration,
			AssetCount: len(assets),
		})
	}

	for _, svc := range services {
		if svc == "cloud-logging" || svc == "cloud_logging" {
			continue
		}
		if _, wasAccessible := indexOf(accessible, svc); !wasAccessible {
			scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
				Service: svc,
				Status:  scan.ScanStatusSkipped,
			})
		}
	}

	// GKE cluster discovery supplements compute-instance discovery with
	// a gke-cluster sub-kind, read from the cluster's own Kubernetes API
	// rather than the GCP compute API. It is attempted whenever compute
	// was requested and accessible, and degrades like any other
	// per-service failure — a project with no GKE clusters, or no
	// reachable cluster API, just yields zero gke-cluster assets.
	if _, computeAccessible := indexOf(accessible, "compute"); computeAccessible {
		gkeStart := time.Now()
		gkeAssets, err := runGKEDiscovery(ctx, cfg)
		duration := time.Since(gkeStart)

		if err != nil {
			scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
				Service:  "gke",
				Status:   scan.ScanStatusError,
				Duration: duration,
				Error:    err.Error(),
			})
		} else {
			result.Assets = append(result.Assets, gkeAssets...)
			scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
				Service:    "gke",
				Status:     scan.ScanStatusSuccess,
				Duration:   duration,
				AssetCount: len(gkeAssets),
			})
		}
	}

	// cloud_logging is always attempted if any credential is supplied,
	// independent of its own probe result and of requestedServices.
	if cred.JSON != "" || cred.ProjectID != "" {
		logStart := time.Now()
		asset, findings, rawLines, err := runCloudLogging(ctx, provider, projectID, cred, cfg)
		duration := time.Since(logStart)

		if err != nil {
			anyError = true
			scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
				Service:  "cloud-logging",
				Status:   scan.ScanStatusError,
				Duration: duration,
				Error:    err.Error(),
			})
		} else {
			result.Assets = append(result.Assets, asset)
			result.InitialFindings = append(result.InitialFindings, findings...)
			result.RawLogLines = rawLines
			scanLog.Entries = append(scanLog.Entries, scan.ScanLogEntry{
				Service:    "cloud-logging",
				Status:     scan.ScanStatusSuccess,
				Duration:   duration,
				AssetCount: 1,
				IssueCount: len(findings),
			})
		}
	}

	scanLog.EndedAt = time.Now()
	switch {
	case anyError && len(result.Assets) > 0:
		scanLog.Status = scan.ScanLogPartial
		scanLog.Summary = fmt.Sprintf("discovered %d assets with %d service error(s)", len(result.Assets), countErrors(scanLog.Entries))
	case anyError:
		scanLog.Status = scan.ScanLogError
		scanLog.Summary = "all accessible services failed to enumerate"
	default:
		scanLog.Status = scan.ScanLogSuccess
		scanLog.Summary = fmt.Sprintf("discovered %d assets across %d services", len(result.Assets), len(accessible))
	}
	result.ScanLog = scanLog

	return result
}

func countErrors(entries []scan.ScanLogEntry) int {
	n := 0
	for _, e := range entries {
		if e.Status == scan.ScanStatusError {
			n++
		}
	}
	return n
}

func indexOf(haystack []string, needle string) (int, bool) {
	for i, s := range haystack {
		if s == needle {
			return i, true
		}
	}
	return -1, false
}

// runCloudLogging fetches the default severity>=WARNING window, counts
// events by classified type, and emits threshold findings.
func runCloudLogging(ctx context.Context, provider Provider, projectID string, cred scan.Credential, cfg config.ScanConfig) (scan.Asset, []scan.Finding, []string, error) {
	filter := `severity >= "WARNING"`
	lines, err := provider.FetchLogs(ctx, projectID, cred, filter, cfg.MaxLogEntries, cfg.LogWindowHours)
	if err != nil {
		return scan.Asset{}, nil, nil, err
	}

	errorCount, authFailCount, reconCount := classifyCounts(lines)

	asset := scan.Asset{
		Type: scan.AssetLogSummary,
		Name: "cloud-logging-summary",
		Metadata: scan.LogSummaryMetadata{
			ErrorCount:      errorCount,
			FailedAuthCount: authFailCount,
			ReconProbeCount: reconCount,
		},
	}

	var findings []scan.Finding
	if errorCount > 10 {
		findings = append(findings, scan.Finding{
			RuleCode:    "log_001",
			Title:       fmt.Sprintf("High error rate detected (%d errors in %dh)", errorCount, cfg.LogWindowHours),
			Description: fmt.Sprintf("Cloud Logging shows %d errors in the last %d hours. Investigate root cause.", errorCount, cfg.LogWindowHours),
			Severity:    scan.SeverityHigh,
			Location:    "Cloud Logging",
			Status:      scan.StatusTodo,
		})
	}
	if authFailCount > 5 {
		findings = append(findings, scan.Finding{
			RuleCode:    "log_002",
			Title:       fmt.Sprintf("Elevated authentication failures (%d in %dh)", authFailCount, cfg.LogWindowHours),
			Description: fmt.Sprintf("Cloud Logging shows %d authentication failures in the last %d hours.", authFailCount, cfg.LogWindowHours),
			Severity:    scan.SeverityHigh,
			Location:    "Cloud Logging",
			Status:      scan.StatusTodo,
		})
	}
	if reconCount > 3 {
		findings = append(findings, scan.Finding{
			RuleCode:    "log_003",
			Title:       fmt.Sprintf("Reconnaissance probes detected (%d in %dh)", reconCount, cfg.LogWindowHours),
			Description: fmt.Sprintf("Cloud Logging shows %d requests to known recon paths.", reconCount),
			Severity:    scan.SeverityMedium,
			Location:    "Cloud Logging",
			Status:      scan.StatusTodo,
		})
	}

	return asset, findings, lines, nil
}

// runGKEDiscovery builds a Kubernetes client against cfg.KubeconfigPath
// (or the in-cluster config when unset) and censuses GKE node pools. A
// client-construction failure — no kubeconfig, no in-cluster service
// account, cluster unreachable — is a normal best-effort miss, not a
// scan-aborting error; it is still surfaced to the caller so the
// ScanLog records why zero gke-cluster assets were found.
func runGKEDiscovery(ctx context.Context, cfg config.ScanConfig) ([]scan.Asset, error) {
	client, err := k8s.NewClient(cfg.KubeconfigPath)
	if err != nil {
		return nil, err
	}
	scanner := k8s.NewScanner(client, nil)
	return scanner.Scan(ctx)
}

// classifyCounts does a cheap pre-parse classification over raw log
// lines (before the threat pipeline's structured LLM-based Ingest runs)
// purely to drive Discovery's threshold findings.
func classifyCounts(lines []string) (errorCount, authFailCount, reconCount int) {
	for _, l := range lines {
		lower := strings.ToLower(l)
		switch {
		case strings.Contains(lower, "failed password") || strings.Contains(lower, "invalid user") || strings.Contains(lower, "authentication failure"):
			authFailCount++
		case strings.Contains(lower, "/.env") || strings.Contains(lower, "/.git") || strings.Contains(lower, "/wp-admin"):
			reconCount++
		case strings.Contains(lower, "error"):
			errorCount++
		}
	}
	return
}
