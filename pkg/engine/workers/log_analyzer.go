package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// LogFetcher is the narrow slice of discovery.Provider the Log Analyzer
// needs: a resource-scoped log fetch. Declared locally (rather than
// importing discovery.Provider) so workers has no dependency on the
// discovery package's credential-probe surface.
type LogFetcher interface {
	FetchLogs(ctx context.Context, projectID string, cred scan.Credential, filter string, maxEntries, windowHours int) ([]string, error)
}

const logAnalyzerMaxEntries = 200
const logAnalyzerWindowHours = 24

// LogAnalysisResult is the Log Analyzer's contract output.
type LogAnalysisResult struct {
	LogLines []string
	Findings []scan.Finding
	Record   scan.ScannedAssetRecord
}

// AnalyzeLogs builds a resource-specific filter for asset, pulls up to
// 200 recent warning-or-higher entries, and applies count thresholds.
func AnalyzeLogs(ctx context.Context, fetcher LogFetcher, asset scan.Asset, projectID string, cred scan.Credential) LogAnalysisResult {
	filter := resourceFilter(asset)

	lines, err := fetcher.FetchLogs(ctx, projectID, cred, filter, logAnalyzerMaxEntries, logAnalyzerWindowHours)
	if err != nil {
		return LogAnalysisResult{
			Record: scan.ScannedAssetRecord{Asset: asset.Name, Route: "log-analysis", IssuesFound: 0},
		}
	}

	errorCount, authFailCount := countByLevel(lines)

	var findings []scan.Finding
	if errorCount > 5 {
		findings = append(findings, scan.Finding{
			RuleCode:    "log_001",
			Title:       fmt.Sprintf("High error rate on '%s' (%d errors)", asset.Name, errorCount),
			Description: fmt.Sprintf("Resource '%s' logged %d error-level entries in the recent window.", asset.Name, errorCount),
			Severity:    scan.SeverityMedium,
			Location:    locationFor(asset),
			Status:      scan.StatusTodo,
		})
	}
	if authFailCount > 3 {
		findings = append(findings, scan.Finding{
			RuleCode:    "log_002",
			Title:       fmt.Sprintf("Authentication failures on '%s' (%d)", asset.Name, authFailCount),
			Description: fmt.Sprintf("Resource '%s' logged %d authentication-failure entries in the recent window.", asset.Name, authFailCount),
			Severity:    scan.SeverityHigh,
			Location:    locationFor(asset),
			Status:      scan.StatusTodo,
		})
	}

	return LogAnalysisResult{
		LogLines: lines,
		Findings: findings,
		Record: scan.ScannedAssetRecord{
			Asset:       asset.Name,
			Route:       "log-analysis",
			IssuesFound: len(findings),
		},
	}
}

// resourceFilter maps an asset's type to the provider's filter grammar
// fragment scoping logs to that specific resource.
func resourceFilter(asset scan.Asset) string {
	switch asset.Type {
	case scan.AssetComputeInstance:
		return fmt.Sprintf(`resource.type="gce_instance" AND resource.labels.instance_id="%s" AND severity >= "WARNING"`, asset.Name)
	case scan.AssetObjectBucket:
		return fmt.Sprintf(`resource.type="gcs_bucket" AND resource.labels.bucket_name="%s" AND severity >= "WARNING"`, asset.Name)
	case scan.AssetSQLInstance:
		return fmt.Sprintf(`resource.type="cloudsql_database" AND resource.labels.database_id="%s" AND severity >= "WARNING"`, asset.Name)
	default:
		return fmt.Sprintf(`severity >= "WARNING" AND %q`, asset.Name)
	}
}

func locationFor(asset scan.Asset) string {
	switch asset.Type {
	case scan.AssetComputeInstance:
		return "Instance: " + asset.Name
	case scan.AssetObjectBucket:
		return "Bucket: " + asset.Name
	case scan.AssetSQLInstance:
		return "SQL: " + asset.Name
	default:
		return asset.Name
	}
}

func countByLevel(lines []string) (errorCount, authFailCount int) {
	for _, l := range lines {
		lower := strings.ToLower(l)
		switch {
		case strings.Contains(lower, "failed password") || strings.Contains(lower, "invalid user") || strings.Contains(lower, "authentication failure"):
			authFailCount++
		case strings.Contains(lower, "error"):
			errorCount++
		}
	}
	return
}
