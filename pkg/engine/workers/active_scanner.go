// Package workers implements the per-asset dispatch targets: the Active
// Scanner for public assets and the Log Analyzer for private assets.
package workers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aegis-scan/aegis/pkg/scan"
)

const defaultServiceAccountSuffix = "compute@developer.gserviceaccount.com"

// ActiveScanResult is the Active Scanner's contract output.
type ActiveScanResult struct {
	Findings []scan.Finding
	Record   scan.ScannedAssetRecord
}

// ScanActive runs the fixed compliance rule table against one public
// asset. A panic inside is recovered by ScanActive itself and yields an
// empty ActiveScanResult; ScanActive never returns an error — an
// unrecognized asset type simply yields no findings.
func ScanActive(ctx context.Context, asset scan.Asset) ActiveScanResult {
	defer func() { recover() }() // nolint:errcheck — swallow and fall through to empty result on panic

	var findings []scan.Finding

	switch asset.Type {
	case scan.AssetFirewallRule:
		findings = checkOpenSSH(asset)
	case scan.AssetObjectBucket:
		findings = checkPublicBucket(asset)
	case scan.AssetComputeInstance:
		findings = checkDefaultServiceAccount(asset)
	}

	return ActiveScanResult{
		Findings: findings,
		Record: scan.ScannedAssetRecord{
			Asset:       asset.Name,
			Route:       "active",
			IssuesFound: len(findings),
		},
	}
}

// checkOpenSSH implements gcp_002: ingress firewall rules open to the
// world with TCP port 22 in their allowed ports.
func checkOpenSSH(asset scan.Asset) []scan.Finding {
	meta, ok := asset.Metadata.(scan.FirewallMetadata)
	if !ok {
		return nil
	}
	if !strings.EqualFold(meta.Direction, "INGRESS") {
		return nil
	}

	open := false
	for _, r := range meta.SourceRanges {
		if r == "0.0.0.0/0" || r == "::/0" {
			open = true
			break
		}
	}
	if !open {
		return nil
	}

	for _, allowed := range meta.Allowed {
		if !strings.EqualFold(allowed.IPProtocol, "tcp") {
			continue
		}
		for _, port := range allowed.Ports {
			if PortCovers22(port) {
				return []scan.Finding{{
					RuleCode:    "gcp_002",
					Title:       fmt.Sprintf("Firewall '%s' allows unrestricted SSH", asset.Name),
					Description: fmt.Sprintf("Firewall rule '%s' permits SSH (port 22) from an unrestricted source range. Restrict source ranges to trusted CIDRs.", asset.Name),
					Severity:    scan.SeverityHigh,
					Location:    "Firewall: " + asset.Name,
					Status:      scan.StatusTodo,
				}}
			}
		}
	}
	return nil
}

// PortCovers22 reports whether a GCP firewall port spec ("22",
// "0-65535", "20-25", ...) covers port 22.
func PortCovers22(portSpec string) bool {
	if portSpec == "22" {
		return true
	}
	lo, hi, ok := strings.Cut(portSpec, "-")
	if !ok {
		return false
	}
	loN, errLo := strconv.Atoi(lo)
	hiN, errHi := strconv.Atoi(hi)
	if errLo != nil || errHi != nil {
		return false
	}
	return loN <= 22 && 22 <= hiN
}

// checkPublicBucket implements gcp_004: one issue per bucket, first
// matching IAM binding short-circuits.
func checkPublicBucket(asset scan.Asset) []scan.Finding {
	meta, ok := asset.Metadata.(scan.BucketMetadata)
	if !ok {
		return nil
	}

	for _, binding := range meta.IAMBindings {
		for _, member := range binding.Members {
			if member == "allUsers" || member == "allAuthenticatedUsers" {
				return []scan.Finding{{
					RuleCode:    "gcp_004",
					Title:       fmt.Sprintf("Bucket '%s' is publicly accessible", asset.Name),
					Description: fmt.Sprintf("GCS bucket '%s' grants %s the role '%s'. Remove public access unless intentionally serving public content.", asset.Name, member, binding.Role),
					Severity:    scan.SeverityCritical,
					Location:    "Bucket: " + asset.Name,
					Status:      scan.StatusTodo,
				}}
			}
		}
	}
	return nil
}

// checkDefaultServiceAccount implements gcp_006.
func checkDefaultServiceAccount(asset scan.Asset) []scan.Finding {
	meta, ok := asset.Metadata.(scan.ComputeMetadata)
	if !ok {
		return nil
	}

	for _, sa := range meta.ServiceAccounts {
		if strings.Contains(sa.Email, defaultServiceAccountSuffix) {
			return []scan.Finding{{
				RuleCode:    "gcp_006",
				Title:       fmt.Sprintf("Instance '%s' uses default service account", asset.Name),
				Description: fmt.Sprintf("Compute instance '%s' is running with the default compute service account (%s). Create a dedicated service account with least-privilege permissions.", asset.Name, sa.Email),
				Severity:    scan.SeverityMedium,
				Location:    "Instance: " + asset.Name,
				Status:      scan.StatusTodo,
			}}
		}
	}
	return nil
}
