package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// probeCredential checks every known service plus cloud_logging,
// returning the per-service probe results; it does not resolve the
// credential's identity. Only services returning Accessible=true should be
// attempted by the caller; cloud_logging is always attempted as long as
// a credential is supplied, regardless of probe outcome, per the
// always-attempt-logging rule.
func probeCredential(ctx context.Context, projectID string, cred scan.Credential, provider Provider) []scan.CredentialServiceProbe {
	var probes []scan.CredentialServiceProbe

	for _, svc := range KnownServices {
		probe, err := provider.ProbeService(ctx, projectID, cred, svc)
		if err != nil {
			probe = scan.CredentialServiceProbe{Service: svc, Accessible: false, Detail: err.Error()}
		}
		probes = append(probes, probe)
	}

	logProbe, err := provider.ProbeService(ctx, projectID, cred, "cloud_logging")
	if err != nil {
		logProbe = scan.CredentialServiceProbe{Service: "cloud_logging", Accessible: false, Detail: err.Error()}
	}
	probes = append(probes, logProbe)

	return probes
}

// accessibleServices returns the subset of probes for svc in services
// that reported Accessible=true.
func accessibleServices(probes []scan.CredentialServiceProbe, services []string) []string {
	accessible := make(map[string]bool, len(probes))
	for _, p := range probes {
		accessible[p.Service] = p.Accessible
	}

	var result []string
	for _, svc := range services {
		if accessible[svc] {
			result = append(result, svc)
		}
	}
	return result
}

// checkProjectMismatch logs a warning-level ScanLog message if the
// credential's declared project differs from the scan target.
func checkProjectMismatch(projectID string, cred scan.Credential) string {
	if cred.ProjectID == "" || cred.ProjectID == projectID {
		return ""
	}
	msg := fmt.Sprintf("credentials belong to project %q but scanning project %q", cred.ProjectID, projectID)
	slog.Warn("discovery: project mismatch", "credential_project", cred.ProjectID, "scan_project", projectID)
	return msg
}
