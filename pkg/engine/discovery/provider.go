// Package discovery enumerates cloud assets and recent log activity for
// a scan target, probing credential access before attempting any
// per-service listing.
package discovery

import (
	"context"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// Provider is the boundary between Discovery and a concrete cloud SDK.
// A provider-SDK failure (missing library, permission denied, network
// error) is represented as a returned error; Discovery degrades that
// into a skipped/error ScanLogEntry rather than aborting the scan.
type Provider interface {
	// ProbeService issues a minimum-cost "list 1 item" request to
	// determine whether credential can call service. It must not
	// return an error for "not accessible" — that is reported via the
	// returned CredentialServiceProbe's Accessible field.
	ProbeService(ctx context.Context, projectID string, cred scan.Credential, service string) (scan.CredentialServiceProbe, error)

	// ListFirewallRules, ListComputeInstances, ListBuckets,
	// ListSQLInstances enumerate one service's resources, translating
	// provider shapes into scan.Asset with typed Metadata.
	ListFirewallRules(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error)
	ListComputeInstances(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error)
	ListBuckets(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error)
	ListSQLInstances(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error)

	// FetchLogs returns up to maxEntries raw log lines matching filter,
	// looking back windowHours from now.
	FetchLogs(ctx context.Context, projectID string, cred scan.Credential, filter string, maxEntries, windowHours int) ([]string, error)

	// ServiceAccountEmail extracts the identity principal from cred for
	// diagnostics; never fails — an empty string means unknown.
	ServiceAccountEmail(cred scan.Credential) string
}

// KnownServices is the fixed set of services Discovery knows how to
// probe and enumerate, in probe order. cloud_logging is handled
// separately since it is always attempted when a credential is present.
var KnownServices = []string{"firewall", "compute", "storage", "sql"}
