// Package mock provides a deterministic discovery.Provider for --mock
// scans and tests, in the same fixture-data spirit as the engine's other
// mock scanners.
package mock

import (
	"context"
	"time"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// Provider is a fixed-fixture discovery.Provider: every service reports
// accessible, and each List* method returns a small, deliberately
// vulnerable asset set (an SSH rule open to 0.0.0.0/0, a public bucket,
// an instance on the default compute service account). FetchLogs returns
// a few auth-failure lines, below the cloud-logging finding thresholds,
// so a --mock scan yields no log_* findings.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) ProbeService(ctx context.Context, projectID string, cred scan.Credential, service string) (scan.CredentialServiceProbe, error) {
	return scan.CredentialServiceProbe{Service: service, Accessible: true, Detail: "mock credential always accessible"}, nil
}

func (p *Provider) ServiceAccountEmail(cred scan.Credential) string {
	return "mock-scanner@aegis-mock.iam.gserviceaccount.com"
}

func (p *Provider) ListFirewallRules(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error) {
	return []scan.Asset{
		{
			Type: scan.AssetFirewallRule,
			Name: "allow-ssh",
			Metadata: scan.FirewallMetadata{
				SourceRanges: []string{"0.0.0.0/0"},
				Direction:    "INGRESS",
				Allowed: []scan.AllowedProtocol{
					{IPProtocol: "tcp", Ports: []string{"22"}},
				},
			},
		},
		{
			Type: scan.AssetFirewallRule,
			Name: "allow-internal",
			Metadata: scan.FirewallMetadata{
				SourceRanges: []string{"10.0.0.0/8"},
				Direction:    "INGRESS",
				Allowed: []scan.AllowedProtocol{
					{IPProtocol: "tcp", Ports: []string{"443"}},
				},
			},
		},
	}, nil
}

func (p *Provider) ListComputeInstances(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error) {
	return []scan.Asset{
		{
			Type:   scan.AssetComputeInstance,
			Name:   "web-01",
			Region: "us-central1-a",
			Metadata: scan.ComputeMetadata{
				NetworkInterfaces: []scan.NetworkInterface{{Network: "default", HasExternalIP: true}},
				ServiceAccounts: []scan.ServiceAccount{
					{Email: fmtDefaultSA(projectID), Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"}},
				},
			},
		},
		{
			Type:   scan.AssetComputeInstance,
			Name:   "internal-worker",
			Region: "us-central1-a",
			Metadata: scan.ComputeMetadata{
				NetworkInterfaces: []scan.NetworkInterface{{Network: "default", HasExternalIP: false}},
				ServiceAccounts: []scan.ServiceAccount{
					{Email: "worker-sa@" + projectID + ".iam.gserviceaccount.com"},
				},
			},
		},
	}, nil
}

func (p *Provider) ListBuckets(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error) {
	return []scan.Asset{
		{
			Type: scan.AssetObjectBucket,
			Name: "public-assets-bucket",
			Metadata: scan.BucketMetadata{
				PublicAccessPrevention: "inherited",
				IAMBindings: []scan.IAMBinding{
					{Role: "roles/storage.objectViewer", Members: []string{"allUsers"}},
				},
			},
		},
		{
			Type: scan.AssetObjectBucket,
			Name: "internal-archives",
			Metadata: scan.BucketMetadata{
				PublicAccessPrevention: "enforced",
			},
		},
	}, nil
}

func (p *Provider) ListSQLInstances(ctx context.Context, projectID string, cred scan.Credential) ([]scan.Asset, error) {
	return []scan.Asset{
		{
			Type: scan.AssetSQLInstance,
			Name: "primary-db",
			Metadata: scan.SQLMetadata{
				PrivateIP: "10.1.2.3",
			},
		},
	}, nil
}

func (p *Provider) FetchLogs(ctx context.Context, projectID string, cred scan.Credential, filter string, maxEntries, windowHours int) ([]string, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	return []string{
		"WARNING " + now + " allow-ssh: Failed password for root from 198.51.100.23",
		"WARNING " + now + " allow-ssh: Invalid user admin from 198.51.100.23",
		"WARNING " + now + " allow-ssh: Connection closed by authenticating user root 198.51.100.23",
		"INFO " + now + " web-01: GET /healthz 200",
	}, nil
}

func fmtDefaultSA(projectID string) string {
	return projectID + "-compute@developer.gserviceaccount.com"
}
