package discovery_test

import (
	"context"
	"testing"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/discovery"
	"github.com/aegis-scan/aegis/pkg/engine/discovery/mock"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func TestRunMockProviderProducesAssetsAndLogLines(t *testing.T) {
	provider := mock.New()
	cfg := config.DefaultScanConfig()
	cred := scan.Credential{ProjectID: "demo-project", JSON: `{"project_id":"demo-project"}`}

	result := discovery.Run(context.Background(), provider, "acct-1", "demo-project", cred, nil, cfg)

	if len(result.Assets) == 0 {
		t.Fatal("expected at least one discovered asset")
	}
	if len(result.RawLogLines) == 0 {
		t.Fatal("expected raw log lines from cloud logging")
	}
	if result.ScanLog.Status != scan.ScanLogSuccess {
		t.Fatalf("expected scan log success, got %v (summary: %s)", result.ScanLog.Status, result.ScanLog.Summary)
	}

	foundLogSummary := false
	for _, a := range result.Assets {
		if a.Type == scan.AssetLogSummary {
			foundLogSummary = true
		}
	}
	if !foundLogSummary {
		t.Error("expected a log-summary asset among discovered assets")
	}
}

func TestRunEmptyCredentialSkipsCloudLogging(t *testing.T) {
	provider := mock.New()
	cfg := config.DefaultScanConfig()

	result := discovery.Run(context.Background(), provider, "acct-1", "demo-project", scan.Credential{}, nil, cfg)

	if len(result.RawLogLines) != 0 {
		t.Fatalf("expected no log lines without a credential, got %d", len(result.RawLogLines))
	}
}

func TestRunRequestedServicesFiltersListers(t *testing.T) {
	provider := mock.New()
	cfg := config.DefaultScanConfig()
	cred := scan.Credential{ProjectID: "demo-project", JSON: `{}`}

	result := discovery.Run(context.Background(), provider, "acct-1", "demo-project", cred, []string{"firewall"}, cfg)

	for _, a := range result.Assets {
		if a.Type == scan.AssetObjectBucket {
			t.Errorf("did not request storage service, but got a bucket asset: %+v", a)
		}
	}
}
