package provenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aegis-scan/aegis/pkg/engine/remediation"
)

func writeRuleFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write rule file: %v", err)
	}
}

func TestLoadRuleDirRegistersNewCode(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "custom.hcl", `
rule "gcp_099" {
  title  = "Disable legacy metadata endpoint"
  script = "gcloud compute instances add-metadata {asset} --project={project_id} --metadata=disable-legacy-endpoints=true"
  notes  = "Confirm no workloads still depend on the legacy metadata API before applying."
}
`)

	codes, err := LoadRuleDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 1 || codes[0] != "gcp_099" {
		t.Fatalf("expected [gcp_099], got %+v", codes)
	}

	tmpl, ok := remediation.Lookup("gcp_099")
	if !ok {
		t.Fatalf("expected gcp_099 to be registered")
	}
	if tmpl.Title != "Disable legacy metadata endpoint" {
		t.Errorf("unexpected title: %q", tmpl.Title)
	}
}

func TestLoadRuleDirOverwritesBuiltinCode(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "override.hcl", `
rule "gcp_002" {
  title  = "Custom SSH lockdown"
  script = "gcloud compute firewall-rules update {asset} --project={project_id} --source-ranges=192.168.0.0/16"
}
`)

	if _, err := LoadRuleDir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tmpl, ok := remediation.Lookup("gcp_002")
	if !ok || tmpl.Title != "Custom SSH lockdown" {
		t.Fatalf("expected builtin gcp_002 overwritten, got %+v", tmpl)
	}
}

func TestLoadRuleDirSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "broken.hcl", `this is not valid hcl {{{`)
	writeRuleFile(t, dir, "good.hcl", `
rule "gcp_098" {
  title  = "Example"
  script = "echo {asset}"
}
`)

	codes, err := LoadRuleDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 1 || codes[0] != "gcp_098" {
		t.Fatalf("expected only the well-formed file's rule loaded, got %+v", codes)
	}
}

func TestLoadRuleDirSkipsBlockMissingRequiredAttributes(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "incomplete.hcl", `
rule "gcp_097" {
  notes = "script is missing"
}
`)

	codes, err := LoadRuleDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 0 {
		t.Fatalf("expected no rule loaded, got %+v", codes)
	}
	if _, ok := remediation.Lookup("gcp_097"); ok {
		t.Errorf("expected gcp_097 not registered")
	}
}

func TestLoadRuleDirMissingDirectoryErrors(t *testing.T) {
	if _, err := LoadRuleDir(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
