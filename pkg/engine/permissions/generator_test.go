package permissions

import (
	"encoding/json"
	"testing"
)

func TestGenerateRoleIncludesCorePermissions(t *testing.T) {
	data, err := GenerateRole([]string{"firewall"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var role CustomRole
	if err := json.Unmarshal(data, &role); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	has := func(perm string) bool {
		for _, p := range role.IncludedPermissions {
			if p == perm {
				return true
			}
		}
		return false
	}

	if !has("resourcemanager.projects.get") {
		t.Error("expected core permission resourcemanager.projects.get to always be included")
	}
	if !has("compute.firewalls.list") {
		t.Error("expected firewall service permission to be included")
	}
	if has("storage.buckets.list") {
		t.Error("did not request storage service, should not include its permissions")
	}
}

func TestGenerateRoleEmptyServicesIncludesEverything(t *testing.T) {
	data, err := GenerateRole(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var role CustomRole
	if err := json.Unmarshal(data, &role); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	total := len(CorePermissions())
	for _, perms := range Catalog {
		total += len(perms)
	}
	if len(role.IncludedPermissions) == 0 || len(role.IncludedPermissions) > total {
		t.Errorf("expected a deduplicated, non-empty permission set, got %d", len(role.IncludedPermissions))
	}
}

func TestGenerateRolePermissionsAreSorted(t *testing.T) {
	data, _ := GenerateRole(nil)
	var role CustomRole
	json.Unmarshal(data, &role)

	for i := 1; i < len(role.IncludedPermissions); i++ {
		if role.IncludedPermissions[i-1] > role.IncludedPermissions[i] {
			t.Fatalf("permissions not sorted: %q before %q", role.IncludedPermissions[i-1], role.IncludedPermissions[i])
		}
	}
}
