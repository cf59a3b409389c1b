package permissions

import (
	"encoding/json"
	"sort"
)

// CustomRole is a GCP IAM custom role definition, suitable for
// `gcloud iam roles create --file=`.
type CustomRole struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Stage                string   `json:"stage"`
	IncludedPermissions []string `json:"includedPermissions"`
}

// GenerateRole creates a least-privilege GCP custom IAM role covering the
// requested services. If services is empty, it returns the full role
// covering every supported scanner.
func GenerateRole(services []string) ([]byte, error) {
	desired := make(map[string]bool)

	for _, p := range CorePermissions() {
		desired[p] = true
	}

	if len(services) == 0 {
		for _, perms := range Catalog {
			for _, p := range perms {
				desired[p] = true
			}
		}
	} else {
		for _, svc := range services {
			if perms, ok := Catalog[svc]; ok {
				for _, p := range perms {
					desired[p] = true
				}
			}
		}
	}

	var permissions []string
	for p := range desired {
		permissions = append(permissions, p)
	}
	sort.Strings(permissions)

	role := CustomRole{
		Title:               "aegisScanReadOnly",
		Description:         "Read-only permissions for the Aegis cloud security scan engine",
		Stage:               "GA",
		IncludedPermissions: permissions,
	}

	return json.MarshalIndent(role, "", "  ")
}
