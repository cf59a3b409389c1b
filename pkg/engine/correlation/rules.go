// Package correlation implements the deterministic correlation engine:
// it cross-references static findings against collected log lines via a
// fixed rule matrix and upgrades findings with matching live evidence.
package correlation

import "github.com/aegis-scan/aegis/pkg/scan"

// Rules is the bit-exact, read-only correlation rule matrix keyed on
// rule_code.
var Rules = map[string]scan.CorrelationRule{
	"gcp_002": {
		RuleCode: "gcp_002",
		LogPatterns: []string{
			"Invalid user",
			"Failed password",
			"refused connect",
			"Connection closed by authenticating user",
		},
		Verdict:   "Brute Force Attempt in Progress",
		Tactic:    "TA0006",
		Technique: "T1110",
	},
	"gcp_004": {
		RuleCode: "gcp_004",
		LogPatterns: []string{
			"AnonymousAccess",
			"GetObject",
			"storage.objects.get",
			"allUsers",
		},
		Verdict:   "Data Exfiltration Occurring",
		Tactic:    "TA0010",
		Technique: "T1530",
	},
	"gcp_006": {
		RuleCode: "gcp_006",
		LogPatterns: []string{
			"compute@developer.gserviceaccount.com",
			"CreateServiceAccountKey",
			"SetIamPolicy",
		},
		Verdict:   "Privilege Escalation Risk",
		Tactic:    "TA0004",
		Technique: "T1078.004",
	},
	"log_002": {
		RuleCode: "log_002",
		LogPatterns: []string{
			"Invalid user",
			"brute",
			"Connection refused",
			"unauthorized",
		},
		Verdict:   "Unauthorized Access Attempt",
		Tactic:    "TA0001",
		Technique: "T1078",
	},
}
