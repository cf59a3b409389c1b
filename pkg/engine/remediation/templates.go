package remediation

// Template is a remediation script registered for a rule code. ScriptBody
// references only {asset} and {project_id} placeholders — the engine never
// interprets the script beyond interpolation.
type Template struct {
	Title      string
	ScriptBody string
	Notes      string
}

// registry maps rule_code to its remediation template. The built-in
// entries are defined here; Register can add or overwrite entries at
// startup. Rule codes without an entry pass through Apply unmodified.
var registry = map[string]Template{
	"gcp_002": {
		Title: "Restrict SSH ingress",
		ScriptBody: `gcloud compute firewall-rules update {asset} \
  --project={project_id} \
  --source-ranges=10.0.0.0/8`,
		Notes: "Replace the source range with your VPN or bastion CIDR before running. This removes 0.0.0.0/0 access to port 22.",
	},
	"gcp_004": {
		Title: "Remove public bucket access",
		ScriptBody: `gsutil iam ch -d allUsers gs://{asset}
gsutil iam ch -d allAuthenticatedUsers gs://{asset}`,
		Notes: "Audit downstream consumers of this bucket's public URLs before revoking access; they will break.",
	},
	"gcp_006": {
		Title: "Replace default service account",
		ScriptBody: `gcloud compute instances set-service-account {asset} \
  --project={project_id} \
  --service-account=<least-privilege-sa>@{project_id}.iam.gserviceaccount.com \
  --scopes=cloud-platform`,
		Notes: "Create a dedicated service account scoped to this instance's actual dependencies before running; the default compute SA grants editor-equivalent access.",
	},
	"log_001": {
		Title: "Investigate elevated error rate",
		ScriptBody: `gcloud logging read 'resource.labels.instance_id="{asset}" AND severity>=ERROR' \
  --project={project_id} \
  --limit=200 \
  --freshness=24h`,
		Notes: "No automated fix exists for elevated error volume; pull the referenced window and triage manually.",
	},
	"log_002": {
		Title: "Lock down after authentication failures",
		ScriptBody: `gcloud compute instances add-metadata {asset} \
  --project={project_id} \
  --metadata=block-project-ssh-keys=true
gcloud compute firewall-rules update allow-ssh \
  --project={project_id} \
  --source-ranges=10.0.0.0/8`,
		Notes: "Rotate any credentials observed in the matched log lines in addition to restricting ingress.",
	},
}

// Lookup returns the template registered for code, if any.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or overwrites the template for code. Used by the operator
// HCL rule loader to merge custom remediation templates over the built-in
// registry at startup; never called from request-handling code, so it takes
// no lock.
func Register(code string, t Template) {
	registry[code] = t
}
