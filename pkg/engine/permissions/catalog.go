package permissions

// Catalog defines the known mapping of scanner services to GCP IAM
// permissions. Keys match scan.RequestedServices entries.
var Catalog = map[string][]string{
	"firewall": {
		"compute.firewalls.list",
		"compute.firewalls.get",
		"compute.networks.list",
	},
	"compute": {
		"compute.instances.list",
		"compute.instances.get",
		"compute.subnetworks.list",
		"compute.disks.list",
	},
	"storage": {
		"storage.buckets.list",
		"storage.buckets.get",
		"storage.buckets.getIamPolicy",
	},
	"sql": {
		"cloudsql.instances.list",
		"cloudsql.instances.get",
	},
	"cloud-logging": {
		"logging.logEntries.list",
		"logging.logs.list",
		"logging.sinks.list",
	},
	"gke": {
		"container.clusters.list",
		"container.clusters.get",
		"container.nodePools.list",
	},
}

// CorePermissions returns the absolute minimum permissions needed for the
// engine's credential probe to boot a scan.
func CorePermissions() []string {
	return []string{
		"resourcemanager.projects.get",
		"serviceusage.services.list",
	}
}
