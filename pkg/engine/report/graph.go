package report

import (
	"fmt"
	"strings"

	"github.com/aegis-scan/aegis/pkg/assetgraph"
	"github.com/aegis-scan/aegis/pkg/scan"
)

// BuildAssetGraph projects a scan's discovered assets into the blast-radius
// relationship graph: one node per asset, typed properties derived from
// its Metadata so assetgraph.AnalyzeReachability can trace exposure from
// an open-ingress firewall rule to whatever it can reach.
func BuildAssetGraph(assets []scan.Asset) *assetgraph.Graph {
	g := assetgraph.NewGraph()

	var openFirewalls []string
	var reachableTargets []string

	for _, asset := range assets {
		id := fmt.Sprintf("%s/%s", asset.Type, asset.Name)
		props := map[string]interface{}{}
		for k, v := range asset.Properties {
			props[k] = v
		}

		// Graph node types carry a "gcp-" prefix (mirroring the teacher's
		// "AWS::" ARN-style prefixing) so AnalyzeReachability's isRoot and
		// canTraverse checks, and the graph's own test fixtures, stay on
		// one naming convention; GKE node pools keep their own
		// "gke-node-pool" type since they aren't reached through the GCP
		// control plane.
		nodeType := "gcp-" + string(asset.Type)

		switch meta := asset.Metadata.(type) {
		case scan.FirewallMetadata:
			props["direction"] = meta.Direction
			props["open_ingress"] = isOpenIngress(meta)
			if meta.Direction == "INGRESS" && isOpenIngress(meta) {
				openFirewalls = append(openFirewalls, id)
			}
		case scan.ComputeMetadata:
			props["has_external_ip"] = hasExternalIP(meta)
			if hasExternalIP(meta) {
				reachableTargets = append(reachableTargets, id)
			}
		case scan.SQLMetadata:
			props["has_external_ip"] = meta.PublicIP != ""
			if meta.PublicIP != "" {
				reachableTargets = append(reachableTargets, id)
			}
		case scan.BucketMetadata:
			props["publicly_readable"] = isPubliclyReadable(meta)
		case scan.GKEClusterMetadata:
			nodeType = "gke-node-pool"
			props["node_count"] = meta.NodeCount
			props["real_workload_count"] = meta.RealWorkloadCount
		}

		g.AddNode(id, nodeType, props)
	}

	for _, fw := range openFirewalls {
		for _, target := range reachableTargets {
			g.AddEdge(fw, target)
		}
	}

	g.CloseAndWait()
	return g
}

func isOpenIngress(meta scan.FirewallMetadata) bool {
	for _, r := range meta.SourceRanges {
		if r == "0.0.0.0/0" {
			return true
		}
	}
	return false
}

func hasExternalIP(meta scan.ComputeMetadata) bool {
	for _, iface := range meta.NetworkInterfaces {
		if iface.HasExternalIP {
			return true
		}
	}
	return false
}

func isPubliclyReadable(meta scan.BucketMetadata) bool {
	if strings.EqualFold(meta.PublicAccessPrevention, "inherited") || meta.PublicAccessPrevention == "" {
		for _, b := range meta.IAMBindings {
			for _, m := range b.Members {
				if m == "allUsers" || m == "allAuthenticatedUsers" {
					return true
				}
			}
		}
	}
	return false
}
