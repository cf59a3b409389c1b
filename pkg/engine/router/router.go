// Package router partitions discovered assets into public and private
// sets using pure, type-specific predicates — no I/O, no cloud calls.
package router

import "github.com/aegis-scan/aegis/pkg/scan"

// Partition splits assets into (public, private). The split is total:
// every asset lands in exactly one set, and public ∪ private == assets,
// public ∩ private == ∅.
func Partition(assets []scan.Asset) (public, private []scan.Asset) {
	for _, a := range assets {
		if isPublic(a) {
			public = append(public, a)
		} else {
			private = append(private, a)
		}
	}
	return public, private
}

func isPublic(a scan.Asset) bool {
	switch a.Type {
	case scan.AssetComputeInstance:
		meta, ok := a.Metadata.(scan.ComputeMetadata)
		if !ok {
			return false
		}
		for _, nic := range meta.NetworkInterfaces {
			if nic.HasExternalIP {
				return true
			}
		}
		return false

	case scan.AssetObjectBucket:
		meta, ok := a.Metadata.(scan.BucketMetadata)
		if !ok {
			return false
		}
		return meta.PublicAccessPrevention != "enforced"

	case scan.AssetFirewallRule:
		meta, ok := a.Metadata.(scan.FirewallMetadata)
		if !ok {
			return false
		}
		for _, r := range meta.SourceRanges {
			if r == "0.0.0.0/0" || r == "::/0" {
				return true
			}
		}
		return false

	case scan.AssetSQLInstance:
		meta, ok := a.Metadata.(scan.SQLMetadata)
		if !ok {
			return false
		}
		return meta.PublicIP != ""

	default:
		return false
	}
}
