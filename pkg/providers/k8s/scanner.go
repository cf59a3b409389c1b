package k8s

import (
	"context"
	"fmt"
	"time"

	"github.com/aegis-scan/aegis/pkg/assetgraph"
	"github.com/aegis-scan/aegis/pkg/scan"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/informers"
)

// Scanner censuses GKE node pools and the real workloads scheduled onto
// them. Graph is optional: when set, each node pool is also recorded as a
// graph node for blast-radius analysis; when nil, Scan still returns the
// discovered assets.
type Scanner struct {
	Client *Client
	Graph  *assetgraph.Graph
}

func NewScanner(client *Client, g *assetgraph.Graph) *Scanner {
	return &Scanner{
		Client: client,
		Graph:  g,
	}
}

// Scan lists cluster nodes and pods through a SharedInformerFactory,
// groups nodes by GKE node-pool label, and returns one scan.Asset per
// node pool found. A nil Client is a graceful no-op — GKE discovery is
// best-effort and Discovery treats its absence like any other
// unreachable service.
func (s *Scanner) Scan(ctx context.Context) ([]scan.Asset, error) {
	if s.Client == nil {
		return nil, nil
	}

	factory := informers.NewSharedInformerFactory(s.Client.Clientset, 10*time.Minute)

	nodeLister := factory.Core().V1().Nodes().Lister()
	podLister := factory.Core().V1().Pods().Lister()

	factory.Start(ctx.Done())

	// Wait for the local cache to populate before querying it, so an
	// early list doesn't see a spuriously empty cluster.
	synced := factory.WaitForCacheSync(ctx.Done())
	for kind, ok := range synced {
		if !ok {
			return nil, fmt.Errorf("failed to sync informer for %v", kind)
		}
	}

	nodes, err := nodeLister.List(labels.Everything())
	if err != nil {
		return nil, fmt.Errorf("failed to list k8s nodes from cache: %w", err)
	}

	type nodePoolData struct {
		name      string
		nodeNames []string
	}

	nodePools := make(map[string]*nodePoolData)
	for _, node := range nodes {
		poolName, ok := node.Labels["cloud.google.com/gke-nodepool"]
		if !ok {
			continue
		}
		if _, exists := nodePools[poolName]; !exists {
			nodePools[poolName] = &nodePoolData{name: poolName}
		}
		nodePools[poolName].nodeNames = append(nodePools[poolName].nodeNames, node.Name)
	}

	allPods, err := podLister.List(labels.Everything())
	if err != nil {
		return nil, fmt.Errorf("failed to list pods from cache: %w", err)
	}

	podsByNode := make(map[string][]*corev1.Pod)
	for _, pod := range allPods {
		if pod.Spec.NodeName != "" {
			podsByNode[pod.Spec.NodeName] = append(podsByNode[pod.Spec.NodeName], pod)
		}
	}

	var assets []scan.Asset
	for poolName, pool := range nodePools {
		realWorkloadCount := 0
		totalNodeCount := len(pool.nodeNames)

		for _, nodeName := range pool.nodeNames {
			for _, pod := range podsByNode[nodeName] {
				if pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
					continue
				}

				isDaemonSet := false
				for _, ref := range pod.OwnerReferences {
					if ref.Kind == "DaemonSet" {
						isDaemonSet = true
						break
					}
				}
				if isDaemonSet {
					continue
				}

				if _, isMirror := pod.Annotations["kubernetes.io/config.mirror"]; isMirror {
					continue
				}

				if pod.Namespace == "kube-system" {
					continue
				}

				realWorkloadCount++
			}
		}

		meta := scan.GKEClusterMetadata{
			NodePoolName:      poolName,
			NodeCount:         totalNodeCount,
			RealWorkloadCount: realWorkloadCount,
		}

		assets = append(assets, scan.Asset{
			Type:     scan.AssetGKECluster,
			Name:     poolName,
			Metadata: meta,
			Properties: map[string]interface{}{
				"node_pool_name":      poolName,
				"node_count":          totalNodeCount,
				"real_workload_count": realWorkloadCount,
			},
		})

		if s.Graph != nil {
			id := fmt.Sprintf("gke-cluster/%s", poolName)
			s.Graph.AddNode(id, "gke-node-pool", map[string]interface{}{
				"node_count":          totalNodeCount,
				"real_workload_count": realWorkloadCount,
			})
		}
	}

	return assets, nil
}
