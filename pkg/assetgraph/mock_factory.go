package assetgraph

import (
	"time"
)

// MockFactory constructs graph scenarios for testing.
type MockFactory struct {
	Graph *Graph
}

func NewMockFactory() *MockFactory {
	return &MockFactory{
		Graph: NewGraph(),
	}
}

func (m *MockFactory) AddComputeInstance(id string, hasExternalIP bool, createdAge time.Duration) {
	props := map[string]interface{}{
		"has_external_ip": hasExternalIP,
		"created_at":      time.Now().Add(-createdAge),
	}
	m.Graph.AddNode(id, "gcp-compute-instance", props)
}

func (m *MockFactory) AddBucket(id string, publiclyReadable bool, attachedInstanceID string) {
	props := map[string]interface{}{
		"publicly_readable": publiclyReadable,
	}
	if attachedInstanceID != "" {
		m.Graph.AddEdge(id, attachedInstanceID)
	}
	m.Graph.AddNode(id, "gcp-object-bucket", props)
}

func (m *MockFactory) AddFirewallRule(id string, direction string, openIngress bool) {
	props := map[string]interface{}{
		"direction":    direction,
		"open_ingress": openIngress,
	}
	m.Graph.AddNode(id, "gcp-firewall-rule", props)
}

func (m *MockFactory) AddGKENodePool(id string, nodeCount, realWorkloadCount int) {
	props := map[string]interface{}{
		"node_count":          nodeCount,
		"real_workload_count": realWorkloadCount,
	}
	m.Graph.AddNode(id, "gke-node-pool", props)
}
