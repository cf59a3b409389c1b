package assetgraph

import "sort"

// ImpactReport details the blast radius of an asset's exposure: every
// node reachable through it would inherit whatever risk materializes if
// the target is actually exploited, not merely removed.
type ImpactReport struct {
	TargetNode      *Node
	DirectImpact    []*Node // Nodes directly depending on this
	CascadingImpact []*Node // Nodes reachable through this node.
	TotalRiskScore  int
}

// AnalyzeImpact quantifies an asset's blast radius: how many other nodes
// depend on it directly or transitively, and the combined RiskScore of
// its direct dependents. Cascading dependents are listed but their
// RiskScore is not added to TotalRiskScore.
func (g *Graph) AnalyzeImpact(nodeID string) *ImpactReport {
	g.Mu.RLock()
	defer g.Mu.RUnlock()

	targetIdx, ok := g.Store.GetNodeID(nodeID)
	if !ok {
		return nil
	}
	targetNode := g.Store.GetNode(targetIdx)

	report := &ImpactReport{
		TargetNode: targetNode,
	}

	// Identify direct dependencies.
	directEdges := g.Store.GetEdges(targetIdx) // Targets
	for _, edge := range directEdges {
		node := g.Store.GetNode(edge.TargetID)
		if node != nil {
			report.DirectImpact = append(report.DirectImpact, node)
			report.TotalRiskScore += node.RiskScore
		}
	}

	// Calculate cascading impact via BFS.
	visited := make(map[uint32]bool)
	queue := []uint32{}

	// Initialize queue.
	for _, child := range report.DirectImpact {
		visited[child.Index] = true
		queue = append(queue, child.Index)
	}

	// Mark processed.
	visited[targetIdx] = true

	for len(queue) > 0 {
		currentIdx := queue[0]
		queue = queue[1:]

		// Add to cascading.

		children := g.Store.GetEdges(currentIdx)
		for _, childEdge := range children {
			if !visited[childEdge.TargetID] {
				visited[childEdge.TargetID] = true
				queue = append(queue, childEdge.TargetID)

				node := g.Store.GetNode(childEdge.TargetID)
				if node != nil {
					report.CascadingImpact = append(report.CascadingImpact, node)
				}
			}
		}
	}

	return report
}

// RankImpact runs AnalyzeImpact across every node in g and returns the
// limit highest-TotalRiskScore reports, descending. Used to surface the
// assets whose exposure would do the most cascading damage if an
// attacker actually reached them, in the HTML dashboard's blast-radius
// table.
func RankImpact(g *Graph, limit int) []*ImpactReport {
	nodes := g.GetNodes()
	reports := make([]*ImpactReport, 0, len(nodes))
	for _, n := range nodes {
		if r := g.AnalyzeImpact(n.IDStr()); r != nil {
			reports = append(reports, r)
		}
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].TotalRiskScore > reports[j].TotalRiskScore
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports
}
