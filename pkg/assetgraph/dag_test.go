package assetgraph

import (
	"testing"
)

func TestMarkExposed_AdvancedSuppression(t *testing.T) {
	nodeCostLow := "arn:low-cost"
	nodeCostHigh := "arn:high-cost"
	nodeJustified := "arn:justified"
	nodeDate := "arn:date"

	g := NewGraph()
	g.AddNode(nodeCostLow, "Test", map[string]interface{}{
		"Tags": map[string]string{"aegis:ignore": "risk<10"},
	})
	g.AddNode(nodeCostHigh, "Test", map[string]interface{}{
		"Tags": map[string]string{"aegis:ignore": "risk<10"},
	})
	g.AddNode(nodeJustified, "Test", map[string]interface{}{
		"Tags": map[string]string{"aegis:ignore": "justified:DisasterRecovery"},
	})
	g.AddNode(nodeDate, "Test", map[string]interface{}{
		"Tags": map[string]string{"aegis:ignore": "2099-01-01"},
	})

	// Wait for the builder loop to apply the queued nodes.
	g.CloseAndWait()

	// Set scores manually as they aren't computed here.
	g.GetNode(nodeCostLow).ExposureScore = 5.0
	g.GetNode(nodeCostHigh).ExposureScore = 15.0

	// Run MarkExposed
	g.MarkExposed(nodeCostLow, 100)
	g.MarkExposed(nodeCostHigh, 100)
	g.MarkExposed(nodeJustified, 100)
	g.MarkExposed(nodeDate, 100)

	// Assertions

	// 1. ExposureScore < 10 (ExposureScore=5) -> Should be IGNORED (IsExposed=false)
	if g.GetNode(nodeCostLow).IsExposed {
		t.Errorf("low-score node should satisfy risk<10 and be ignored")
	}

	// 2. ExposureScore < 10 (ExposureScore=15) -> Should be MARKED (IsExposed=true)
	if !g.GetNode(nodeCostHigh).IsExposed {
		t.Errorf("high-score node should fail risk<10 and be marked")
	}

	// 3. Justified -> Should be MARKED + JUSTIFIED
	if !g.GetNode(nodeJustified).IsExposed {
		t.Errorf("justified node should still be marked exposed (for tracking)")
	}
	if !g.GetNode(nodeJustified).Justified {
		t.Errorf("justified node should be flagged Justified=true")
	}
	if g.GetNode(nodeJustified).Justification != "disasterrecovery" {
		t.Errorf("justification reason mismatch. Got %s", g.GetNode(nodeJustified).Justification)
	}

	// 4. Date -> Should be IGNORED (Future date)
	if g.GetNode(nodeDate).IsExposed {
		t.Errorf("future-date snoozed node should be ignored")
	}
}
