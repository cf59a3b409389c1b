// Package metrics prices and times the LLM calls each threat-pipeline stage
// makes, feeding scan.AgentMetrics.CostUSD the same way the cost table in
// the pipeline's original metrics module priced a response.
package metrics

// modelCosts holds USD cost per million tokens, input and output priced
// separately, for every model the threat pipeline calls by name.
var modelCosts = map[string]struct {
	Input  float64
	Output float64
}{
	"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
	"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
}

// defaultCost is charged for a model absent from the table rather than
// silently reporting zero cost for spend the table hasn't caught up with.
var defaultCost = struct {
	Input  float64
	Output float64
}{Input: 3.00, Output: 15.00}

// CostUSD prices inputTokens/outputTokens against model's per-million-token
// rate. A model missing from the table prices at defaultCost's rate rather
// than reporting free usage.
func CostUSD(model string, inputTokens, outputTokens int) float64 {
	rate, ok := modelCosts[model]
	if !ok {
		rate = defaultCost
	}
	return float64(inputTokens)/1_000_000*rate.Input + float64(outputTokens)/1_000_000*rate.Output
}
