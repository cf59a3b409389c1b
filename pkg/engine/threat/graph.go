package threat

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/oracle"
	"github.com/aegis-scan/aegis/pkg/engine/scangraph"
	"github.com/aegis-scan/aegis/pkg/engine/threat/intel"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

// Node names for the inner threat graph, exported so the outer Scan
// Graph's threat-pipeline bridge can name "ingest" as its entry point.
const (
	NodeIngest     = "ingest"
	NodeSkipIngest = "skip-ingest"
	NodeDetect     = "detect"
	NodeValidate   = "validate"
	NodeClassify   = "classify"
	NodeReport     = "report"

	nodeParseIngest = "parse-ingest"
)

// BuildGraph registers the inner threat graph's five nodes and their
// conditional routing onto rt: no valid parsed logs or no detected
// threats both short-circuit straight to Report (which degrades to a
// trivial report on an empty ClassifiedThreats input), matching the
// pipeline's early-exit boundary behavior. client drives every LLM call;
// cfg bounds burst-mode ingestion and validation sampling.
// riskEngine may be nil — Classify then falls back to a flat 5.0 on LLM
// failure instead of a per-rule-type decaying estimate. Pass a shared
// *oracle.RiskEngine across scans in a long-lived process to let repeat
// observations of the same threat type differentiate the fallback score.
// intelStore may be nil — Classify then omits threat-intel context from
// its prompts entirely.
func BuildGraph(rt *scangraph.Runtime, client llm.Client, cfg config.ScanConfig, riskEngine *oracle.RiskEngine, intelStore *intel.Store) {
	rt.AddNode(NodeIngest, ingestRouterNode())
	rt.AddNode(nodeParseIngest, parseIngestNode(client, rt, cfg))
	rt.AddNode(NodeSkipIngest, skipIngestNode())
	rt.AddNode(NodeDetect, detectNode(client))
	rt.AddNode(NodeValidate, validateNode(client, cfg))
	rt.AddNode(NodeClassify, classifyNode(client, riskEngine, intelStore))
	rt.AddNode(NodeReport, reportNode(client))

	// A pre-parsed list supplied by the outer pipeline (Discovery's own
	// structured parse, most commonly) skips the LLM-backed parse
	// entirely and routes straight to a node that only recomputes
	// counts, rather than re-running Ingest against logs already in
	// structured form.
	rt.AddEdge(NodeIngest, func(s scan.State) scangraph.Edge {
		if len(s.ParsedLogs) > 0 {
			return scangraph.Edge{Next: NodeSkipIngest}
		}
		return scangraph.Edge{Next: nodeParseIngest}
	})
	rt.AddEdge(nodeParseIngest, func(s scan.State) scangraph.Edge {
		if countValid(s.ParsedLogs) == 0 {
			return scangraph.Edge{Next: NodeReport}
		}
		return scangraph.Edge{Next: NodeDetect}
	})
	rt.AddEdge(NodeSkipIngest, func(s scan.State) scangraph.Edge {
		if countValid(s.ParsedLogs) == 0 {
			return scangraph.Edge{Next: NodeReport}
		}
		return scangraph.Edge{Next: NodeDetect}
	})
	rt.AddEdge(NodeDetect, func(s scan.State) scangraph.Edge {
		if len(s.Threats) == 0 {
			return scangraph.Edge{Next: NodeReport}
		}
		return scangraph.Edge{Next: NodeValidate}
	})
	rt.AddEdge(NodeValidate, func(s scan.State) scangraph.Edge {
		return scangraph.Edge{Next: NodeClassify}
	})
	rt.AddEdge(NodeClassify, func(s scan.State) scangraph.Edge {
		return scangraph.Edge{Next: NodeReport}
	})
	rt.AddEdge(NodeReport, func(s scan.State) scangraph.Edge {
		return scangraph.Edge{Terminal: true}
	})
}

func countValid(logs []scan.LogLine) int {
	n := 0
	for _, l := range logs {
		if l.IsValid {
			n++
		}
	}
	return n
}

// ingestRouterNode is a pure routing point: it makes no state changes
// itself, leaving the pre-parsed-vs-raw decision entirely to the edge
// function that follows it.
func ingestRouterNode() scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		return scangraph.StateDelta{}, nil
	}
}

func parseIngestNode(client llm.Client, rt *scangraph.Runtime, cfg config.ScanConfig) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		result := Ingest(ctx, client, rt.Pool(), cfg, s.RawLogLines)
		return scangraph.StateDelta{
			ParsedLogs:         result.Logs,
			AppendAgentMetrics: result.Metrics,
			Status:             "threat-pipeline: ingest complete",
		}, nil
	}
}

// skipIngestNode handles the case where the outer pipeline already
// supplied structured ParsedLogs — it recomputes the valid/total counts
// without re-running the LLM-backed parse against already-structured
// input.
func skipIngestNode() scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		total := len(s.ParsedLogs)
		valid := countValid(s.ParsedLogs)
		return scangraph.StateDelta{
			Status: fmt.Sprintf("threat-pipeline: skip-ingest (%d/%d pre-parsed logs valid)", valid, total),
		}, nil
	}
}

func detectNode(client llm.Client) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		result := Detect(ctx, client, s.ParsedLogs)
		return scangraph.StateDelta{
			Threats:            result.Threats,
			AppendAgentMetrics: []scan.AgentMetrics{result.Metrics},
			Status:             "threat-pipeline: detect complete",
		}, nil
	}
}

func validateNode(client llm.Client, cfg config.ScanConfig) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		// Positions at or past the clean pool's length are skipped by
		// selectCleanSample, so a permutation over every parsed position
		// yields a uniform random sample of the clean pool.
		indices := rand.Perm(len(s.ParsedLogs))

		result := Validate(ctx, client, cfg, s.ParsedLogs, s.Threats, indices)
		return scangraph.StateDelta{
			Threats:            result.Threats,
			AppendAgentMetrics: []scan.AgentMetrics{result.Metrics},
			Status:             "threat-pipeline: validate complete",
		}, nil
	}
}

func classifyNode(client llm.Client, riskEngine *oracle.RiskEngine, intelStore *intel.Store) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		result := Classify(ctx, client, riskEngine, intelStore, s.Threats, s.Evidence)
		return scangraph.StateDelta{
			ClassifiedThreats:  result.Threats,
			AppendAgentMetrics: []scan.AgentMetrics{result.Metrics},
			Status:             "threat-pipeline: classify complete",
		}, nil
	}
}

func reportNode(client llm.Client) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		stats := tallyDetectionStats(s.Threats)
		result := Report(ctx, client, s.ClassifiedThreats, s.ParsedLogs, stats, s.Evidence)
		return scangraph.StateDelta{
			Report:             &result.Report,
			AppendAgentMetrics: []scan.AgentMetrics{result.Metrics},
			Status:             "threat-pipeline: report complete",
		}, nil
	}
}

// tallyDetectionStats recovers Detect's rule/AI split from the
// accumulated Threat.Method tags rather than threading a separate
// DetectionStats value through ScanState.
func tallyDetectionStats(threats []scan.Threat) DetectionStats {
	stats := DetectionStats{TotalThreats: len(threats)}
	for _, t := range threats {
		switch t.Method {
		case "rule_based":
			stats.RulesMatched++
		case "ai_detected":
			stats.AIDetections++
		}
	}
	return stats
}
