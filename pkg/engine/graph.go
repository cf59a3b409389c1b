// Package engine wires the outer Scan Graph's six stages onto a
// scangraph.Runtime and wraps it in the functional-options Engine the CLI
// drives: Discovery -> Router -> Dispatch -> Aggregate -> Threat Pipeline
// Bridge -> Finalize.
package engine

import (
	"context"
	"log/slog"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/correlation"
	"github.com/aegis-scan/aegis/pkg/engine/discovery"
	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/engine/notifier"
	"github.com/aegis-scan/aegis/pkg/engine/oracle"
	"github.com/aegis-scan/aegis/pkg/engine/persistence"
	"github.com/aegis-scan/aegis/pkg/engine/policy"
	"github.com/aegis-scan/aegis/pkg/engine/remediation"
	"github.com/aegis-scan/aegis/pkg/engine/router"
	"github.com/aegis-scan/aegis/pkg/engine/scangraph"
	"github.com/aegis-scan/aegis/pkg/engine/threat"
	"github.com/aegis-scan/aegis/pkg/engine/threat/intel"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/engine/workers"
	"github.com/aegis-scan/aegis/pkg/scan"
)

// Node names for the outer scan graph.
const (
	NodeDiscovery    = "discovery"
	NodeRouter       = "router"
	NodeAggregate    = "aggregate"
	NodeThreatBridge = "threat-bridge"
	NodeFinalize     = "finalize"

	nodeActiveScan  = "active-scan"
	nodeLogAnalysis = "log-analysis"
)

// BuildOuterGraph registers the outer graph's nodes and routing onto rt.
// provider drives Discovery and the Log Analyzer's log fetch; client
// drives the threat pipeline's LLM calls. riskEngine and intelStore are
// forwarded to the threat pipeline bridge unchanged (both nil-safe — see
// threat.BuildGraph). adapter and notif are both optional (nil skips the
// corresponding side effect): Finalize only persists/notifies when set.
func BuildOuterGraph(rt *scangraph.Runtime, provider discovery.Provider, client llm.Client, cfg config.ScanConfig, riskEngine *oracle.RiskEngine, intelStore *intel.Store, adapter persistence.Adapter, notif *notifier.SlackClient, accountName string) {
	rt.AddNode(NodeDiscovery, discoveryNode(provider, cfg))
	rt.AddNode(NodeRouter, routerNode())
	rt.AddNode(nodeActiveScan, activeScanNode())
	rt.AddNode(nodeLogAnalysis, logAnalysisNode(provider))
	rt.AddNode(NodeAggregate, aggregateNode(buildTriageEngine(cfg.TriageRules)))
	rt.AddNode(NodeThreatBridge, threatBridgeNode(client, cfg, riskEngine, intelStore))
	rt.AddNode(NodeFinalize, finalizeNode(adapter, notif, accountName))

	rt.AddEdge(NodeDiscovery, func(s scan.State) scangraph.Edge {
		return scangraph.Edge{Next: NodeRouter}
	})

	rt.AddEdge(NodeRouter, func(s scan.State) scangraph.Edge {
		var dispatches []scangraph.DispatchRecord
		for _, a := range s.PublicAssets {
			dispatches = append(dispatches, scangraph.DispatchRecord{
				Node:     nodeActiveScan,
				SubState: scan.State{Assets: []scan.Asset{a}, Credential: s.Credential, ProjectID: s.ProjectID},
			})
		}
		for _, a := range s.PrivateAssets {
			dispatches = append(dispatches, scangraph.DispatchRecord{
				Node:     nodeLogAnalysis,
				SubState: scan.State{Assets: []scan.Asset{a}, Credential: s.Credential, ProjectID: s.ProjectID},
			})
		}
		if len(dispatches) == 0 {
			return scangraph.Edge{Next: NodeAggregate}
		}
		return scangraph.Edge{Dispatches: dispatches, JoinNode: NodeAggregate}
	})

	rt.AddEdge(NodeAggregate, func(s scan.State) scangraph.Edge {
		if len(s.RawLogLines)+len(s.LogLines) == 0 {
			return scangraph.Edge{Next: NodeFinalize}
		}
		return scangraph.Edge{Next: NodeThreatBridge}
	})

	rt.AddEdge(NodeThreatBridge, func(s scan.State) scangraph.Edge {
		return scangraph.Edge{Next: NodeFinalize}
	})

	rt.AddEdge(NodeFinalize, func(s scan.State) scangraph.Edge {
		return scangraph.Edge{Terminal: true}
	})
}

func discoveryNode(provider discovery.Provider, cfg config.ScanConfig) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		result := discovery.Run(ctx, provider, s.AccountID, s.ProjectID, s.Credential, s.RequestedServices, cfg)
		total := len(result.Assets)
		partial := result.ScanLog.Status == scan.ScanLogPartial
		return scangraph.StateDelta{
			Assets:           result.Assets,
			InitialFindings:  result.InitialFindings,
			RawLogLines:      result.RawLogLines,
			ScanLog:          &result.ScanLog,
			CredentialProbes: result.CredentialProbes,
			TotalAssets:      &total,
			Partial:          &partial,
			Status:           "discovery complete",
		}, nil
	}
}

func routerNode() scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		public, private := router.Partition(s.Assets)
		return scangraph.StateDelta{
			PublicAssets:  public,
			PrivateAssets: private,
			Status:        "routing complete",
		}, nil
	}
}

func activeScanNode() scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		if len(s.Assets) == 0 {
			return scangraph.StateDelta{}, nil
		}
		result := workers.ScanActive(ctx, s.Assets[0])
		return scangraph.StateDelta{
			AppendScanIssues:    result.Findings,
			AppendScannedAssets: []scan.ScannedAssetRecord{result.Record},
		}, nil
	}
}

func logAnalysisNode(provider discovery.Provider) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		if len(s.Assets) == 0 {
			return scangraph.StateDelta{}, nil
		}
		result := workers.AnalyzeLogs(ctx, provider, s.Assets[0], s.ProjectID, s.Credential)
		return scangraph.StateDelta{
			AppendScanIssues:    result.Findings,
			AppendLogLines:      result.LogLines,
			AppendScannedAssets: []scan.ScannedAssetRecord{result.Record},
		}, nil
	}
}

func aggregateNode(triage *policy.CELEngine) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		publicCount := len(s.PublicAssets)
		privateCount := len(s.PrivateAssets)
		scanType := scan.ScanTypeCloudLoggingOnly
		if publicCount > 0 {
			scanType = scan.ScanTypeFull
		}

		allFindings := make([]scan.Finding, 0, len(s.InitialFindings)+len(s.ScanIssues))
		allFindings = append(allFindings, s.InitialFindings...)
		allFindings = append(allFindings, s.ScanIssues...)

		allLogs := make([]string, 0, len(s.RawLogLines)+len(s.LogLines))
		allLogs = append(allLogs, s.RawLogLines...)
		allLogs = append(allLogs, s.LogLines...)

		result := correlation.Correlate(allFindings, allLogs)
		activeCount := result.ActiveCount

		findings := result.Findings
		if triage != nil {
			findings = applyTriage(ctx, triage, findings, s.Assets)
		}

		return scangraph.StateDelta{
			ScanType:           scanType,
			PublicScanCount:    &publicCount,
			PrivateScanCount:   &privateCount,
			CorrelatedFindings: findings,
			ActiveExploitCount: &activeCount,
			Evidence:           result.Evidence,
			Status:             "aggregate complete",
		}, nil
	}
}

// buildTriageEngine compiles rules into a CELEngine once per Engine.Run
// invocation, shared by every aggregateNode call. An empty rule set or a
// compile failure both degrade to a nil engine — the triage stage is
// opt-in and never blocks the scan.
func buildTriageEngine(rules []policy.DynamicRule) *policy.CELEngine {
	if len(rules) == 0 {
		return nil
	}
	eng, err := policy.NewCELEngine()
	if err != nil {
		slog.Warn("triage engine init failed, skipping triage", "error", err)
		return nil
	}
	if err := eng.Compile(rules); err != nil {
		slog.Warn("triage rule compilation failed, skipping triage", "error", err)
		return nil
	}
	return eng
}

// applyTriage re-triages each finding against the operator's CEL rules,
// matching it to the asset it's attached to (by Location) for the
// "kind"/"props" CEL fields. The highest-priority match wins; "ignore"
// marks the finding ignored, "approve" resolves it as an accepted
// exception. Every match appends a line to Description recording
// which rule fired, the same way correlation.Correlate annotates upgraded
// findings — Verdict is left alone since correlation already uses it for
// the human-readable incident verdict.
func applyTriage(ctx context.Context, eng *policy.CELEngine, findings []scan.Finding, assets []scan.Asset) []scan.Finding {
	assetsByName := make(map[string]scan.Asset, len(assets))
	for _, a := range assets {
		assetsByName[a.Name] = a
	}

	out := make([]scan.Finding, len(findings))
	for i, f := range findings {
		evalCtx := policy.EvaluationContext{
			RuleCode:   f.RuleCode,
			Severity:   string(f.Severity),
			Correlated: f.Correlated,
			Tags:       map[string]string{},
			Props:      map[string]interface{}{},
		}
		if asset, ok := assetsByName[correlation.ExtractResourceName(f.Location)]; ok {
			evalCtx.Kind = string(asset.Type)
			evalCtx.Props = asset.Properties
		}

		matches, err := eng.Evaluate(ctx, evalCtx)
		if err != nil || len(matches) == 0 {
			out[i] = f
			continue
		}

		triaged := f
		switch matches[0].Action {
		case "ignore":
			triaged.Status = scan.StatusIgnored
		case "approve":
			triaged.Status = scan.StatusResolved
		}
		triaged.Description = f.Description + "\nTRIAGE: rule " + matches[0].ID + " -> " + matches[0].Action
		out[i] = triaged
	}
	return out
}

func threatBridgeNode(client llm.Client, cfg config.ScanConfig, riskEngine *oracle.RiskEngine, intelStore *intel.Store) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		inner := scangraph.New(nil, events.NopSink{})
		threat.BuildGraph(inner, client, cfg, riskEngine, intelStore)
		inner.SetStart(threat.NodeIngest)

		allLogs := make([]string, 0, len(s.RawLogLines)+len(s.LogLines))
		allLogs = append(allLogs, s.RawLogLines...)
		allLogs = append(allLogs, s.LogLines...)

		final, err := inner.Run(ctx, scan.State{RawLogLines: allLogs, Evidence: s.Evidence})
		if err != nil {
			return scangraph.StateDelta{Status: "threat pipeline bridge failed: " + err.Error()}, nil
		}

		return scangraph.StateDelta{
			ParsedLogs:         final.ParsedLogs,
			Threats:            final.Threats,
			ClassifiedThreats:  final.ClassifiedThreats,
			Report:             final.Report,
			AppendAgentMetrics: final.AgentMetrics,
			Status:             "threat pipeline bridge complete",
		}, nil
	}
}

// finalizeNode applies remediation templates to the correlated findings,
// then persists assets/findings/scan log and fires the completion
// notification — both optional, skipped when adapter/notif are nil. A
// persistence or notification failure degrades to a status message rather
// than failing the scan; the findings themselves were already computed.
func finalizeNode(adapter persistence.Adapter, notif *notifier.SlackClient, accountName string) scangraph.NodeFunc {
	return func(ctx context.Context, s scan.State) (scangraph.StateDelta, error) {
		remediated := remediation.Apply(s.CorrelatedFindings, s.ProjectID)
		total := len(s.Assets)
		scanned := len(s.ScannedAssets)

		status := "finalize complete"
		if adapter != nil {
			if err := adapter.SaveAssets(ctx, s.AccountID, s.Assets); err != nil {
				status = "finalize: save assets failed: " + err.Error()
			} else if _, err := adapter.SaveFindings(ctx, s.AccountID, remediated); err != nil {
				status = "finalize: save findings failed: " + err.Error()
			} else if _, err := adapter.CreateScanLog(ctx, s.ScanLog); err != nil {
				status = "finalize: save scan log failed: " + err.Error()
			}
		}
		if notif != nil && s.Report != nil {
			_ = notif.NotifyScanComplete(accountName, *s.Report)
		}

		return scangraph.StateDelta{
			CorrelatedFindings: remediated,
			TotalAssets:        &total,
			AssetsScanned:      &scanned,
			Status:             status,
		}, nil
	}
}
