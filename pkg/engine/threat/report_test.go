package threat

import (
	"context"
	"errors"
	"testing"

	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

func TestReportEmptyThreatsYieldsCleanReport(t *testing.T) {
	client := llm.FailingClient(errors.New("should not be called"))
	result := Report(context.Background(), client, nil, nil, DetectionStats{}, nil)

	if result.Report.ExecutiveSummary != "No threats detected in the analyzed logs." {
		t.Fatalf("unexpected summary: %q", result.Report.ExecutiveSummary)
	}
	if len(client.Calls) != 0 {
		t.Fatalf("expected no LLM call for empty threat input")
	}
}

func TestReportParsesLLMResponse(t *testing.T) {
	classified := []scan.ClassifiedThreat{{Threat: scan.Threat{ThreatID: "t1"}, Risk: scan.RiskCritical, RiskScore: 9.5}}
	client := llm.StaticClient(`{"summary":"Brute force attack detected from 203.0.113.5","timeline":"attack began at 00:00","action_plan":[{"action":"Block source IP","urgency":"immediate","owner":"Security Team"}],"recommendations":["Enable MFA"],"ioc_summary":["IP: 203.0.113.5"],"mitre_techniques":["T1110"]}`, 10, 10)

	result := Report(context.Background(), client, classified, nil, DetectionStats{TotalThreats: 1}, nil)
	if result.Report.ExecutiveSummary == "" || len(result.Report.ActionPlan) != 1 {
		t.Fatalf("unexpected report: %+v", result.Report)
	}
	if result.Report.SeverityCounts["critical"] != 1 {
		t.Errorf("expected severity counts to reflect classified threats, got %+v", result.Report.SeverityCounts)
	}
}

func TestReportFallsBackToTemplateOnLLMFailure(t *testing.T) {
	classified := []scan.ClassifiedThreat{
		{Threat: scan.Threat{ThreatID: "t1", SourceIP: "203.0.113.5"}, Risk: scan.RiskCritical},
	}
	client := llm.FailingClient(errors.New("down"))

	result := Report(context.Background(), client, classified, nil, DetectionStats{}, nil)
	if len(result.Report.ActionPlan) != 1 || result.Report.ActionPlan[0].Urgency != "immediate" {
		t.Fatalf("expected one immediate action step from template fallback, got %+v", result.Report.ActionPlan)
	}
	if len(result.Report.IOCs) != 1 || result.Report.IOCs[0] != "203.0.113.5" {
		t.Errorf("expected source ip collected as IOC, got %+v", result.Report.IOCs)
	}
}

func TestReportFallsBackOnMalformedJSON(t *testing.T) {
	classified := []scan.ClassifiedThreat{{Threat: scan.Threat{ThreatID: "t1"}, Risk: scan.RiskLow}}
	client := llm.StaticClient("not json at all", 1, 1)

	result := Report(context.Background(), client, classified, nil, DetectionStats{}, nil)
	if len(result.Report.ActionPlan) != 1 {
		t.Fatalf("expected template fallback on malformed JSON, got %+v", result.Report)
	}
}
