// Package threat implements the inner threat-analysis graph: Ingest,
// Detect, Validate, Classify, and Report. Each stage is a plain function
// over scan types so it can be tested directly; graph.go wires them onto
// a scangraph.Runtime as the outer Scan Graph's threat-pipeline bridge.
package threat

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/aegis-scan/aegis/pkg/config"
	agentcost "github.com/aegis-scan/aegis/pkg/engine/metrics"
	"github.com/aegis-scan/aegis/pkg/engine/swarm"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
)

// Model identifiers mirroring each agent's original cost/latency tier:
// Haiku for high-volume structural work (Ingest, Report), Sonnet for
// judgment calls (Detect's AI layer, Validate, Classify).
const (
	ModelIngest   = "claude-haiku-4-5-20251001"
	ModelDetectAI = "claude-sonnet-4-5-20250929"
	ModelValidate = "claude-sonnet-4-5-20250929"
	ModelClassify = "claude-sonnet-4-5-20250929"
	ModelReport   = "claude-haiku-4-5-20251001"
)

const ingestSystemPrompt = `You parse raw cloud security log lines into structured records.

For each input line, in order, emit one JSON object:
{"timestamp": "...", "source": "...", "event_type": "failed-auth|recon-probe|sudo|su|privilege_escalation|ssh|rdp|smb|connection|server-error|http-client-error|http-request|error|warning|info|unknown", "source_ip": "...", "dest_ip": "...", "user": "...", "details": "..."}

Respond with a JSON array with exactly one object per input line, in the same order. Use "" for any field you cannot determine. Output only the JSON array.`

type ingestEntry struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	EventType string `json:"event_type"`
	SourceIP  string `json:"source_ip"`
	DestIP    string `json:"dest_ip"`
	User      string `json:"user"`
	Details   string `json:"details"`
}

// IngestResult is Ingest's output: the parsed log lines plus the timing
// record for whichever LLM calls it made (one per chunk in burst mode).
type IngestResult struct {
	Logs    []scan.LogLine
	Metrics []scan.AgentMetrics
}

// Ingest parses rawLogs into structured scan.LogLine records. Above
// cfg.BurstThreshold raw lines, it fans out into cfg.ChunkSize-line
// chunks dispatched concurrently through pool, offsetting each chunk's
// indices by chunkIndex*ChunkSize so every LogLine.Index is unique and
// globally ordered regardless of how the work was split. A nil pool gets
// a fresh default-concurrency swarm.Engine.
func Ingest(ctx context.Context, client llm.Client, pool *swarm.Engine, cfg config.ScanConfig, rawLogs []string) IngestResult {
	if len(rawLogs) == 0 {
		return IngestResult{}
	}
	if len(rawLogs) <= cfg.BurstThreshold {
		logs, metrics := ingestChunk(ctx, client, rawLogs, 0)
		return IngestResult{Logs: logs, Metrics: []scan.AgentMetrics{metrics}}
	}
	return ingestBurst(ctx, client, pool, cfg, rawLogs)
}

func ingestBurst(ctx context.Context, client llm.Client, pool *swarm.Engine, cfg config.ScanConfig, rawLogs []string) IngestResult {
	chunks := chunkRawLogs(rawLogs, cfg.ChunkSize)
	logsByChunk := make([][]scan.LogLine, len(chunks))
	metricsByChunk := make([]scan.AgentMetrics, len(chunks))

	tasks := make([]swarm.Task, len(chunks))
	for i, c := range chunks {
		i, c := i, c
		offset := i * cfg.ChunkSize
		tasks[i] = func(ctx context.Context) error {
			logs, metrics := ingestChunk(ctx, client, c, offset)
			logsByChunk[i] = logs
			metricsByChunk[i] = metrics
			return nil
		}
	}

	p := pool
	if p == nil {
		p = swarm.NewEngine()
	}
	p.Dispatch(ctx, tasks)

	result := IngestResult{Metrics: metricsByChunk}
	for _, logs := range logsByChunk {
		result.Logs = append(result.Logs, logs...)
	}
	return result
}

// chunkRawLogs splits rawLogs into consecutive slices of at most size
// lines each.
func chunkRawLogs(rawLogs []string, size int) [][]string {
	if size <= 0 {
		size = len(rawLogs)
	}
	var chunks [][]string
	for i := 0; i < len(rawLogs); i += size {
		end := i + size
		if end > len(rawLogs) {
			end = len(rawLogs)
		}
		chunks = append(chunks, rawLogs[i:end])
	}
	return chunks
}

func ingestChunk(ctx context.Context, client llm.Client, lines []string, offset int) ([]scan.LogLine, scan.AgentMetrics) {
	started := time.Now()
	metrics := scan.AgentMetrics{Stage: "ingest", Model: ModelIngest, StartedAt: started}

	resp, err := client.Complete(ctx, ModelIngest, llm.Request{
		System:      ingestSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildIngestPrompt(lines)}},
		MaxTokens:   4096,
		Temperature: 0.1,
	})
	metrics.FinishedAt = time.Now()
	if err != nil {
		return fallbackLogLines(lines, offset, "ingest call failed: "+err.Error()), metrics
	}
	metrics.InputTokens = resp.InputTokens
	metrics.OutputTokens = resp.OutputTokens
	metrics.CostUSD = agentcost.CostUSD(ModelIngest, resp.InputTokens, resp.OutputTokens)

	parsed, ok := parseIngestResponse(resp.Content, lines, offset)
	if !ok {
		return fallbackLogLines(lines, offset, "ingest response unparseable"), metrics
	}
	return parsed, metrics
}

func buildIngestPrompt(lines []string) string {
	var sb strings.Builder
	sb.WriteString("Parse these log lines:\n")
	for i, l := range lines {
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString("] ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseIngestResponse maps content's JSON array 1:1 onto lines. If the
// entry count doesn't match lines, missing entries are padded as
// invalid rather than discarding the whole chunk.
func parseIngestResponse(content string, lines []string, offset int) ([]scan.LogLine, bool) {
	var entries []ingestEntry
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &entries); err != nil {
		return nil, false
	}

	logs := make([]scan.LogLine, len(lines))
	for i, raw := range lines {
		ll := scan.LogLine{Index: offset + i, Raw: raw}
		if i < len(entries) {
			e := entries[i]
			ll.Timestamp = e.Timestamp
			ll.Source = e.Source
			ll.EventType = scan.EventType(e.EventType)
			ll.SourceIP = e.SourceIP
			ll.DestIP = e.DestIP
			ll.User = e.User
			ll.Details = e.Details
			ll.IsValid = true
		} else {
			ll.IsValid = false
			ll.ParseErr = "missing from ingest response"
		}
		logs[i] = ll
	}
	return logs, true
}

// fallbackLogLines produces an all-invalid LogLine set preserving the raw
// text and index, used whenever ingestion itself cannot be trusted.
func fallbackLogLines(lines []string, offset int, reason string) []scan.LogLine {
	logs := make([]scan.LogLine, len(lines))
	for i, raw := range lines {
		logs[i] = scan.LogLine{Index: offset + i, Raw: raw, IsValid: false, ParseErr: reason}
	}
	return logs
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.Contains(content, "```") {
		return content
	}
	parts := strings.SplitN(content, "```", 3)
	if len(parts) < 2 {
		return content
	}
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}
