// Package scan defines the core data model shared by every stage of the
// scan orchestration engine: discovered assets, findings, log lines, and
// the state object threaded through the graph runtime.
package scan

import "time"

// AssetType enumerates the cloud resource kinds Discovery can produce.
type AssetType string

const (
	AssetFirewallRule    AssetType = "firewall-rule"
	AssetComputeInstance AssetType = "compute-instance"
	AssetObjectBucket    AssetType = "object-bucket"
	AssetSQLInstance     AssetType = "sql-instance"
	AssetLogSummary      AssetType = "log-summary"
	AssetGKECluster      AssetType = "gke-cluster"
)

// AllowedProtocol describes one ingress/egress allow rule on a firewall.
type AllowedProtocol struct {
	IPProtocol string   `json:"ip_protocol"`
	Ports      []string `json:"ports"`
}

// FirewallMetadata is the typed metadata for AssetFirewallRule.
type FirewallMetadata struct {
	SourceRanges []string          `json:"source_ranges"`
	Direction    string            `json:"direction"`
	Allowed      []AllowedProtocol `json:"allowed"`
}

// NetworkInterface is one NIC on a compute instance.
type NetworkInterface struct {
	Network       string `json:"network"`
	HasExternalIP bool   `json:"has_external_ip"`
}

// ServiceAccount is an identity attached to a compute instance.
type ServiceAccount struct {
	Email  string   `json:"email"`
	Scopes []string `json:"scopes"`
}

// ComputeMetadata is the typed metadata for AssetComputeInstance.
type ComputeMetadata struct {
	NetworkInterfaces []NetworkInterface `json:"network_interfaces"`
	ServiceAccounts   []ServiceAccount   `json:"service_accounts"`
}

// IAMBinding is one role -> members binding on a bucket's IAM policy.
type IAMBinding struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

// BucketMetadata is the typed metadata for AssetObjectBucket.
type BucketMetadata struct {
	PublicAccessPrevention string       `json:"public_access_prevention"`
	IAMBindings             []IAMBinding `json:"iam_bindings"`
}

// SQLMetadata is the typed metadata for AssetSQLInstance.
type SQLMetadata struct {
	PublicIP  string `json:"public_ip"`
	PrivateIP string `json:"private_ip"`
}

// LogSummaryMetadata is the typed metadata for AssetLogSummary.
type LogSummaryMetadata struct {
	ErrorCount       int `json:"error_count"`
	FailedAuthCount  int `json:"failed_auth_count"`
	ReconProbeCount  int `json:"recon_probe_count"`
}

// GKEClusterMetadata is the typed metadata for AssetGKECluster, derived
// from a best-effort node-pool and workload census against the cluster's
// Kubernetes API rather than the GCP control-plane API.
type GKEClusterMetadata struct {
	NodePoolName      string `json:"node_pool_name"`
	NodeCount         int    `json:"node_count"`
	RealWorkloadCount int    `json:"real_workload_count"`
}

// Asset is one discovered cloud resource. Metadata holds the typed struct
// matching Type (see the AssetXxxMetadata types above); Properties is the
// untyped fallback used only by the asset relationship graph for display.
type Asset struct {
	Type       AssetType              `json:"asset_type"`
	Name       string                 `json:"name"`
	Region     string                 `json:"region,omitempty"`
	Metadata   interface{}            `json:"metadata"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Severity is a finding's urgency rating.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities for ListFindings-style sorting: critical
// first, low last.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// SeverityRank returns the sort rank of s (lower sorts first). Unknown
// severities sort last.
func SeverityRank(s Severity) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// FindingStatus is the lifecycle state of a finding.
type FindingStatus string

const (
	StatusTodo       FindingStatus = "todo"
	StatusInProgress FindingStatus = "in-progress"
	StatusIgnored    FindingStatus = "ignored"
	StatusResolved   FindingStatus = "resolved"
)

// ActiveMarker prefixes the title of any finding upgraded by correlation.
const ActiveMarker = "[ACTIVE] "

// Finding (a.k.a. Issue) is a security problem attached to an asset or to
// a log pattern. Identity is (RuleCode, Location) within a scan scope.
type Finding struct {
	RuleCode           string        `json:"rule_code"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Severity           Severity      `json:"severity"`
	Location           string        `json:"location"`
	Status             FindingStatus `json:"status"`
	RemediationScript  string        `json:"remediation_script,omitempty"`
	Correlated         bool          `json:"correlated"`
	Verdict            string        `json:"verdict,omitempty"`
	Tactic             string        `json:"tactic,omitempty"`
	Technique          string        `json:"technique,omitempty"`
	DiscoveredAt       time.Time     `json:"discovered_at"`
}

// Clone returns a deep-enough copy of f — correlation upgrades must never
// mutate the original finding (spec invariant).
func (f Finding) Clone() Finding {
	return f
}

// EventType classifies a parsed LogLine.
type EventType string

const (
	EventFailedAuth     EventType = "failed-auth"
	EventReconProbe     EventType = "recon-probe"
	EventServerError    EventType = "server-error"
	EventHTTPClientErr  EventType = "http-client-error"
	EventHTTPRequest    EventType = "http-request"
	EventError          EventType = "error"
	EventWarning        EventType = "warning"
	EventInfo           EventType = "info"
	EventUnknown        EventType = "unknown"

	// event types the threat pipeline's rule-based detectors key off of;
	// Ingest assigns these from raw log text, distinct from the coarser
	// Discovery-level classification above.
	EventSudo                EventType = "sudo"
	EventSu                  EventType = "su"
	EventPrivilegeEscalation EventType = "privilege_escalation"
	EventSSH                 EventType = "ssh"
	EventRDP                 EventType = "rdp"
	EventSMB                 EventType = "smb"
	EventConnection          EventType = "connection"
)

// LogLine is one log entry: the opaque raw text plus, after parsing,
// structured fields. Index is unique and globally ordered across an
// entire scan (burst-mode chunks offset their indices).
type LogLine struct {
	Index     int       `json:"index"`
	Raw       string    `json:"raw"`
	Timestamp string    `json:"timestamp,omitempty"`
	Source    string    `json:"source,omitempty"`
	EventType EventType `json:"event_type,omitempty"`
	SourceIP  string    `json:"source_ip,omitempty"`
	DestIP    string    `json:"dest_ip,omitempty"`
	User      string    `json:"user,omitempty"`
	Details   string    `json:"details,omitempty"`
	IsValid   bool      `json:"is_valid"`
	ParseErr  string    `json:"parse_error,omitempty"`
}

// ScanLogEntryStatus is the per-service outcome recorded in a ScanLog.
type ScanLogEntryStatus string

const (
	ScanStatusSuccess ScanLogEntryStatus = "success"
	ScanStatusPartial ScanLogEntryStatus = "partial"
	ScanStatusSkipped ScanLogEntryStatus = "skipped"
	ScanStatusError   ScanLogEntryStatus = "error"
)

// ScanLogEntry records one service's discovery outcome.
type ScanLogEntry struct {
	Service    string             `json:"service"`
	Status     ScanLogEntryStatus `json:"status"`
	Duration   time.Duration      `json:"duration"`
	AssetCount int                `json:"asset_count"`
	IssueCount int                `json:"issue_count"`
	Error      string             `json:"error,omitempty"`
}

// ScanLogStatus is the overall scan-log record status.
type ScanLogStatus string

const (
	ScanLogRunning ScanLogStatus = "running"
	ScanLogSuccess ScanLogStatus = "success"
	ScanLogPartial ScanLogStatus = "partial"
	ScanLogError   ScanLogStatus = "error"
)

// ScanLog is the structured, persisted record of one scan invocation.
type ScanLog struct {
	AccountID string         `json:"account_id"`
	Status    ScanLogStatus  `json:"status"`
	Summary   string         `json:"summary"`
	Entries   []ScanLogEntry `json:"entries"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

// ScannedAssetRecord is the per-asset worker provenance record appended
// to ScanState.ScannedAssets.
type ScannedAssetRecord struct {
	Asset       string `json:"asset"`
	Route       string `json:"route"` // "active" or "log-analysis"
	IssuesFound int    `json:"issues_found"`
}

// CredentialServiceProbe is one service's accessibility check result from
// Discovery's credential probe.
type CredentialServiceProbe struct {
	Service    string `json:"service"`
	Accessible bool   `json:"accessible"`
	Detail     string `json:"detail"`
}

// CorrelationRule is a read-only rule-matrix entry keyed on rule_code.
type CorrelationRule struct {
	RuleCode    string
	LogPatterns []string
	Verdict     string
	Tactic      string
	Technique   string
}

// EvidenceSample is one correlation match's supporting evidence.
type EvidenceSample struct {
	RuleCode        string   `json:"rule_code"`
	Asset           string   `json:"asset"`
	Verdict         string   `json:"verdict"`
	Tactic          string   `json:"tactic"`
	Technique       string   `json:"technique"`
	EvidenceLogs    []string `json:"evidence_logs"`
	MatchedPatterns []string `json:"matched_patterns"`
}

// AgentMetrics records one LLM call's timing/usage/cost, accumulated
// append-only into ScanState.AgentMetrics (see SPEC_FULL §3.2/§9 Open
// Question #2: the reducer is append, consistently, in every invocation
// path).
type AgentMetrics struct {
	Stage        string    `json:"stage"`
	Model        string    `json:"model"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// Threat is a detected suspicious pattern, before risk classification.
type Threat struct {
	ThreatID          string   `json:"threat_id"`
	Type              string   `json:"type"`
	Confidence        float64  `json:"confidence"`
	SourceLogIndices  []int    `json:"source_log_indices"`
	Method            string   `json:"method"` // "rule_based", "ai_detected", "validator-detected"
	Description       string   `json:"description"`
	SourceIP          string   `json:"source_ip,omitempty"`
}

// Risk is the classified urgency of a threat.
type Risk string

const (
	RiskCritical      Risk = "critical"
	RiskHigh          Risk = "high"
	RiskMedium        Risk = "medium"
	RiskLow           Risk = "low"
	RiskInformational Risk = "informational"
)

// ClassifiedThreat is a Threat enriched with risk scoring.
type ClassifiedThreat struct {
	Threat
	Risk                 Risk     `json:"risk"`
	RiskScore            float64  `json:"risk_score"`
	MitreTactic          string   `json:"mitre_tactic,omitempty"`
	MitreTechnique       string   `json:"mitre_technique,omitempty"`
	BusinessImpact       string   `json:"business_impact"`
	AffectedSystems      []string `json:"affected_systems"`
	RemediationPriority  int      `json:"remediation_priority"`
}

// ActionStep is one entry in an IncidentReport's action plan.
type ActionStep struct {
	Description string `json:"description"`
	Urgency     string `json:"urgency"` // immediate, 1hr, 24hr, 1week
	Owner       string `json:"owner"`
}

// IncidentReport is the structured document produced by the Report stage.
type IncidentReport struct {
	ExecutiveSummary        string            `json:"executive_summary"`
	SeverityCounts          map[string]int    `json:"severity_counts"`
	Timeline                string            `json:"timeline"`
	ActionPlan              []ActionStep      `json:"action_plan"`
	StrategicRecommendations []string         `json:"strategic_recommendations"`
	IOCs                     []string         `json:"iocs"`
	Techniques               []string         `json:"techniques"`
	GeneratedAt               time.Time       `json:"generated_at"`
}
