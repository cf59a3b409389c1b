package scan

import "time"

// ScanType records whether public assets were scanned ("full") or the
// scan only had log-based visibility ("cloud-logging-only").
type ScanType string

const (
	ScanTypeFull             ScanType = "full"
	ScanTypeCloudLoggingOnly ScanType = "cloud-logging-only"
)

// Credential is the service-account-style credential handed to Discovery.
type Credential struct {
	ProjectID string
	JSON      string // opaque credential material, never logged
}

// State is the ScanState object threaded through the outer graph. Fields
// are grouped by the stage that writes them; see StateDelta in package
// scangraph: its Append* fields append and its other fields overwrite. Once a field is written by a stage, downstream stages may
// read it but must not overwrite it directly — mutation happens only
// through the runtime's reducer application.
type State struct {
	// --- input ---
	AccountID         string
	ProjectID         string
	Credential        Credential
	RequestedServices []string

	// --- discovery output ---
	Assets           []Asset
	InitialFindings  []Finding
	RawLogLines      []string
	ScanLog          ScanLog
	CredentialProbes []CredentialServiceProbe

	// --- router output ---
	PublicAssets  []Asset
	PrivateAssets []Asset

	// --- worker output (append reducer) ---
	ScanIssues    []Finding
	LogLines      []string
	ScannedAssets []ScannedAssetRecord

	// --- aggregate output ---
	ScanType         ScanType
	PublicScanCount  int
	PrivateScanCount int

	// --- correlation output ---
	CorrelatedFindings []Finding
	ActiveExploitCount int
	Evidence           []EvidenceSample

	// --- threat pipeline output ---
	ParsedLogs        []LogLine
	Threats           []Threat
	ClassifiedThreats []ClassifiedThreat
	Report            *IncidentReport
	AgentMetrics      []AgentMetrics // append reducer, always (SPEC_FULL §9 #2)

	// --- progress (scalar, last-write-wins) ---
	Status           string
	TotalAssets      int
	AssetsScanned    int

	// --- HITL hook point, never populated by the core graph (SPEC_FULL §9 #3) ---
	HITLDecision *HITLDecision

	// --- error channel ---
	Err       error
	Partial   bool

	StartedAt time.Time
	EndedAt   time.Time
}

// HITLDecision is the shape a dashboard surface would inject to resolve
// a human-in-the-loop review; the core graph never waits for one.
type HITLDecision struct {
	Approved        bool
	RejectedThreats []string
}

// Clone returns a shallow copy of s suitable as a base for a node's
// projection — slices are not deep-copied since projections are
// read-only views plus write-only append channels (see package
// scangraph).
func (s State) Clone() State {
	return s
}
