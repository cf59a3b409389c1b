// Package rules implements the threat pipeline's rule-based detection
// layer: five deterministic detectors run over parsed log lines before
// the LLM-based detection layer looks for anything they missed.
package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aegis-scan/aegis/pkg/scan"
)

const methodRuleBased = "rule_based"

// RunAll runs every detector over logs, in order, and concatenates their
// results. A log line may contribute to more than one detector's threat.
func RunAll(logs []scan.LogLine) []scan.Threat {
	var threats []scan.Threat
	threats = append(threats, DetectBruteForce(logs)...)
	threats = append(threats, DetectPortScan(logs)...)
	threats = append(threats, DetectPrivilegeEscalation(logs)...)
	threats = append(threats, DetectDataExfiltration(logs)...)
	threats = append(threats, DetectLateralMovement(logs)...)
	return threats
}

// DetectBruteForce flags any source IP responsible for 5 or more
// failed-auth log lines. Confidence grows with the count, capped at 0.99.
func DetectBruteForce(logs []scan.LogLine) []scan.Threat {
	bySourceIP := map[string][]int{}
	for _, l := range logs {
		if !l.IsValid || l.EventType != scan.EventFailedAuth || l.SourceIP == "" {
			continue
		}
		bySourceIP[l.SourceIP] = append(bySourceIP[l.SourceIP], l.Index)
	}

	var threats []scan.Threat
	for ip, indices := range bySourceIP {
		if len(indices) < 5 {
			continue
		}
		confidence := math.Min(0.5+float64(len(indices))*0.05, 0.99)
		threats = append(threats, scan.Threat{
			ThreatID:         fmt.Sprintf("RULE-BRUTE-%s", strings.ReplaceAll(ip, ".", "_")),
			Type:             "brute_force",
			Confidence:       confidence,
			SourceLogIndices: indices,
			Method:           methodRuleBased,
			Description:      fmt.Sprintf("%d failed authentication attempts from %s", len(indices), ip),
			SourceIP:         ip,
		})
	}
	return threats
}

var portPattern = regexp.MustCompile(`(?i)port[:\s]+(\d+)`)

// DetectPortScan flags any source IP touching 10 or more distinct ports
// across the log set, extracted via a "port: N" / "port N" text pattern.
func DetectPortScan(logs []scan.LogLine) []scan.Threat {
	portsBySourceIP := map[string]map[string]bool{}
	indicesBySourceIP := map[string][]int{}
	for _, l := range logs {
		if !l.IsValid || l.SourceIP == "" {
			continue
		}
		m := portPattern.FindStringSubmatch(l.Raw + " " + l.Details)
		if m == nil {
			continue
		}
		if portsBySourceIP[l.SourceIP] == nil {
			portsBySourceIP[l.SourceIP] = map[string]bool{}
		}
		portsBySourceIP[l.SourceIP][m[1]] = true
		indicesBySourceIP[l.SourceIP] = append(indicesBySourceIP[l.SourceIP], l.Index)
	}

	var threats []scan.Threat
	for ip, ports := range portsBySourceIP {
		if len(ports) < 10 {
			continue
		}
		confidence := math.Min(0.6+float64(len(ports))*0.03, 0.95)
		threats = append(threats, scan.Threat{
			ThreatID:         fmt.Sprintf("RULE-SCAN-%s", strings.ReplaceAll(ip, ".", "_")),
			Type:             "port_scan",
			Confidence:       confidence,
			SourceLogIndices: indicesBySourceIP[ip],
			Method:           methodRuleBased,
			Description:      fmt.Sprintf("%d distinct ports probed from %s", len(ports), ip),
			SourceIP:         ip,
		})
	}
	return threats
}

var privilegeEscalationEventTypes = map[scan.EventType]bool{
	scan.EventPrivilegeEscalation: true,
	scan.EventSudo:                true,
	scan.EventSu:                  true,
}

// DetectPrivilegeEscalation aggregates every log line that names a sudo/su
// event, source, or raw "USER=root" marker into a single threat.
func DetectPrivilegeEscalation(logs []scan.LogLine) []scan.Threat {
	var indices []int
	for _, l := range logs {
		if !l.IsValid {
			continue
		}
		source := strings.ToLower(l.Source)
		if privilegeEscalationEventTypes[l.EventType] ||
			source == "sudo" || source == "su" ||
			strings.Contains(l.Raw, "USER=root") {
			indices = append(indices, l.Index)
		}
	}
	if len(indices) == 0 {
		return nil
	}
	return []scan.Threat{{
		ThreatID:         "RULE-PRIVESC-001",
		Type:             "privilege_escalation",
		Confidence:       0.85,
		SourceLogIndices: indices,
		Method:           methodRuleBased,
		Description:      fmt.Sprintf("%d privilege-escalation indicators (sudo/su activity)", len(indices)),
	}}
}

var transferSizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(GB|MB|KB)`)

// DetectDataExfiltration sums every transfer-size marker across the log
// set (normalized to MB) and flags a single aggregate threat once the
// total reaches 100MB.
func DetectDataExfiltration(logs []scan.LogLine) []scan.Threat {
	var totalMB float64
	var indices []int
	for _, l := range logs {
		if !l.IsValid {
			continue
		}
		matches := transferSizePattern.FindAllStringSubmatch(l.Raw+" "+l.Details, -1)
		if matches == nil {
			continue
		}
		for _, m := range matches {
			size, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			switch strings.ToUpper(m[2]) {
			case "GB":
				totalMB += size * 1024
			case "MB":
				totalMB += size
			case "KB":
				totalMB += size / 1024
			}
		}
		indices = append(indices, l.Index)
	}
	if totalMB < 100 {
		return nil
	}
	confidence := math.Min(0.7+totalMB/1000*0.1, 0.95)
	return []scan.Threat{{
		ThreatID:         "RULE-EXFIL-001",
		Type:             "data_exfiltration",
		Confidence:       confidence,
		SourceLogIndices: indices,
		Method:           methodRuleBased,
		Description:      fmt.Sprintf("aggregate transfer size %.1fMB across %d log lines", totalMB, len(indices)),
	}}
}

var internalPrefixes = []string{"10.", "192.168."}

func isInternalIP(ip string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	if strings.HasPrefix(ip, "172.") {
		parts := strings.SplitN(ip, ".", 3)
		if len(parts) >= 2 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n >= 16 && n <= 31 {
				return true
			}
		}
	}
	return false
}

var lateralMovementEventTypes = map[scan.EventType]bool{
	scan.EventConnection: true,
	scan.EventSSH:        true,
	scan.EventRDP:        true,
	scan.EventSMB:        true,
}

// DetectLateralMovement aggregates every internal-to-internal connection,
// ssh, rdp, or smb log line into a single threat.
func DetectLateralMovement(logs []scan.LogLine) []scan.Threat {
	var indices []int
	for _, l := range logs {
		if !l.IsValid || !lateralMovementEventTypes[l.EventType] {
			continue
		}
		if l.SourceIP == "" || l.DestIP == "" {
			continue
		}
		if isInternalIP(l.SourceIP) && isInternalIP(l.DestIP) {
			indices = append(indices, l.Index)
		}
	}
	if len(indices) == 0 {
		return nil
	}
	return []scan.Threat{{
		ThreatID:         "RULE-LATERAL-001",
		Type:             "lateral_movement",
		Confidence:       0.75,
		SourceLogIndices: indices,
		Method:           methodRuleBased,
		Description:      fmt.Sprintf("%d internal-to-internal connection/ssh/rdp/smb events", len(indices)),
	}}
}
