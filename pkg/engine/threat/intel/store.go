// Package intel provides Classify with short threat-intelligence context
// pulled from a keyword-indexed in-memory store. Nothing in the example
// corpus offers an embeddings or vector-DB client, so this stands in for
// the Pinecone-backed lookup the threat pipeline's original implementation
// used — same query shape (threat type + description + source IP ->
// ranked snippets), no network calls.
package intel

import (
	"sort"
	"strings"
)

// Entry is one threat-intelligence record.
type Entry struct {
	ID        string
	Text      string
	Severity  string
	CVSS      string
	Tactic    string
	Technique string
	Keywords  []string
}

// Store is a read-only, keyword-indexed collection of Entries.
type Store struct {
	entries []Entry
}

// NewStore builds a Store from entries.
func NewStore(entries []Entry) *Store {
	return &Store{entries: entries}
}

type scored struct {
	entry Entry
	score int
}

// Query returns up to topK entries ranked by keyword overlap with query,
// most relevant first. Entries with zero overlap are excluded.
func (s *Store) Query(query string, topK int) []Entry {
	if s == nil {
		return nil
	}
	q := strings.ToLower(query)

	var candidates []scored
	for _, e := range s.entries {
		score := 0
		for _, kw := range e.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{entry: e, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]Entry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out
}

// FormatContext queries the store for threatType/description/sourceIP and
// formats the top matches as Classify prompt context. Returns "" if the
// store is nil or nothing matched.
func FormatContext(s *Store, threatType, description, sourceIP string) string {
	if s == nil {
		return ""
	}
	query := threatType + ": " + description
	if sourceIP != "" {
		query += " (source IP: " + sourceIP + ")"
	}

	matches := s.Query(query, 3)
	if len(matches) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Relevant Threat Intelligence\n")
	for _, m := range matches {
		sb.WriteString("- [" + m.ID + "]: " + m.Text + "\n")
		if m.Severity != "" {
			sb.WriteString("  Severity: " + m.Severity)
			if m.CVSS != "" {
				sb.WriteString(" | CVSS: " + m.CVSS)
			}
			sb.WriteString("\n")
		}
		if m.Technique != "" {
			sb.WriteString("  MITRE: " + m.Technique + " (" + m.Tactic + ")\n")
		}
	}
	return sb.String()
}
