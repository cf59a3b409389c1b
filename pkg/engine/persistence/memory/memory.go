// Package memory is an in-memory persistence.Adapter, suitable for tests
// and for running the engine without a real relational store wired up.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aegis-scan/aegis/pkg/engine/persistence"
	"github.com/aegis-scan/aegis/pkg/scan"
)

type findingKey struct {
	ruleCode string
	location string
}

type accountRecord struct {
	account  persistence.Account
	assets   []scan.Asset
	findings map[findingKey]scan.Finding
	logs     map[string]scan.ScanLog
}

// Store is a mutex-guarded in-memory persistence.Adapter.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*accountRecord
	nextID   int
}

// New returns an empty Store.
func New() *Store {
	return &Store{accounts: map[string]*accountRecord{}}
}

var _ persistence.Adapter = (*Store)(nil)

func (s *Store) genID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Store) CreateAccount(ctx context.Context, a persistence.Account) (persistence.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.genID("acct")
	}
	if _, exists := s.accounts[a.ID]; exists {
		return persistence.Account{}, fmt.Errorf("persistence/memory: account %s already exists", a.ID)
	}
	s.accounts[a.ID] = &accountRecord{
		account:  a,
		findings: map[findingKey]scan.Finding{},
		logs:     map[string]scan.ScanLog{},
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (persistence.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[id]
	if !ok {
		return persistence.Account{}, fmt.Errorf("persistence/memory: account %s not found", id)
	}
	return rec.account, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, fields persistence.AccountUpdate) (persistence.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[id]
	if !ok {
		return persistence.Account{}, fmt.Errorf("persistence/memory: account %s not found", id)
	}
	if fields.Name != nil {
		rec.account.Name = *fields.Name
	}
	if fields.Purpose != nil {
		rec.account.Purpose = *fields.Purpose
	}
	if fields.Credentials != nil {
		rec.account.Credentials = *fields.Credentials
	}
	if fields.Services != nil {
		rec.account.Services = fields.Services
	}
	if fields.Status != nil {
		rec.account.Status = *fields.Status
	}
	if fields.LastScanAt != nil {
		rec.account.LastScanAt = *fields.LastScanAt
	}
	return rec.account, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("persistence/memory: account %s not found", id)
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) SaveAssets(ctx context.Context, accountID string, assets []scan.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("persistence/memory: account %s not found", accountID)
	}
	rec.assets = append([]scan.Asset{}, assets...)
	return nil
}

func (s *Store) SaveFindings(ctx context.Context, accountID string, findings []scan.Finding) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("persistence/memory: account %s not found", accountID)
	}

	inserted := 0
	for _, f := range findings {
		key := findingKey{ruleCode: f.RuleCode, location: f.Location}
		if _, exists := rec.findings[key]; exists {
			continue
		}
		rec.findings[key] = f
		inserted++
	}
	return inserted, nil
}

func (s *Store) ListFindings(ctx context.Context, accountID string, status persistence.StatusFilter, severity persistence.SeverityFilter) ([]scan.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("persistence/memory: account %s not found", accountID)
	}

	var out []scan.Finding
	for _, f := range rec.findings {
		if status != "" && f.Status != status {
			continue
		}
		if severity != "" && f.Severity != severity {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := scan.SeverityRank(out[i].Severity), scan.SeverityRank(out[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return out[i].DiscoveredAt.After(out[j].DiscoveredAt)
	})
	return out, nil
}

func (s *Store) CreateScanLog(ctx context.Context, log scan.ScanLog) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[log.AccountID]
	if !ok {
		return "", fmt.Errorf("persistence/memory: account %s not found", log.AccountID)
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	id := s.genID("scanlog")
	rec.logs[id] = log
	return id, nil
}

func (s *Store) CompleteScanLog(ctx context.Context, id string, status scan.ScanLogStatus, summary string, entries []scan.ScanLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.accounts {
		log, ok := rec.logs[id]
		if !ok {
			continue
		}
		log.Status = status
		log.Summary = summary
		log.Entries = entries
		log.EndedAt = time.Now()
		rec.logs[id] = log
		return nil
	}
	return fmt.Errorf("persistence/memory: scan log %s not found", id)
}
