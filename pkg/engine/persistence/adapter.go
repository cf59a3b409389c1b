// Package persistence defines the contract the core consumes to store
// accounts, assets, findings, and scan logs. The core never talks to a
// database directly — the relational store behind this interface is an
// external collaborator, specified here only as a Go interface so the
// engine can be driven and tested without one.
package persistence

import (
	"context"
	"time"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// AccountStatus is the lifecycle state of a registered customer account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Account is a registered customer cloud project and its scan config.
type Account struct {
	ID          string
	ProjectID   string
	Name        string
	Purpose     string
	Credentials string // opaque, provider-specific; never logged
	Services    []string
	Status      AccountStatus
	LastScanAt  time.Time
}

// AccountUpdate carries the subset of Account fields UpdateAccount may
// change. A nil field is left untouched.
type AccountUpdate struct {
	Name        *string
	Purpose     *string
	Credentials *string
	Services    []string
	Status      *AccountStatus
	LastScanAt  *time.Time
}

// StatusFilter and SeverityFilter narrow ListFindings. An empty value
// applies no filter on that dimension.
type StatusFilter = scan.FindingStatus
type SeverityFilter = scan.Severity

// Adapter is the persistence contract the core consumes. Implementations
// must make Finalize's write — findings, assets, and the scan log —
// commit together or not at all.
type Adapter interface {
	CreateAccount(ctx context.Context, a Account) (Account, error)
	GetAccount(ctx context.Context, id string) (Account, error)
	UpdateAccount(ctx context.Context, id string, fields AccountUpdate) (Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// SaveAssets replaces accountId's asset set wholesale.
	SaveAssets(ctx context.Context, accountID string, assets []scan.Asset) error

	// SaveFindings deduplicates on (rule_code, location): findings already
	// on record for accountID keep their existing status; only genuinely
	// new (rule_code, location) pairs are inserted. Returns the count of
	// newly inserted findings.
	SaveFindings(ctx context.Context, accountID string, findings []scan.Finding) (insertedCount int, err error)

	// ListFindings returns accountID's findings ordered by severity
	// (critical, high, medium, low) then discovery timestamp descending.
	// A zero-value filter applies no constraint on that dimension.
	ListFindings(ctx context.Context, accountID string, status StatusFilter, severity SeverityFilter) ([]scan.Finding, error)

	CreateScanLog(ctx context.Context, log scan.ScanLog) (id string, err error)
	CompleteScanLog(ctx context.Context, id string, status scan.ScanLogStatus, summary string, entries []scan.ScanLogEntry) error
}
