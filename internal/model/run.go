package model

import "time"

// RunMode describes which extraction path produced a batch.
type RunMode string

const (
	RunModeFull RunMode = "full" // every week column in the source
	RunModeWeek RunMode = "week" // a single target week
	RunModeAPI  RunMode = "api"  // records posted to the HTTP service
)

// Run is the audit record of one extraction run against a ledger.
type Run struct {
	ID         string    `json:"id"`
	LedgerID   string    `json:"ledger_id"`
	Source     string    `json:"source"`
	Mode       RunMode   `json:"mode"`
	Weeks      []string  `json:"weeks"`
	BatchSize  int       `json:"batch_size"`
	LedgerSize int       `json:"ledger_size"`
	Replaced   int       `json:"replaced"`
	DryRun     bool      `json:"dry_run"`
	CreatedAt  time.Time `json:"created_at"`
}
