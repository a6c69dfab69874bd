package model

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunMetrics is one append-only ledger entry per pipeline run. Exactly one
// entry is written per run, successful or not.
type RunMetrics struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	FullRefresh     bool      `json:"full_refresh"`
	RowsRead        int       `json:"rows_read"`
	RowsCleaned     int       `json:"rows_cleaned"`
	RowsValid       int       `json:"rows_valid"`
	RowsFlagged     int       `json:"rows_flagged"`
	RowsEnriched    int       `json:"rows_enriched"`
	RowsWritten     int       `json:"rows_written"`
	DuplicateClaims int       `json:"duplicate_claims"`
	EINsInferred    int       `json:"eins_inferred"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	ElapsedMS       int64     `json:"elapsed_ms"`
	Error           string    `json:"error,omitempty"`
}
