package model

import "time"

// Severity classifies how a validation rule failure affects a record.
// Hard failures divert the record to the audit output; soft failures are
// audited but the record still continues downstream.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// ValidationError is one append-only audit row: the full original record,
// the rule(s) it violated, and when it was caught. Rows are never mutated
// or deleted.
type ValidationError struct {
	Source     string    `json:"source"`
	RecordKey  string    `json:"record_key"`
	Rules      []string  `json:"rules"`
	Reason     string    `json:"reason"`
	Severity   Severity  `json:"severity"`
	Record     string    `json:"record"`
	DetectedAt time.Time `json:"detected_at"`
}
