// Package store persists the cleaned dataset, the audit trail, and the
// analytical result tables behind a driver-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/model"
)

// Batch is one run's worth of enriched output, merged atomically together
// with the watermark advance: either everything commits or the watermark
// stays at its pre-run value and the next run reprocesses the same window.
type Batch struct {
	RunID      string
	Employees  []model.EnrichedEmployee
	Plans      []model.Plan
	Claims     []model.Claim
	Watermarks map[string]time.Time // source name -> new position
}

// MergeResult reports what a merge wrote.
type MergeResult struct {
	EmployeesWritten int
	PlansWritten     int
	ClaimsWritten    int
}

// Store is the persistence interface for the pipeline and the analytical
// query layer.
type Store interface {
	// Watermark returns the stored cursor for a source, or nil if the
	// source has never been processed.
	Watermark(ctx context.Context, src string) (*time.Time, error)

	// MergeBatch upserts the batch by natural key (last write wins within
	// the batch) and advances the watermarks in the same transaction.
	MergeBatch(ctx context.Context, batch *Batch) (*MergeResult, error)

	// Audit trail: append-only, never mutated.
	AppendValidationErrors(ctx context.Context, errs []model.ValidationError) error

	// Run ledger: exactly one entry per run.
	AppendRunMetrics(ctx context.Context, m *model.RunMetrics) error
	ListRunMetrics(ctx context.Context, limit int) ([]model.RunMetrics, error)

	// Reads for export and the analytical query layer.
	Employees(ctx context.Context) ([]model.EnrichedEmployee, error)
	Plans(ctx context.Context) ([]model.Plan, error)
	Claims(ctx context.Context) ([]model.Claim, error)
	EmployeeCounts(ctx context.Context) (map[string]int, error)

	// Analytical result tables, replaced wholesale on each analysis run.
	ReplaceGaps(ctx context.Context, gaps []analytics.Gap) error
	ReplaceSpikes(ctx context.Context, spikes []analytics.Spike) error
	ReplaceRoster(ctx context.Context, mismatches []analytics.Mismatch) error
	Gaps(ctx context.Context) ([]analytics.Gap, error)
	Spikes(ctx context.Context) ([]analytics.Spike, error)
	Roster(ctx context.Context) ([]analytics.Mismatch, error)

	// RebuildViews (re)creates the v_* views over the analysis tables.
	RebuildViews(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
