package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/config"
	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/internal/store"
)

// fakeStore records pipeline writes in memory.
type fakeStore struct {
	watermarks map[string]time.Time
	batches    []*store.Batch
	audit      []model.ValidationError
	metrics    []model.RunMetrics
}

func newFakeStore() *fakeStore {
	return &fakeStore{watermarks: make(map[string]time.Time)}
}

func (f *fakeStore) Watermark(_ context.Context, src string) (*time.Time, error) {
	if t, ok := f.watermarks[src]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeStore) MergeBatch(_ context.Context, b *store.Batch) (*store.MergeResult, error) {
	f.batches = append(f.batches, b)
	for src, pos := range b.Watermarks {
		f.watermarks[src] = pos
	}
	return &store.MergeResult{
		EmployeesWritten: len(b.Employees),
		PlansWritten:     len(b.Plans),
		ClaimsWritten:    len(b.Claims),
	}, nil
}

func (f *fakeStore) AppendValidationErrors(_ context.Context, errs []model.ValidationError) error {
	f.audit = append(f.audit, errs...)
	return nil
}

func (f *fakeStore) AppendRunMetrics(_ context.Context, m *model.RunMetrics) error {
	f.metrics = append(f.metrics, *m)
	return nil
}

func (f *fakeStore) ListRunMetrics(context.Context, int) ([]model.RunMetrics, error) {
	return f.metrics, nil
}
func (f *fakeStore) Employees(context.Context) ([]model.EnrichedEmployee, error) { return nil, nil }
func (f *fakeStore) Plans(context.Context) ([]model.Plan, error)                 { return nil, nil }
func (f *fakeStore) Claims(context.Context) ([]model.Claim, error)               { return nil, nil }
func (f *fakeStore) EmployeeCounts(context.Context) (map[string]int, error)      { return nil, nil }
func (f *fakeStore) ReplaceGaps(context.Context, []analytics.Gap) error          { return nil }
func (f *fakeStore) ReplaceSpikes(context.Context, []analytics.Spike) error      { return nil }
func (f *fakeStore) ReplaceRoster(context.Context, []analytics.Mismatch) error   { return nil }
func (f *fakeStore) Gaps(context.Context) ([]analytics.Gap, error)               { return nil, nil }
func (f *fakeStore) Spikes(context.Context) ([]analytics.Spike, error)           { return nil, nil }
func (f *fakeStore) Roster(context.Context) ([]analytics.Mismatch, error)        { return nil, nil }
func (f *fakeStore) RebuildViews(context.Context) error                          { return nil }
func (f *fakeStore) Migrate(context.Context) error                               { return nil }
func (f *fakeStore) Close() error                                                { return nil }

func writeFeedFiles(t *testing.T) config.DataConfig {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	return config.DataConfig{
		EmployeesFile: write("employees_raw.csv",
			"person_id,full_name,title,email,company_ein,start_date,notes\n"+
				"P1, john smith ,Engineer, John@EXAMPLE.com ,11-111,2024-01-15,\n"+
				"P2,jane doe,,jane@acme.com,,2024-03-01,\n"+
				"P3,bad row,,not-an-email,,2024-02-01,\n"),
		PlansFile: write("plans_raw.csv",
			"plan_id,company_ein,plan_type,carrier_name,start_date,end_date\n"+
				"PL1,11-111,Medical,Acme Health,2024-01-01,2024-12-31\n"),
		ClaimsFile: write("claims_raw.csv",
			"claim_id,person_id,company_ein,service_date,amount,claim_type\n"+
				"C1,P1,11-111,2024-02-10,150.00,medical\n"+
				"C1,P1,11-111,2024-02-11,150.00,medical\n"+
				"C2,P2,11-111,2024-05-01,900.00,dental\n"),
		CompanyLookupFile: write("company_lookup.json", `{"acme.com": "22-222"}`),
	}
}

func testConfig(data config.DataConfig) *config.Config {
	return &config.Config{
		Data: data,
		Pipeline: config.PipelineConfig{
			MaxConcurrentLookups: 4,
		},
	}
}

func TestRunner_FullRun(t *testing.T) {
	st := newFakeStore()
	cfg := testConfig(writeFeedFiles(t))
	runner := NewRunner(st, cfg, &stubDirectory{})

	metrics, err := runner.Run(context.Background(), RunOpts{FullRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, metrics.Status)
	assert.Equal(t, 7, metrics.RowsRead)
	assert.Equal(t, 5, metrics.RowsValid)   // 2 employees + 1 plan + 2 claims
	assert.Equal(t, 2, metrics.RowsFlagged) // bad email + duplicate claim
	assert.Equal(t, 1, metrics.DuplicateClaims)
	assert.Equal(t, 1, metrics.EINsInferred)
	assert.Equal(t, 5, metrics.RowsWritten)

	require.Len(t, st.batches, 1)
	batch := st.batches[0]
	assert.Len(t, batch.Employees, 2)
	assert.Len(t, batch.Plans, 1)
	assert.Len(t, batch.Claims, 2)

	// Watermarks advance to the max timestamp observed across all scanned
	// rows, not just the selected ones.
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), batch.Watermarks["employees"])
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), batch.Watermarks["claims"])

	// Exactly one run ledger entry.
	require.Len(t, st.metrics, 1)
	assert.Equal(t, metrics.RunID, st.metrics[0].RunID)

	// Audit trail: P3's bad email (hard), P2's missing title (soft), and
	// the duplicate claim.
	assert.Len(t, st.audit, 3)
}

func TestRunner_IncrementalSkipsOldRows(t *testing.T) {
	st := newFakeStore()
	st.watermarks["employees"] = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	st.watermarks["claims"] = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	cfg := testConfig(writeFeedFiles(t))
	runner := NewRunner(st, cfg, &stubDirectory{})

	metrics, err := runner.Run(context.Background(), RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, metrics.Status)

	// The run's input is what survives the watermark filter: P2, PL1, and
	// C2. The ledger must reconcile against that, not the file row counts.
	assert.Equal(t, 3, metrics.RowsRead)
	assert.Equal(t, metrics.RowsRead, metrics.RowsCleaned)
	assert.Equal(t, metrics.RowsRead, metrics.RowsValid+metrics.RowsFlagged)

	require.Len(t, st.batches, 1)
	batch := st.batches[0]
	// Only P2 (2024-03-01) is past the employee watermark; P3 is filtered
	// before validation so the bad email is not re-flagged.
	require.Len(t, batch.Employees, 1)
	assert.Equal(t, "P2", batch.Employees[0].PersonID)
	// Only C2 (2024-05-01) is past the claims watermark.
	require.Len(t, batch.Claims, 1)
	assert.Equal(t, "C2", batch.Claims[0].ClaimID)
	// Plans carry no timestamp and are always merged in full.
	assert.Len(t, batch.Plans, 1)
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	st := newFakeStore()
	cfg := testConfig(writeFeedFiles(t))
	runner := NewRunner(st, cfg, &stubDirectory{})

	_, err := runner.Run(context.Background(), RunOpts{FullRefresh: true})
	require.NoError(t, err)

	// Second incremental run: every row is at or before the stored
	// watermark, so nothing new is selected.
	metrics, err := runner.Run(context.Background(), RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, metrics.Status)

	require.Len(t, st.batches, 2)
	assert.Empty(t, st.batches[1].Employees)
	assert.Empty(t, st.batches[1].Claims)
	require.Len(t, st.metrics, 2)
}

func TestRunner_FailureStillWritesMetrics(t *testing.T) {
	st := newFakeStore()
	cfg := testConfig(config.DataConfig{
		EmployeesFile: "/nonexistent/employees.csv",
	})
	runner := NewRunner(st, cfg, &stubDirectory{})

	metrics, err := runner.Run(context.Background(), RunOpts{})
	require.Error(t, err)

	assert.Equal(t, model.RunStatusFailed, metrics.Status)
	assert.NotEmpty(t, metrics.Error)
	require.Len(t, st.metrics, 1)
	assert.Equal(t, model.RunStatusFailed, st.metrics[0].Status)
	assert.Empty(t, st.batches)
}
