package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/internal/store"
)

type stubStore struct {
	store.Store

	employees []model.EnrichedEmployee
	gaps      []analytics.Gap
	spikes    []analytics.Spike
	roster    []analytics.Mismatch
}

func (s *stubStore) Employees(context.Context) ([]model.EnrichedEmployee, error) {
	return s.employees, nil
}

func (s *stubStore) Gaps(context.Context) ([]analytics.Gap, error)       { return s.gaps, nil }
func (s *stubStore) Spikes(context.Context) ([]analytics.Spike, error)   { return s.spikes, nil }
func (s *stubStore) Roster(context.Context) ([]analytics.Mismatch, error) { return s.roster, nil }

func TestExportEmployees(t *testing.T) {
	dir := t.TempDir()
	st := &stubStore{employees: []model.EnrichedEmployee{
		{
			Employee: model.Employee{
				PersonID:  "P1",
				FullName:  "Ann Lee",
				Title:     "Analyst",
				Email:     "ann@acme.com",
				StartDate: model.DateOf(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
			},
			InferredEIN: "11-111",
		},
		{
			Employee: model.Employee{
				PersonID:   "P2",
				FullName:   "Bob Ray",
				Email:      "bob@globex.io",
				CompanyEIN: "22-222",
				StartDate:  model.DateOf(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
			},
		},
	}}

	paths, err := New(st, dir).Employees(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	data, err := os.ReadFile(filepath.Join(dir, "employees_clean.csv"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "person_id,full_name,title,email,company_ein,inferred_ein,effective_ein,start_date,notes")
	// P1 has no source EIN, so the effective column carries the inferred one.
	assert.Contains(t, content, "P1,Ann Lee,Analyst,ann@acme.com,,11-111,11-111,2024-01-15,")
	assert.Contains(t, content, "P2,Bob Ray,,bob@globex.io,22-222,,22-222,2024-03-01,")

	info, err := os.Stat(filepath.Join(dir, "employees_clean.xlsx"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExportEmployees_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "outputs")
	st := &stubStore{}

	_, err := New(st, dir).Employees(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "employees_clean.csv"))
	assert.NoError(t, err)
}

func TestExportAnalysis(t *testing.T) {
	dir := t.TempDir()
	st := &stubStore{
		gaps: []analytics.Gap{{
			CompanyEIN:  "11-111",
			PlanType:    "medical",
			GapStart:    time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			GapEnd:      time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
			GapDays:     120,
			PrevCarrier: "Acme Health",
			NextCarrier: "Globex Care",
		}},
		spikes: []analytics.Spike{{
			CompanyEIN:   "11-111",
			BucketStart:  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			BucketEnd:    time.Date(2024, 6, 29, 0, 0, 0, 0, time.UTC),
			PrevCost:     1000,
			CurrCost:     3050,
			PctChange:    205,
			ZeroBaseline: false,
		}},
		roster: []analytics.Mismatch{{
			CompanyEIN: "11-111",
			Expected:   50,
			Actual:     53,
			Delta:      3,
			PctDiff:    6,
			Severity:   "low",
		}},
	}

	paths, err := New(st, dir).Analysis(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	gaps, err := os.ReadFile(filepath.Join(dir, "plan_gaps.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(gaps), "11-111,medical,2024-03-02,2024-06-30,120,Acme Health,Globex Care")

	spikes, err := os.ReadFile(filepath.Join(dir, "cost_spikes.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(spikes), "11-111,2024-04-01,2024-06-29,1000,3050,205,false")

	roster, err := os.ReadFile(filepath.Join(dir, "roster_mismatch.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(roster), "11-111,50,53,3,6,low")
}
