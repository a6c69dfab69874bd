package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwinds/benetl/internal/model"
)

func mkPlan(ein string, planType model.PlanType, carrier, start, end string) model.Plan {
	return model.Plan{
		PlanID:     ein + "-" + string(planType) + "-" + start,
		CompanyEIN: ein,
		PlanType:   planType,
		Carrier:    carrier,
		StartDate:  model.ParseDate(start),
		EndDate:    model.ParseDate(end),
	}
}

func TestDetectGaps_FourMonthGap(t *testing.T) {
	plans := []model.Plan{
		mkPlan("11-111", model.PlanMedical, "Acme Health", "2024-01-01", "2024-03-01"),
		mkPlan("11-111", model.PlanMedical, "Beta Care", "2024-07-01", "2024-09-01"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	gaps := DetectGaps(plans, 90, now)
	require.Len(t, gaps, 1)

	g := gaps[0]
	assert.Equal(t, "11-111", g.CompanyEIN)
	assert.Equal(t, "medical", g.PlanType)
	assert.Equal(t, 122, g.GapDays)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), g.GapStart)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), g.GapEnd)
	assert.Equal(t, "Acme Health", g.PrevCarrier)
	assert.Equal(t, "Beta Care", g.NextCarrier)
}

func TestDetectGaps_ThresholdBoundary(t *testing.T) {
	// Mar 1 to Mar 15 is exactly 14 days apart.
	plans := []model.Plan{
		mkPlan("22-222", model.PlanDental, "A", "2024-01-01", "2024-03-01"),
		mkPlan("22-222", model.PlanDental, "B", "2024-03-15", "2024-06-01"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Len(t, DetectGaps(plans, 14, now), 1)
	assert.Empty(t, DetectGaps(plans, 15, now))
}

func TestDetectGaps_TouchingIntervalsMerge(t *testing.T) {
	// The second plan starts the day after the first ends: no gap.
	plans := []model.Plan{
		mkPlan("33-333", model.PlanVision, "A", "2024-01-01", "2024-03-31"),
		mkPlan("33-333", model.PlanVision, "B", "2024-04-01", "2024-06-30"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, DetectGaps(plans, 1, now))
}

func TestDetectGaps_OverlappingIntervalsMerge(t *testing.T) {
	plans := []model.Plan{
		mkPlan("44-444", model.PlanMedical, "A", "2024-01-01", "2024-06-01"),
		mkPlan("44-444", model.PlanMedical, "B", "2024-03-01", "2024-04-01"),
		mkPlan("44-444", model.PlanMedical, "C", "2024-10-01", "2024-12-01"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	gaps := DetectGaps(plans, 30, now)
	require.Len(t, gaps, 1)
	// The contained interval must not split the island.
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), gaps[0].GapStart)
	assert.Equal(t, "A", gaps[0].PrevCarrier)
	assert.Equal(t, "C", gaps[0].NextCarrier)
}

func TestDetectGaps_PrevCarrierIsLastCovering(t *testing.T) {
	// An overlapping plan under a different carrier extends the island, so
	// the gap's previous carrier is the one whose coverage actually ended.
	plans := []model.Plan{
		mkPlan("48-888", model.PlanMedical, "Alpha", "2024-01-01", "2024-03-01"),
		mkPlan("48-888", model.PlanMedical, "Beta", "2024-02-01", "2024-05-01"),
		mkPlan("48-888", model.PlanMedical, "Gamma", "2024-10-01", "2024-12-01"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	gaps := DetectGaps(plans, 30, now)
	require.Len(t, gaps, 1)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), gaps[0].GapStart)
	assert.Equal(t, "Beta", gaps[0].PrevCarrier)
	assert.Equal(t, "Gamma", gaps[0].NextCarrier)
}

func TestDetectGaps_OpenEndedPlanClosesLaterGaps(t *testing.T) {
	plans := []model.Plan{
		mkPlan("55-555", model.PlanLife, "A", "2024-01-01", ""), // still active
		mkPlan("55-555", model.PlanLife, "B", "2024-09-01", "2024-10-01"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, DetectGaps(plans, 1, now))
}

func TestDetectGaps_GroupsAreIndependent(t *testing.T) {
	// Same company, different plan types: intervals never bridge across types.
	plans := []model.Plan{
		mkPlan("66-666", model.PlanMedical, "A", "2024-01-01", "2024-02-01"),
		mkPlan("66-666", model.PlanDental, "B", "2024-02-15", "2024-12-01"),
		mkPlan("66-666", model.PlanMedical, "A", "2024-08-01", "2024-12-01"),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	gaps := DetectGaps(plans, 30, now)
	require.Len(t, gaps, 1)
	assert.Equal(t, "medical", gaps[0].PlanType)
}

func TestDetectGaps_InvalidStartDateSkipped(t *testing.T) {
	plans := []model.Plan{
		{CompanyEIN: "77-777", PlanType: model.PlanMedical, StartDate: model.ParseDate("not-a-date")},
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, DetectGaps(plans, 1, now))
}
