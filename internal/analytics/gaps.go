// Package analytics implements the read-only analytical queries over the
// persisted dataset: coverage gap detection, claims cost spike detection,
// and roster reconciliation. Each algorithm sorts its group once and then
// runs a single linear scan.
package analytics

import (
	"sort"
	"time"

	"github.com/hillwinds/benetl/internal/model"
)

// Gap is one uncovered span between two islands of continuous coverage for
// a company and plan type.
type Gap struct {
	CompanyEIN  string    `json:"company_ein"`
	PlanType    string    `json:"plan_type"`
	GapStart    time.Time `json:"gap_start"`
	GapEnd      time.Time `json:"gap_end"`
	GapDays     int       `json:"gap_days"`
	PrevCarrier string    `json:"prev_carrier,omitempty"`
	NextCarrier string    `json:"next_carrier,omitempty"`
}

type interval struct {
	start   time.Time
	end     time.Time
	carrier string
}

// DetectGaps merges each group's coverage intervals into islands and reports
// the spans between islands that are at least thresholdDays long. An
// open-ended plan extends to now, closing every later gap in its group.
// Intervals with equal start dates are ordered by end date ascending so the
// merge is deterministic.
func DetectGaps(plans []model.Plan, thresholdDays int, now time.Time) []Gap {
	type groupKey struct {
		ein      string
		planType string
	}

	groups := make(map[groupKey][]interval)
	for _, p := range plans {
		if !p.StartDate.Valid {
			continue
		}
		end := now
		if p.EndDate.Valid {
			end = p.EndDate.Time
		}
		key := groupKey{ein: p.CompanyEIN, planType: string(p.PlanType)}
		groups[key] = append(groups[key], interval{
			start:   p.StartDate.Time,
			end:     end,
			carrier: p.Carrier,
		})
	}

	var keys []groupKey
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ein != keys[j].ein {
			return keys[i].ein < keys[j].ein
		}
		return keys[i].planType < keys[j].planType
	})

	var gaps []Gap
	for _, key := range keys {
		ivs := groups[key]
		sort.Slice(ivs, func(i, j int) bool {
			if !ivs[i].start.Equal(ivs[j].start) {
				return ivs[i].start.Before(ivs[j].start)
			}
			return ivs[i].end.Before(ivs[j].end)
		})

		island := ivs[0]
		for _, iv := range ivs[1:] {
			// Touching intervals (next starts the day after the island
			// ends) continue the island.
			if !iv.start.After(island.end.AddDate(0, 0, 1)) {
				// The carrier follows the interval that owns the island's
				// end, so PrevCarrier names whoever covered up to the gap.
				if iv.end.After(island.end) {
					island.end = iv.end
					island.carrier = iv.carrier
				}
				continue
			}

			gapDays := daysBetween(island.end, iv.start)
			if gapDays >= thresholdDays {
				gaps = append(gaps, Gap{
					CompanyEIN:  key.ein,
					PlanType:    key.planType,
					GapStart:    island.end.AddDate(0, 0, 1),
					GapEnd:      iv.start.AddDate(0, 0, -1),
					GapDays:     gapDays,
					PrevCarrier: island.carrier,
					NextCarrier: iv.carrier,
				})
			}
			island = iv
		}
	}

	return gaps
}

// daysBetween returns the whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
