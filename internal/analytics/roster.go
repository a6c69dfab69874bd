package analytics

import (
	"math"
	"sort"
)

// Mismatch is one company's roster comparison: actual distinct employees in
// the persisted dataset versus the expected headcount reference. A company
// present on only one side reports the missing side as zero.
type Mismatch struct {
	CompanyEIN string  `json:"company_ein"`
	Expected   int     `json:"expected"`
	Actual     int     `json:"actual"`
	Delta      int     `json:"delta"` // actual - expected
	PctDiff    float64 `json:"pct_diff"`
	Severity   string  `json:"severity"`
}

// CompareRoster computes the per-company count comparison over the union of
// both sides, ordered by percentage difference descending.
func CompareRoster(actual map[string]int, expected map[string]int) []Mismatch {
	eins := make(map[string]bool, len(actual)+len(expected))
	for ein := range actual {
		eins[ein] = true
	}
	for ein := range expected {
		eins[ein] = true
	}

	out := make([]Mismatch, 0, len(eins))
	for ein := range eins {
		m := Mismatch{
			CompanyEIN: ein,
			Expected:   expected[ein],
			Actual:     actual[ein],
		}
		m.Delta = m.Actual - m.Expected
		if m.Expected > 0 {
			m.PctDiff = math.Abs(float64(m.Delta)) / float64(m.Expected) * 100
		} else if m.Actual > 0 {
			// No expectation on record but employees exist: maximal surprise.
			m.PctDiff = 100
		}
		m.Severity = severity(m.PctDiff)
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PctDiff != out[j].PctDiff {
			return out[i].PctDiff > out[j].PctDiff
		}
		return out[i].CompanyEIN < out[j].CompanyEIN
	})
	return out
}

func severity(pctDiff float64) string {
	switch {
	case pctDiff > 100:
		return "critical"
	case pctDiff > 50:
		return "high"
	case pctDiff > 20:
		return "medium"
	default:
		return "low"
	}
}
