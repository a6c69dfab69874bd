package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/hillwinds/benetl/internal/model"
)

// Spike is a pair of adjacent cost buckets whose increase crossed the
// threshold. ZeroBaseline marks the zero-to-positive case, which is always
// a spike and has no meaningful percentage.
type Spike struct {
	CompanyEIN   string    `json:"company_ein"`
	BucketStart  time.Time `json:"bucket_start"`
	BucketEnd    time.Time `json:"bucket_end"`
	PrevCost     float64   `json:"prev_cost"`
	CurrCost     float64   `json:"curr_cost"`
	PctChange    float64   `json:"pct_change"`
	ZeroBaseline bool      `json:"zero_baseline"`
}

// bucketEpoch anchors bucket boundaries so bucket indexes are stable across
// runs regardless of which claims are present.
var bucketEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// DetectSpikes buckets claim costs into fixed-width adjacent windows per
// company and flags bucket pairs whose increase exceeds thresholdPct.
// Buckets inside a company's observed range with no claims count as zero
// cost; a zero bucket followed by any positive bucket is flagged
// unconditionally rather than dividing by zero. Ranges where both sides are
// zero are not reported.
func DetectSpikes(claims []model.Claim, bucketDays int, thresholdPct float64) []Spike {
	type bucketed struct {
		costs map[int]float64
		min   int
		max   int
	}

	companies := make(map[string]*bucketed)
	for _, c := range claims {
		if !c.ServiceDate.Valid || math.IsNaN(c.Amount) {
			continue
		}
		idx := daysBetween(bucketEpoch, c.ServiceDate.Time) / bucketDays
		b, ok := companies[c.CompanyEIN]
		if !ok {
			b = &bucketed{costs: make(map[int]float64), min: idx, max: idx}
			companies[c.CompanyEIN] = b
		}
		b.costs[idx] += c.Amount
		if idx < b.min {
			b.min = idx
		}
		if idx > b.max {
			b.max = idx
		}
	}

	var eins []string
	for ein := range companies {
		eins = append(eins, ein)
	}
	sort.Strings(eins)

	var spikes []Spike
	for _, ein := range eins {
		b := companies[ein]
		for idx := b.min; idx < b.max; idx++ {
			prev := b.costs[idx]
			curr := b.costs[idx+1]
			if prev == 0 && curr == 0 {
				continue
			}

			bucketStart := bucketEpoch.AddDate(0, 0, (idx+1)*bucketDays)
			bucketEnd := bucketStart.AddDate(0, 0, bucketDays-1)

			if prev == 0 && curr > 0 {
				spikes = append(spikes, Spike{
					CompanyEIN:   ein,
					BucketStart:  bucketStart,
					BucketEnd:    bucketEnd,
					PrevCost:     prev,
					CurrCost:     curr,
					ZeroBaseline: true,
				})
				continue
			}
			if prev == 0 {
				continue
			}

			pct := (curr - prev) / prev * 100
			if pct > thresholdPct {
				spikes = append(spikes, Spike{
					CompanyEIN:  ein,
					BucketStart: bucketStart,
					BucketEnd:   bucketEnd,
					PrevCost:    prev,
					CurrCost:    curr,
					PctChange:   pct,
				})
			}
		}
	}

	return spikes
}
