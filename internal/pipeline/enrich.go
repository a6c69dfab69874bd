package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/pkg/directory"
)

// Enricher derives additional attributes for valid records. Enrichment is
// best-effort and strictly additive: a lookup miss leaves the derived field
// empty, and never demotes the record.
type Enricher struct {
	lookup        map[string]string // email domain -> company EIN
	dir           directory.Directory
	maxConcurrent int
	now           func() time.Time
}

// NewEnricher builds an enrichment stage.
func NewEnricher(lookup map[string]string, dir directory.Directory, maxConcurrent int) *Enricher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Enricher{
		lookup:        lookup,
		dir:           dir,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// Enrich attaches the inferred company EIN and directory attributes to each
// record. Directory lookups fan out with bounded concurrency. The returned
// count is the number of records whose EIN was filled by domain inference.
// The only error returned is context cancellation; per-record misses and
// lookup failures degrade to empty attribute sets.
func (e *Enricher) Enrich(ctx context.Context, recs []model.Employee) ([]model.EnrichedEmployee, int, error) {
	out := make([]model.EnrichedEmployee, len(recs))
	enrichedAt := e.now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i, rec := range recs {
		g.Go(func() error {
			enriched := model.EnrichedEmployee{
				Employee:   rec,
				Attributes: map[string]string{},
				EnrichedAt: enrichedAt,
			}

			if rec.CompanyEIN == "" {
				if ein, ok := e.lookup[emailDomain(rec.Email)]; ok {
					enriched.InferredEIN = ein
				} else {
					zap.L().Debug("no EIN match for email domain",
						zap.String("person_id", rec.PersonID),
						zap.String("domain", emailDomain(rec.Email)),
					)
				}
			}

			attrs, err := e.dir.Lookup(gctx, rec.PersonID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Lookup failures are non-fatal: the record proceeds bare.
				zap.L().Warn("directory lookup failed",
					zap.String("person_id", rec.PersonID),
					zap.Error(err),
				)
			} else {
				for k, v := range attrs {
					enriched.Attributes[k] = v
				}
			}

			out[i] = enriched
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	inferred := 0
	for _, rec := range out {
		if rec.CompanyEIN == "" && rec.InferredEIN != "" {
			inferred++
		}
	}
	return out, inferred, nil
}

// emailDomain returns the lowercased domain portion of an email address, or
// "" when there is none.
func emailDomain(email string) string {
	_, domain, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return strings.ToLower(domain)
}
