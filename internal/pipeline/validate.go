package pipeline

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/hillwinds/benetl/internal/model"
)

// EmployeeResult is the outcome of classifying one employee batch.
// Invariant: len(Valid) + Flagged == number of input records; nothing is
// ever dropped silently.
type EmployeeResult struct {
	Valid   []model.Employee
	Audit   []model.ValidationError // every audit row, hard and soft
	Flagged int                     // records diverted (hard failures + duplicates)
}

// Validator applies the ordered employee rule set.
type Validator struct {
	rules []Rule
	now   func() time.Time
}

// NewValidator builds a validator with the configured rule toggles applied.
func NewValidator(disabledRules []string) *Validator {
	return &Validator{
		rules: enabledRules(EmployeeRules(), disabledRules),
		now:   time.Now,
	}
}

// Classify splits a cleaned batch into records that continue downstream and
// records diverted to the audit output. Duplicate rows (same person, email,
// and start date) are diverted as duplicates rather than deduplicated
// silently. Records failing only soft rules are audited but still continue.
func (v *Validator) Classify(recs []model.Employee) EmployeeResult {
	var res EmployeeResult
	seen := make(map[string]bool, len(recs))

	for _, rec := range recs {
		dedupeKey := rec.PersonID + "|" + rec.Email + "|" + rec.StartDate.String()
		if seen[dedupeKey] {
			res.Audit = append(res.Audit, v.auditRow(rec, []string{"duplicate_row"},
				"duplicate of earlier row in batch", model.SeverityHard))
			res.Flagged++
			continue
		}
		seen[dedupeKey] = true

		var hardRules, softRules []string
		var reasons []string
		for _, rule := range v.rules {
			ok, reason := rule.Check(rec)
			if ok {
				continue
			}
			reasons = append(reasons, reason)
			if rule.Severity == model.SeverityHard {
				hardRules = append(hardRules, rule.Name)
			} else {
				softRules = append(softRules, rule.Name)
			}
		}

		if len(hardRules) > 0 {
			res.Audit = append(res.Audit, v.auditRow(rec, append(hardRules, softRules...),
				strings.Join(reasons, "; "), model.SeverityHard))
			res.Flagged++
			continue
		}
		if len(softRules) > 0 {
			res.Audit = append(res.Audit, v.auditRow(rec, softRules,
				strings.Join(reasons, "; "), model.SeveritySoft))
		}
		res.Valid = append(res.Valid, rec)
	}

	return res
}

func (v *Validator) auditRow(rec model.Employee, rules []string, reason string, sev model.Severity) model.ValidationError {
	return model.ValidationError{
		Source:     "employees",
		RecordKey:  rec.Key(),
		Rules:      rules,
		Reason:     reason,
		Severity:   sev,
		Record:     marshalRecord(rec),
		DetectedAt: v.now().UTC(),
	}
}

// ClaimResult is the outcome of classifying one claim batch.
type ClaimResult struct {
	Valid      []model.Claim
	Audit      []model.ValidationError
	Flagged    int
	Duplicates int // duplicate claim IDs reported, first occurrence kept
}

// ValidateClaims checks required identifiers, date and amount sanity, and
// reports duplicate claim IDs as an integrity condition. The first
// occurrence of a duplicated ID stays in the valid set so downstream cost
// aggregates remain stable, but every duplicate is counted and audited.
func ValidateClaims(claims []model.Claim, now func() time.Time) ClaimResult {
	var res ClaimResult
	seen := make(map[string]bool, len(claims))

	for _, c := range claims {
		record := marshalRecord(c)
		audit := func(rules []string, reason string) {
			res.Audit = append(res.Audit, model.ValidationError{
				Source:     "claims",
				RecordKey:  c.ClaimID,
				Rules:      rules,
				Reason:     reason,
				Severity:   model.SeverityHard,
				Record:     record,
				DetectedAt: now().UTC(),
			})
		}

		if c.ClaimID == "" {
			audit([]string{"claim_id_required"}, "claim_id is empty")
			res.Flagged++
			continue
		}
		if seen[c.ClaimID] {
			audit([]string{"duplicate_claim_id"}, "duplicate claim_id in batch")
			res.Flagged++
			res.Duplicates++
			continue
		}
		seen[c.ClaimID] = true

		if !c.ServiceDate.Valid {
			audit([]string{"service_date_valid"}, "missing or malformed service_date")
			res.Flagged++
			continue
		}
		if math.IsNaN(c.Amount) || c.Amount < 0 {
			audit([]string{"amount_non_negative"}, "amount is missing, malformed, or negative")
			res.Flagged++
			continue
		}

		res.Valid = append(res.Valid, c)
	}

	return res
}

// PlanResult is the outcome of classifying one plan batch.
type PlanResult struct {
	Valid   []model.Plan
	Audit   []model.ValidationError
	Flagged int
}

// ValidatePlans enforces the plan invariants: a known plan type, a valid
// start date, and end date >= start date when present.
func ValidatePlans(plans []model.Plan, now func() time.Time) PlanResult {
	var res PlanResult

	for _, p := range plans {
		audit := func(rules []string, reason string) {
			res.Audit = append(res.Audit, model.ValidationError{
				Source:     "plans",
				RecordKey:  p.PlanID,
				Rules:      rules,
				Reason:     reason,
				Severity:   model.SeverityHard,
				Record:     marshalRecord(p),
				DetectedAt: now().UTC(),
			})
		}

		switch {
		case p.PlanID == "":
			audit([]string{"plan_id_required"}, "plan_id is empty")
		case !model.KnownPlanType(p.PlanType):
			audit([]string{"plan_type_known"}, "unknown plan_type: "+string(p.PlanType))
		case !p.StartDate.Valid:
			audit([]string{"start_date_valid"}, "missing or malformed start_date")
		case p.EndDate.Malformed():
			audit([]string{"end_date_valid"}, "malformed end_date: "+p.EndDate.Raw)
		case p.EndDate.Valid && p.EndDate.Time.Before(p.StartDate.Time):
			audit([]string{"end_after_start"}, "end_date precedes start_date")
		default:
			res.Valid = append(res.Valid, p)
			continue
		}
		res.Flagged++
	}

	return res
}

func marshalRecord(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
