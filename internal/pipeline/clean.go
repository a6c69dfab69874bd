// Package pipeline implements the incremental clean → validate → enrich →
// merge run over the raw benefits feeds.
package pipeline

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/internal/source"
)

// CleanEmployee normalizes one raw employee row. Pure and idempotent:
// cleaning an already-clean record is a no-op. Unparsable dates become
// sentinels for validation to flag; this stage never rejects anything.
func CleanEmployee(raw source.RawEmployee) model.Employee {
	return model.Employee{
		PersonID:   strings.TrimSpace(raw.PersonID),
		FullName:   cleanName(raw.FullName),
		Title:      strings.TrimSpace(raw.Title),
		Email:      strings.ToLower(strings.TrimSpace(raw.Email)),
		CompanyEIN: strings.TrimSpace(raw.CompanyEIN),
		StartDate:  model.ParseDate(raw.StartDate),
		Notes:      strings.TrimSpace(raw.Notes),
	}
}

// CleanPlan normalizes one raw plan row.
func CleanPlan(raw source.RawPlan) model.Plan {
	return model.Plan{
		PlanID:     strings.TrimSpace(raw.PlanID),
		CompanyEIN: strings.TrimSpace(raw.CompanyEIN),
		PlanType:   model.PlanType(strings.ToLower(strings.TrimSpace(raw.PlanType))),
		Carrier:    strings.TrimSpace(raw.Carrier),
		StartDate:  model.ParseDate(raw.StartDate),
		EndDate:    model.ParseDate(raw.EndDate),
	}
}

// CleanClaim normalizes one raw claim row. An unparsable amount becomes NaN,
// which the claim validation rules flag explicitly.
func CleanClaim(raw source.RawClaim) model.Claim {
	amount := math.NaN()
	if s := strings.TrimSpace(raw.Amount); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			amount = v
		}
	}
	return model.Claim{
		ClaimID:     strings.TrimSpace(raw.ClaimID),
		PersonID:    strings.TrimSpace(raw.PersonID),
		CompanyEIN:  strings.TrimSpace(raw.CompanyEIN),
		ServiceDate: model.ParseDate(raw.ServiceDate),
		Amount:      amount,
		ClaimType:   strings.ToLower(strings.TrimSpace(raw.ClaimType)),
	}
}

// cleanName trims and title-cases a person name.
func cleanName(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
