package model

import "time"

// Employee is one version of an employee record. The natural key is
// (PersonID, StartDate): re-ingesting the same key replaces the stored row.
type Employee struct {
	PersonID   string `json:"person_id"`
	FullName   string `json:"full_name"`
	Title      string `json:"title,omitempty"`
	Email      string `json:"email"`
	CompanyEIN string `json:"company_ein,omitempty"`
	StartDate  Date   `json:"start_date"`
	Notes      string `json:"notes,omitempty"`
}

// Key returns the natural key used for upserts.
func (e Employee) Key() string {
	return e.PersonID + "|" + e.StartDate.String()
}

// EnrichedEmployee is an employee after the enrichment stage. Enrichment is
// strictly additive: the embedded record is never modified, only the derived
// fields are attached.
type EnrichedEmployee struct {
	Employee
	InferredEIN string            `json:"inferred_ein,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	EnrichedAt  time.Time         `json:"enriched_at"`
}

// EffectiveEIN returns the source EIN if present, otherwise the one inferred
// from the email domain.
func (e EnrichedEmployee) EffectiveEIN() string {
	if e.CompanyEIN != "" {
		return e.CompanyEIN
	}
	return e.InferredEIN
}
