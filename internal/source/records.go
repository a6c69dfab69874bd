// Package source reads the raw employee, plan, and claim feeds and filters
// them against the stored watermark.
package source

// RawEmployee mirrors one row of the employees feed, untyped. Cleaning owns
// all coercion; this package only selects rows.
type RawEmployee struct {
	PersonID   string `csv:"person_id" json:"person_id"`
	FullName   string `csv:"full_name" json:"full_name"`
	Title      string `csv:"title" json:"title"`
	Email      string `csv:"email" json:"email"`
	CompanyEIN string `csv:"company_ein" json:"company_ein"`
	StartDate  string `csv:"start_date" json:"start_date"`
	Notes      string `csv:"notes" json:"notes"`
}

// RawPlan mirrors one row of the plans feed.
type RawPlan struct {
	PlanID     string `csv:"plan_id" json:"plan_id"`
	CompanyEIN string `csv:"company_ein" json:"company_ein"`
	PlanType   string `csv:"plan_type" json:"plan_type"`
	Carrier    string `csv:"carrier_name" json:"carrier_name"`
	StartDate  string `csv:"start_date" json:"start_date"`
	EndDate    string `csv:"end_date" json:"end_date"`
}

// RawClaim mirrors one row of the claims feed.
type RawClaim struct {
	ClaimID     string `csv:"claim_id" json:"claim_id"`
	PersonID    string `csv:"person_id" json:"person_id"`
	CompanyEIN  string `csv:"company_ein" json:"company_ein"`
	ServiceDate string `csv:"service_date" json:"service_date"`
	Amount      string `csv:"amount" json:"amount"`
	ClaimType   string `csv:"claim_type" json:"claim_type"`
}
