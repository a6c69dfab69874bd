package model

// Claim is a single benefits claim. ClaimID must be unique within a batch;
// duplicates are a reported integrity condition, never silently dropped.
type Claim struct {
	ClaimID     string  `json:"claim_id"`
	PersonID    string  `json:"person_id"`
	CompanyEIN  string  `json:"company_ein"`
	ServiceDate Date    `json:"service_date"`
	Amount      float64 `json:"amount"`
	ClaimType   string  `json:"claim_type,omitempty"`
}
