package model

// PlanType is the coverage category of a benefits plan.
type PlanType string

const (
	PlanMedical    PlanType = "medical"
	PlanDental     PlanType = "dental"
	PlanVision     PlanType = "vision"
	PlanLife       PlanType = "life"
	PlanDisability PlanType = "disability"
)

// KnownPlanType reports whether t is one of the enumerated plan types.
func KnownPlanType(t PlanType) bool {
	switch t {
	case PlanMedical, PlanDental, PlanVision, PlanLife, PlanDisability:
		return true
	}
	return false
}

// Plan is a coverage interval for a company. EndDate may be absent, meaning
// the plan is open-ended. Invariant: EndDate, when present, is >= StartDate.
type Plan struct {
	PlanID     string   `json:"plan_id"`
	CompanyEIN string   `json:"company_ein"`
	PlanType   PlanType `json:"plan_type"`
	Carrier    string   `json:"carrier,omitempty"`
	StartDate  Date     `json:"start_date"`
	EndDate    Date     `json:"end_date"`
}
