package pipeline

import (
	"fmt"
	"regexp"

	"github.com/hillwinds/benetl/internal/model"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Rule is one named validation predicate. Rules are evaluated in order and
// each failure produces an audit entry; hard failures divert the record.
type Rule struct {
	Name     string
	Severity model.Severity
	Check    func(model.Employee) (ok bool, reason string)
}

// EmployeeRules returns the ordered employee rule set.
func EmployeeRules() []Rule {
	return []Rule{
		{
			Name:     "person_id_required",
			Severity: model.SeverityHard,
			Check: func(e model.Employee) (bool, string) {
				if e.PersonID == "" {
					return false, "person_id is empty"
				}
				return true, ""
			},
		},
		{
			Name:     "email_format",
			Severity: model.SeverityHard,
			Check: func(e model.Employee) (bool, string) {
				if !emailRe.MatchString(e.Email) {
					return false, fmt.Sprintf("invalid email format: %q", e.Email)
				}
				return true, ""
			},
		},
		{
			Name:     "start_date_valid",
			Severity: model.SeverityHard,
			Check: func(e model.Employee) (bool, string) {
				if e.StartDate.Malformed() {
					return false, fmt.Sprintf("invalid date format: %q", e.StartDate.Raw)
				}
				if e.StartDate.Absent() {
					return false, "start_date is empty"
				}
				return true, ""
			},
		},
		{
			Name:     "title_present",
			Severity: model.SeveritySoft,
			Check: func(e model.Employee) (bool, string) {
				if e.Title == "" {
					return false, "missing title"
				}
				return true, ""
			},
		},
	}
}

// enabledRules filters the rule set against the configured toggles.
func enabledRules(rules []Rule, disabled []string) []Rule {
	if len(disabled) == 0 {
		return rules
	}
	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[name] = true
	}
	var out []Rule
	for _, r := range rules {
		if !off[r.Name] {
			out = append(out, r)
		}
	}
	return out
}
