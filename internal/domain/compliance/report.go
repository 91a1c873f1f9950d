package compliance

import (
	"time"

	"github.com/google/uuid"
)

// Violation is a data object describing one failed rule check. It gates
// display eligibility but is not an error; persistence of the offer is
// unaffected.
type Violation struct {
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Type     RuleType  `json:"type"`
	Action   Action    `json:"action"`
	Severity Severity  `json:"severity"`
	OfferID  uuid.UUID `json:"offer_id"`
	Message  string    `json:"message"`
}

// Report is the result of evaluating every active rule against one offer
type Report struct {
	OfferID             uuid.UUID   `json:"offer_id"`
	IsCompliant         bool        `json:"is_compliant"`
	Violations          []Violation `json:"violations"`
	RequiredDisclosures []string    `json:"required_disclosures,omitempty"`
	RecommendedActions  []string    `json:"recommended_actions,omitempty"`
	CheckedAt           time.Time   `json:"checked_at"`
}

// NewReport builds a report from collected violations. An offer is compliant
// iff no violation carries a blocking (high or critical) severity.
func NewReport(offerID uuid.UUID, violations []Violation) *Report {
	report := &Report{
		OfferID:    offerID,
		Violations: violations,
		CheckedAt:  time.Now(),
	}

	report.IsCompliant = true
	for _, v := range violations {
		if v.Severity.Blocking() {
			report.IsCompliant = false
		}
		switch v.Action {
		case ActionRequireDisclosure:
			report.RequiredDisclosures = append(report.RequiredDisclosures, v.Message)
		case ActionModify:
			report.RecommendedActions = append(report.RecommendedActions, v.Message)
		}
	}

	return report
}

// ModifyViolations returns the subset of violations that auto-fix may remediate
func (r *Report) ModifyViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Action == ActionModify {
			out = append(out, v)
		}
	}
	return out
}
