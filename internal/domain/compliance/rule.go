package compliance

import (
	"fmt"
	"strings"

	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RuleType classifies what aspect of an offer a rule constrains
type RuleType string

const (
	RuleTypeContent  RuleType = "content"
	RuleTypeMerchant RuleType = "merchant"
	RuleTypeRegion   RuleType = "region"
	RuleTypePrice    RuleType = "price"
	RuleTypeCategory RuleType = "category"
)

// Action is what happens to an offer when a rule is violated
type Action string

const (
	ActionBlock             Action = "block"
	ActionFlag              Action = "flag"
	ActionRequireDisclosure Action = "require_disclosure"
	ActionModify            Action = "modify"
)

// Severity grades a violation. High and critical violations make an offer
// ineligible for display regardless of the rule's action.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Blocking reports whether this severity excludes an offer from display
func (s Severity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Conditions is the structured predicate of a rule. Only the fields relevant
// to the rule's type are consulted; the rest stay at their zero value.
type Conditions struct {
	// content
	ProhibitedKeywords []string `json:"prohibited_keywords,omitempty"`
	MaxTitleLength     int      `json:"max_title_length,omitempty"`
	RequireDisclaimer  bool     `json:"require_disclaimer,omitempty"`
	DisclosureText     string   `json:"disclosure_text,omitempty"`
	// merchant
	BlacklistedMerchants []string `json:"blacklisted_merchants,omitempty"`
	RequireVerification  bool     `json:"require_verification,omitempty"`
	// region
	RestrictedRegions []string `json:"restricted_regions,omitempty"`
	RequiredCurrency  string   `json:"required_currency,omitempty"`
	// price
	MinPrice                 *decimal.Decimal `json:"min_price,omitempty"`
	MaxDiscountPercent       *decimal.Decimal `json:"max_discount_percent,omitempty"`
	RequireComparisonDisplay bool             `json:"require_comparison_display,omitempty"`
	// category
	ProhibitedCategories   []string `json:"prohibited_categories,omitempty"`
	RequireAgeVerification []string `json:"require_age_verification,omitempty"`
}

// Rule is a declarative constraint an offer must satisfy to be displayable.
// Rules are configured by admin tooling; this core only evaluates them.
type Rule struct {
	shared.BaseAggregateRoot
	Name       string     `gorm:"type:varchar(120);not null"`
	Type       RuleType   `gorm:"type:varchar(20);not null;index"`
	Conditions Conditions `gorm:"type:jsonb;serializer:json"`
	Action     Action     `gorm:"type:varchar(30);not null"`
	Severity   Severity   `gorm:"type:varchar(10);not null"`
	IsActive   bool       `gorm:"not null;default:true;index"`
	Priority   int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (Rule) TableName() string {
	return "compliance_rules"
}

// NewRule creates a new compliance rule
func NewRule(name string, ruleType RuleType, conditions Conditions, action Action, severity Severity) (*Rule, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Rule name cannot be empty")
	}
	switch ruleType {
	case RuleTypeContent, RuleTypeMerchant, RuleTypeRegion, RuleTypePrice, RuleTypeCategory:
	default:
		return nil, shared.NewDomainError("INVALID_RULE_TYPE", "Unknown rule type: "+string(ruleType))
	}
	switch action {
	case ActionBlock, ActionFlag, ActionRequireDisclosure, ActionModify:
	default:
		return nil, shared.NewDomainError("INVALID_ACTION", "Unknown rule action: "+string(action))
	}
	switch severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return nil, shared.NewDomainError("INVALID_SEVERITY", "Unknown severity: "+string(severity))
	}

	return &Rule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Type:              ruleType,
		Conditions:        conditions,
		Action:            action,
		Severity:          severity,
		IsActive:          true,
	}, nil
}

// Evaluate checks the rule against an offer and returns a violation, or nil
// when the offer satisfies the rule. Evaluation is pure; remediation is the
// compliance service's job.
func (r *Rule) Evaluate(o *offer.Offer) *Violation {
	switch r.Type {
	case RuleTypeContent:
		return r.evaluateContent(o)
	case RuleTypeMerchant:
		return r.evaluateMerchant(o)
	case RuleTypeRegion:
		return r.evaluateRegion(o)
	case RuleTypePrice:
		return r.evaluatePrice(o)
	case RuleTypeCategory:
		return r.evaluateCategory(o)
	}
	return nil
}

func (r *Rule) evaluateContent(o *offer.Offer) *Violation {
	text := strings.ToLower(o.Title + " " + o.Description)
	for _, kw := range r.Conditions.ProhibitedKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return r.violation(o, fmt.Sprintf("Prohibited keyword %q in offer content", kw))
		}
	}
	if max := r.Conditions.MaxTitleLength; max > 0 && len([]rune(o.Title)) > max {
		return r.violation(o, fmt.Sprintf("Title exceeds %d characters", max))
	}
	if r.Conditions.RequireDisclaimer && o.Disclaimer == "" {
		return r.violation(o, "Offer is missing a required disclaimer")
	}
	return nil
}

func (r *Rule) evaluateMerchant(o *offer.Offer) *Violation {
	merchant := strings.ToLower(o.Merchant)
	for _, blocked := range r.Conditions.BlacklistedMerchants {
		if blocked != "" && merchant == strings.ToLower(blocked) {
			return r.violation(o, fmt.Sprintf("Merchant %q is blacklisted", o.Merchant))
		}
	}
	if r.Conditions.RequireVerification && o.Merchant == "" {
		return r.violation(o, "Offer has no verifiable merchant")
	}
	return nil
}

func (r *Rule) evaluateRegion(o *offer.Offer) *Violation {
	region := strings.ToLower(o.Region)
	for _, restricted := range r.Conditions.RestrictedRegions {
		if restricted != "" && region == strings.ToLower(restricted) {
			return r.violation(o, fmt.Sprintf("Region %q is restricted", o.Region))
		}
	}
	if c := r.Conditions.RequiredCurrency; c != "" && !strings.EqualFold(o.Currency, c) {
		return r.violation(o, fmt.Sprintf("Offer must be priced in %s", strings.ToUpper(c)))
	}
	return nil
}

func (r *Rule) evaluatePrice(o *offer.Offer) *Violation {
	if min := r.Conditions.MinPrice; min != nil && o.Price.LessThan(*min) {
		return r.violation(o, fmt.Sprintf("Price %s is below the minimum of %s", o.Price, min))
	}
	if max := r.Conditions.MaxDiscountPercent; max != nil && o.DiscountPercent().GreaterThan(*max) {
		return r.violation(o, fmt.Sprintf("Discount of %s%% exceeds the allowed %s%%", o.DiscountPercent().Round(1), max))
	}
	if r.Conditions.RequireComparisonDisplay && !o.OldPrice.IsZero() && o.Price.IsZero() {
		return r.violation(o, "Discounted offer must display a comparison price")
	}
	return nil
}

func (r *Rule) evaluateCategory(o *offer.Offer) *Violation {
	category := strings.ToLower(o.Category)
	for _, prohibited := range r.Conditions.ProhibitedCategories {
		if prohibited != "" && category == strings.ToLower(prohibited) {
			return r.violation(o, fmt.Sprintf("Category %q is prohibited", o.Category))
		}
	}
	for _, gated := range r.Conditions.RequireAgeVerification {
		if gated != "" && category == strings.ToLower(gated) {
			return r.violation(o, fmt.Sprintf("Category %q requires age verification", o.Category))
		}
	}
	return nil
}

// PriceFloor returns the lowest admissible price for an offer under a
// max-discount rule, or nil when the rule implies no floor.
func (r *Rule) PriceFloor(o *offer.Offer) *decimal.Decimal {
	max := r.Conditions.MaxDiscountPercent
	if r.Type != RuleTypePrice || max == nil || o.OldPrice.IsZero() {
		return nil
	}
	floor := o.OldPrice.Mul(decimal.NewFromInt(100).Sub(*max)).Div(decimal.NewFromInt(100))
	return &floor
}

func (r *Rule) violation(o *offer.Offer, message string) *Violation {
	return &Violation{
		RuleID:   r.ID,
		RuleName: r.Name,
		Type:     r.Type,
		Action:   r.Action,
		Severity: r.Severity,
		OfferID:  o.ID,
		Message:  message,
	}
}
