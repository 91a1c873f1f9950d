// Package compliance evaluates offers against display rules and applies
// deterministic auto-remediation.
package compliance

import (
	"context"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/compliance"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CacheInvalidator drops cached selection slices after rules or offers change
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// FixResult summarizes one auto-remediation pass over an offer
type FixResult struct {
	OfferID      uuid.UUID          `json:"offer_id"`
	Changed      bool               `json:"changed"`
	AppliedFixes []string           `json:"applied_fixes,omitempty"`
	Report       *compliance.Report `json:"report"`
}

// Service checks offers against active compliance rules
type Service struct {
	offerRepo offer.Repository
	ruleRepo  compliance.Repository
	cache     CacheInvalidator
	logger    *zap.Logger
}

// NewService creates a new compliance service
func NewService(
	offerRepo offer.Repository,
	ruleRepo compliance.Repository,
	cache CacheInvalidator,
	logger *zap.Logger,
) *Service {
	return &Service{
		offerRepo: offerRepo,
		ruleRepo:  ruleRepo,
		cache:     cache,
		logger:    logger,
	}
}

// CheckOfferCompliance evaluates every active rule against one offer.
// A report with violations is a successful result, not an error.
func (s *Service) CheckOfferCompliance(ctx context.Context, offerID uuid.UUID) (*compliance.Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "compliance", "check_offer",
		telemetry.WithAttribute(telemetry.SpanAttrOfferID, offerID.String()),
	)
	defer span.End()

	o, err := s.offerRepo.FindByID(ctx, offerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rules, err := s.ruleRepo.FindActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return s.evaluate(o, rules), nil
}

// FilterDisplayable returns the subset of offers that pass all blocking
// rules. Rules are loaded once for the whole set; the selection pipeline
// calls this per candidate batch.
func (s *Service) FilterDisplayable(ctx context.Context, offers []offer.Offer) ([]offer.Offer, error) {
	rules, err := s.ruleRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]offer.Offer, 0, len(offers))
	for i := range offers {
		if s.evaluate(&offers[i], rules).IsCompliant {
			out = append(out, offers[i])
		}
	}
	return out, nil
}

// AutoFixCompliance applies deterministic remediation for every violated rule
// with Action=modify: titles are truncated to the rule's limit and prices are
// raised to the floor implied by the maximum discount. The offer is persisted
// only when something changed; a second call is a no-op.
func (s *Service) AutoFixCompliance(ctx context.Context, offerID uuid.UUID) (*FixResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "compliance", "auto_fix",
		telemetry.WithAttribute(telemetry.SpanAttrOfferID, offerID.String()),
	)
	defer span.End()

	o, err := s.offerRepo.FindByID(ctx, offerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rules, err := s.ruleRepo.FindActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &FixResult{OfferID: offerID}

	ruleByID := make(map[uuid.UUID]*compliance.Rule, len(rules))
	for i := range rules {
		ruleByID[rules[i].ID] = &rules[i]
	}

	// Violations carry the verdict; the remediation parameters (title limit,
	// discount ceiling) still live on the rule that raised them.
	for _, violation := range s.evaluate(o, rules).ModifyViolations() {
		rule, ok := ruleByID[violation.RuleID]
		if !ok {
			continue
		}

		switch rule.Type {
		case compliance.RuleTypeContent:
			if max := rule.Conditions.MaxTitleLength; max > 0 && o.ApplyTitleLimit(max) {
				result.Changed = true
				result.AppliedFixes = append(result.AppliedFixes, "title_truncated")
			}
		case compliance.RuleTypePrice:
			if floor := rule.PriceFloor(o); floor != nil && o.ApplyPriceFloor(*floor) {
				result.Changed = true
				result.AppliedFixes = append(result.AppliedFixes, "price_clamped")
			}
		}
	}

	if result.Changed {
		if err := s.offerRepo.Save(ctx, o); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("Selection cache invalidation failed after auto-fix", zap.Error(err))
		}
		s.logger.Info("Offer auto-remediated",
			zap.String("offer_id", offerID.String()),
			zap.Strings("applied_fixes", result.AppliedFixes),
		)
	}

	result.Report = s.evaluate(o, rules)

	return result, nil
}

func (s *Service) evaluate(o *offer.Offer, rules []compliance.Rule) *compliance.Report {
	var violations []compliance.Violation
	for i := range rules {
		if v := rules[i].Evaluate(o); v != nil {
			violations = append(violations, *v)
		}
	}
	return compliance.NewReport(o.ID, violations)
}
