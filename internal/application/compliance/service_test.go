package compliance

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/compliance"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockOfferRepository is a mock implementation of offer.Repository
type MockOfferRepository struct {
	mock.Mock
}

func (m *MockOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindBySlug(ctx context.Context, slug string) (*offer.Offer, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindBySourceAndSlug(ctx context.Context, sourceID uuid.UUID, slug string) (*offer.Offer, error) {
	args := m.Called(ctx, sourceID, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindActive(ctx context.Context, filter shared.Filter) ([]offer.Offer, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindActiveByCategory(ctx context.Context, category string, filter shared.Filter) ([]offer.Offer, error) {
	args := m.Called(ctx, category, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindBySource(ctx context.Context, sourceID uuid.UUID) ([]offer.Offer, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func (m *MockOfferRepository) Save(ctx context.Context, o *offer.Offer) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOfferRepository) IncrementCounters(ctx context.Context, id uuid.UUID, delta offer.CounterDelta) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockOfferRepository) UpdateScores(ctx context.Context, id uuid.UUID, quality, trust int, conversionRate float64) error {
	args := m.Called(ctx, id, quality, trust, conversionRate)
	return args.Error(0)
}

func (m *MockOfferRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockRuleRepository is a mock implementation of compliance.Repository
type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*compliance.Rule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compliance.Rule), args.Error(1)
}

func (m *MockRuleRepository) FindActive(ctx context.Context) ([]compliance.Rule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compliance.Rule), args.Error(1)
}

func (m *MockRuleRepository) Save(ctx context.Context, r *compliance.Rule) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

type stubInvalidator struct {
	calls int
}

func (c *stubInvalidator) InvalidateAll(ctx context.Context) error {
	c.calls++
	return nil
}

func newTestOffer(t *testing.T) *offer.Offer {
	t.Helper()
	o, err := offer.NewOffer(uuid.New(), "ergonomic-chair", "Ergonomic Chair", "https://merchant.example.com/chair")
	require.NoError(t, err)
	require.NoError(t, o.UpdateDetails("Ergonomic Chair", "A chair.", "DeskWorld", "office"))
	require.NoError(t, o.SetPricing(decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(5)))
	o.ClearDomainEvents()
	return o
}

func mustRule(t *testing.T, name string, rt compliance.RuleType, cond compliance.Conditions, action compliance.Action, sev compliance.Severity) compliance.Rule {
	t.Helper()
	r, err := compliance.NewRule(name, rt, cond, action, sev)
	require.NoError(t, err)
	return *r
}

func TestService_CheckOfferCompliance(t *testing.T) {
	ctx := context.Background()

	t.Run("blocking violation makes the offer non-compliant", func(t *testing.T) {
		o := newTestOffer(t)
		offerRepo := new(MockOfferRepository)
		ruleRepo := new(MockRuleRepository)

		rules := []compliance.Rule{
			mustRule(t, "no miracle claims", compliance.RuleTypeContent,
				compliance.Conditions{ProhibitedKeywords: []string{"chair"}},
				compliance.ActionBlock, compliance.SeverityCritical),
		}

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		ruleRepo.On("FindActive", mock.Anything).Return(rules, nil)

		svc := NewService(offerRepo, ruleRepo, &stubInvalidator{}, zap.NewNop())

		report, err := svc.CheckOfferCompliance(ctx, o.ID)
		require.NoError(t, err)

		assert.False(t, report.IsCompliant)
		require.Len(t, report.Violations, 1)
		assert.Equal(t, compliance.SeverityCritical, report.Violations[0].Severity)
	})

	t.Run("low severity violations leave the offer compliant", func(t *testing.T) {
		o := newTestOffer(t)
		offerRepo := new(MockOfferRepository)
		ruleRepo := new(MockRuleRepository)

		rules := []compliance.Rule{
			mustRule(t, "disclaimer wanted", compliance.RuleTypeContent,
				compliance.Conditions{RequireDisclaimer: true},
				compliance.ActionRequireDisclosure, compliance.SeverityLow),
		}

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		ruleRepo.On("FindActive", mock.Anything).Return(rules, nil)

		svc := NewService(offerRepo, ruleRepo, &stubInvalidator{}, zap.NewNop())

		report, err := svc.CheckOfferCompliance(ctx, o.ID)
		require.NoError(t, err)

		assert.True(t, report.IsCompliant)
		assert.Len(t, report.Violations, 1)
		assert.Len(t, report.RequiredDisclosures, 1)
	})
}

func TestService_AutoFixCompliance(t *testing.T) {
	ctx := context.Background()

	maxDiscount := decimal.NewFromInt(90)
	rules := []compliance.Rule{
		mustRule(t, "title limit", compliance.RuleTypeContent,
			compliance.Conditions{MaxTitleLength: 20},
			compliance.ActionModify, compliance.SeverityMedium),
		mustRule(t, "discount cap", compliance.RuleTypePrice,
			compliance.Conditions{MaxDiscountPercent: &maxDiscount},
			compliance.ActionModify, compliance.SeverityMedium),
	}

	t.Run("truncates title and clamps price, then is idempotent", func(t *testing.T) {
		o := newTestOffer(t)
		require.NoError(t, o.UpdateDetails(strings.Repeat("Very Long Title ", 4), "A chair.", "DeskWorld", "office"))
		require.NoError(t, o.SetPricing(decimal.NewFromInt(5), decimal.NewFromInt(100), decimal.NewFromInt(5)))

		offerRepo := new(MockOfferRepository)
		ruleRepo := new(MockRuleRepository)
		invalidator := &stubInvalidator{}

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		offerRepo.On("Save", mock.Anything, o).Return(nil).Once()
		ruleRepo.On("FindActive", mock.Anything).Return(rules, nil)

		svc := NewService(offerRepo, ruleRepo, invalidator, zap.NewNop())

		result, err := svc.AutoFixCompliance(ctx, o.ID)
		require.NoError(t, err)

		assert.True(t, result.Changed)
		assert.ElementsMatch(t, []string{"title_truncated", "price_clamped"}, result.AppliedFixes)
		assert.Len(t, []rune(o.Title), 20)
		assert.True(t, o.Price.Equal(decimal.NewFromInt(10)), "price raised to oldPrice x (1 - 90%%), got %s", o.Price)
		assert.Equal(t, 1, invalidator.calls)

		// Second pass finds nothing left to fix and must not persist.
		second, err := svc.AutoFixCompliance(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, second.Changed)
		assert.Empty(t, second.AppliedFixes)
		offerRepo.AssertExpectations(t)
	})

	t.Run("compliant offer is untouched", func(t *testing.T) {
		o := newTestOffer(t)
		offerRepo := new(MockOfferRepository)
		ruleRepo := new(MockRuleRepository)

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		ruleRepo.On("FindActive", mock.Anything).Return(rules, nil)

		svc := NewService(offerRepo, ruleRepo, &stubInvalidator{}, zap.NewNop())

		result, err := svc.AutoFixCompliance(ctx, o.ID)
		require.NoError(t, err)

		assert.False(t, result.Changed)
		assert.True(t, result.Report.IsCompliant)
		offerRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}
