package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/redakta/backend/internal/domain/compliance"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/source"
	"github.com/redakta/backend/internal/domain/tracking"
)

// MockOfferRepository implements offer.Repository for testing
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

var _ offer.Repository = (*MockOfferRepository)(nil)

// MockClickRepository implements tracking.Repository for testing
type MockClickRepository struct {
	mock.Mock
}

func (m *MockClickRepository) FindByID(ctx context.Context, id uuid.UUID) (*tracking.Click, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.Click), args.Error(1)
}

func (m *MockClickRepository) FindLatestBySession(ctx context.Context, sessionID string) (*tracking.Click, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.Click), args.Error(1)
}

func (m *MockClickRepository) Save(ctx context.Context, c *tracking.Click) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockClickRepository) DailyStats(ctx context.Context, offerID uuid.UUID, from, to time.Time) ([]tracking.DailyStat, error) {
	args := m.Called(ctx, offerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracking.DailyStat), args.Error(1)
}

func (m *MockClickRepository) AverageOrderValue(ctx context.Context, offerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, offerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

var _ tracking.Repository = (*MockClickRepository)(nil)

// MockRuleRepository implements compliance.Repository for testing
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

var _ compliance.Repository = (*MockRuleRepository)(nil)

// MockSourceRepository implements source.Repository for testing
type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*source.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.Source), args.Error(1)
}

func (m *MockSourceRepository) FindActive(ctx context.Context) ([]source.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.Source), args.Error(1)
}

func (m *MockSourceRepository) Save(ctx context.Context, s *source.Source) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

var _ source.Repository = (*MockSourceRepository)(nil)

// noopInvalidator satisfies the application cache invalidation interfaces
type noopInvalidator struct{}

func (noopInvalidator) InvalidateAll(ctx context.Context) error { return nil }

// newTestOffer builds a persisted-looking active offer
func newTestOffer(slug string) *offer.Offer {
	o, err := offer.NewOffer(uuid.New(), slug, "FlexiDesk Pro standing desk", "https://merchant.example.com/p/123?aff=base")
	if err != nil {
		panic(err)
	}
	_ = o.UpdateDetails("FlexiDesk Pro standing desk", "Height adjustable desk with dual motors and memory presets.", "FlexiSpot", "office")
	_ = o.SetPricing(decimal.NewFromInt(499), decimal.NewFromInt(599), decimal.NewFromInt(5))
	o.QualityScore = 70
	o.ClearDomainEvents()
	return o
}
