package tracking

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/tracking"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockClickRepository is a mock implementation of tracking.Repository
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

func newTestOffer(t *testing.T) *offer.Offer {
	t.Helper()
	o, err := offer.NewOffer(uuid.New(), "standing-desk", "Standing Desk", "https://merchant.example.com/desk?aff=base")
	require.NoError(t, err)
	require.NoError(t, o.UpdateDetails("Standing Desk", "Height adjustable standing desk with memory presets.", "DeskWorld", "office"))
	require.NoError(t, o.SetPricing(decimal.NewFromFloat(499), decimal.Zero, decimal.NewFromInt(5)))
	o.ClearDomainEvents()
	return o
}

func newService(clickRepo *MockClickRepository, offerRepo *MockOfferRepository) *Service {
	return NewService(clickRepo, offerRepo, "https://redakta.example.com/", zap.NewNop())
}

func TestService_TrackClick(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the click and increments the counter", func(t *testing.T) {
		o := newTestOffer(t)
		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		clickRepo.On("Save", mock.Anything, mock.MatchedBy(func(c *tracking.Click) bool {
			return c.OfferID == o.ID && c.OfferSlug == "standing-desk" && c.SessionID == "sess-1"
		})).Return(nil)
		offerRepo.On("IncrementCounters", mock.Anything, o.ID, offer.CounterDelta{Clicks: 1}).Return(nil)

		svc := newService(clickRepo, offerRepo)

		resp, err := svc.TrackClick(ctx, TrackClickRequest{
			OfferID:   o.ID,
			SessionID: "sess-1",
			PageSlug:  "best-desks-2026",
		})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, resp.ClickID)
		assert.Contains(t, resp.TrackingURL, "https://redakta.example.com/go/standing-desk?")
		assert.Contains(t, resp.TrackingURL, "click_id="+resp.ClickID.String())
		assert.Contains(t, resp.TrackingURL, "utm_source=redakta")
		assert.Contains(t, resp.TrackingURL, "utm_campaign=office")
		assert.Contains(t, resp.TrackingURL, "ref=best-desks-2026")
		clickRepo.AssertExpectations(t)
		offerRepo.AssertExpectations(t)
	})

	t.Run("inactive offer is rejected", func(t *testing.T) {
		o := newTestOffer(t)
		require.NoError(t, o.Deactivate())

		offerRepo := new(MockOfferRepository)
		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		svc := newService(new(MockClickRepository), offerRepo)

		_, err := svc.TrackClick(ctx, TrackClickRequest{OfferID: o.ID, SessionID: "sess-1"})
		assert.ErrorIs(t, err, shared.ErrOfferInactive)
	})

	t.Run("unknown offer passes NotFound through", func(t *testing.T) {
		offerRepo := new(MockOfferRepository)
		id := uuid.New()
		offerRepo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		svc := newService(new(MockClickRepository), offerRepo)

		_, err := svc.TrackClick(ctx, TrackClickRequest{OfferID: id, SessionID: "sess-1"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestService_ResolveRedirect(t *testing.T) {
	ctx := context.Background()

	t.Run("merges inbound params onto the target, inbound wins", func(t *testing.T) {
		o := newTestOffer(t)
		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		click, err := tracking.NewClick(o, "sess-1", "", "page", tracking.UTMParams{})
		require.NoError(t, err)

		offerRepo.On("FindBySlug", mock.Anything, "standing-desk").Return(o, nil)
		clickRepo.On("FindByID", mock.Anything, click.ID).Return(click, nil)
		clickRepo.On("Save", mock.Anything, click).Return(nil)

		svc := newService(clickRepo, offerRepo)

		params := url.Values{}
		params.Set("click_id", click.ID.String())
		params.Set("utm_source", "redakta")
		params.Set("aff", "override")

		final, err := svc.ResolveRedirect(ctx, "standing-desk", params)
		require.NoError(t, err)

		parsed, err := url.Parse(final)
		require.NoError(t, err)
		assert.Equal(t, "merchant.example.com", parsed.Host)
		assert.Equal(t, "override", parsed.Query().Get("aff"), "inbound param wins over merchant param")
		assert.Equal(t, "redakta", parsed.Query().Get("utm_source"))
		assert.Empty(t, parsed.Query().Get("click_id"), "click_id is consumed, not forwarded")
		assert.Equal(t, tracking.StatusRedirected, click.Status)
	})

	t.Run("redirect survives a failed click attribution", func(t *testing.T) {
		o := newTestOffer(t)
		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		missing := uuid.New()
		offerRepo.On("FindBySlug", mock.Anything, "standing-desk").Return(o, nil)
		clickRepo.On("FindByID", mock.Anything, missing).Return(nil, shared.ErrNotFound)

		svc := newService(clickRepo, offerRepo)

		params := url.Values{}
		params.Set("click_id", missing.String())

		final, err := svc.ResolveRedirect(ctx, "standing-desk", params)
		require.NoError(t, err)
		assert.Contains(t, final, "merchant.example.com")
	})

	t.Run("inactive offer resolves to NotFound", func(t *testing.T) {
		o := newTestOffer(t)
		require.NoError(t, o.Deactivate())

		offerRepo := new(MockOfferRepository)
		offerRepo.On("FindBySlug", mock.Anything, "standing-desk").Return(o, nil)

		svc := newService(new(MockClickRepository), offerRepo)

		_, err := svc.ResolveRedirect(ctx, "standing-desk", url.Values{})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestService_TrackConversion(t *testing.T) {
	ctx := context.Background()

	t.Run("attributes by click id and recomputes scores", func(t *testing.T) {
		o := newTestOffer(t)
		o.ClickCount = 100
		o.ConversionCount = 5

		click, err := tracking.NewClick(o, "sess-1", "", "page", tracking.UTMParams{})
		require.NoError(t, err)

		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		clickRepo.On("FindByID", mock.Anything, click.ID).Return(click, nil)
		clickRepo.On("Save", mock.Anything, click).Return(nil)
		clickRepo.On("AverageOrderValue", mock.Anything, o.ID).Return(decimal.NewFromFloat(49.99), nil)
		offerRepo.On("IncrementCounters", mock.Anything, o.ID, offer.CounterDelta{Conversions: 1}).Return(nil)
		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		offerRepo.On("UpdateScores", mock.Anything, o.ID, mock.AnythingOfType("int"), mock.AnythingOfType("int"), mock.AnythingOfType("float64")).Return(nil)

		svc := newService(clickRepo, offerRepo)

		resp, err := svc.TrackConversion(ctx, TrackConversionRequest{
			ClickID:         &click.ID,
			ConversionValue: decimal.NewFromFloat(49.99),
		})
		require.NoError(t, err)

		assert.Equal(t, click.ID, resp.ConversionID)
		assert.True(t, resp.ConversionValue.Equal(decimal.NewFromFloat(49.99)))
		assert.Equal(t, "sale", resp.ConversionType, "type defaults to sale")
		assert.True(t, click.ConversionTracked)
		offerRepo.AssertExpectations(t)
		clickRepo.AssertExpectations(t)
	})

	t.Run("falls back to the session's latest click", func(t *testing.T) {
		o := newTestOffer(t)
		click, err := tracking.NewClick(o, "sess-9", "", "page", tracking.UTMParams{})
		require.NoError(t, err)

		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		clickRepo.On("FindLatestBySession", mock.Anything, "sess-9").Return(click, nil)
		clickRepo.On("Save", mock.Anything, click).Return(nil)
		clickRepo.On("AverageOrderValue", mock.Anything, o.ID).Return(decimal.NewFromInt(30), nil)
		offerRepo.On("IncrementCounters", mock.Anything, o.ID, offer.CounterDelta{Conversions: 1}).Return(nil)
		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		offerRepo.On("UpdateScores", mock.Anything, o.ID, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		svc := newService(clickRepo, offerRepo)

		resp, err := svc.TrackConversion(ctx, TrackConversionRequest{
			SessionID:       "sess-9",
			ConversionValue: decimal.NewFromInt(30),
			ConversionType:  "lead",
		})
		require.NoError(t, err)
		assert.Equal(t, "lead", resp.ConversionType)
	})

	t.Run("requires a click id or session id", func(t *testing.T) {
		svc := newService(new(MockClickRepository), new(MockOfferRepository))

		_, err := svc.TrackConversion(ctx, TrackConversionRequest{
			ConversionValue: decimal.NewFromInt(10),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("repeated postback overwrites the value", func(t *testing.T) {
		o := newTestOffer(t)
		click, err := tracking.NewClick(o, "sess-1", "", "page", tracking.UTMParams{})
		require.NoError(t, err)
		require.NoError(t, click.TrackConversion(decimal.NewFromFloat(49.99), "sale"))

		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		clickRepo.On("FindByID", mock.Anything, click.ID).Return(click, nil)
		clickRepo.On("Save", mock.Anything, click).Return(nil)
		clickRepo.On("AverageOrderValue", mock.Anything, o.ID).Return(decimal.NewFromInt(30), nil)
		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		offerRepo.On("UpdateScores", mock.Anything, o.ID, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		svc := newService(clickRepo, offerRepo)

		resp, err := svc.TrackConversion(ctx, TrackConversionRequest{
			ClickID:         &click.ID,
			ConversionValue: decimal.NewFromInt(30),
			ConversionType:  "lead",
		})
		require.NoError(t, err)

		assert.True(t, resp.ConversionValue.Equal(decimal.NewFromInt(30)), "overwrite, not accumulate")
		assert.Equal(t, "lead", resp.ConversionType)

		// Same conversion, same counter: a retry must not bump the offer's
		// conversion count a second time.
		offerRepo.AssertNotCalled(t, "IncrementCounters", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestQualityScore(t *testing.T) {
	t.Run("zero activity scores zero", func(t *testing.T) {
		assert.Equal(t, 0, qualityScore(0, 0, decimal.Zero))
	})

	t.Run("strong conversion rate saturates its component", func(t *testing.T) {
		// 20% conversion rate saturates the 40-point component;
		// 100 clicks add log10(101)x10 ~ 20; AOV 49.99 adds ~5.
		score := qualityScore(100, 20, decimal.NewFromFloat(49.99))
		assert.GreaterOrEqual(t, score, 60)
		assert.LessOrEqual(t, score, 70)
	})

	t.Run("never exceeds the score bounds", func(t *testing.T) {
		score := qualityScore(1_000_000, 1_000_000, decimal.NewFromInt(1_000_000))
		assert.LessOrEqual(t, score, offer.MaxScore)
	})
}

func TestTrustScore(t *testing.T) {
	t.Run("bare offer stays at the base", func(t *testing.T) {
		o, err := offer.NewOffer(uuid.New(), "bare", "Bare", "https://m.example.com/x")
		require.NoError(t, err)
		assert.Equal(t, 50, trustScore(o))
	})

	t.Run("complete presentation reaches the cap", func(t *testing.T) {
		o := newTestOffer(t)
		o.Badges = []string{"prime"}
		o.Disclaimer = "Affiliate link: we may earn a commission."
		until := time.Now().AddDate(0, 1, 0)
		require.NoError(t, o.SetValidity(nil, &until))

		// 50 + merchant 10 + description 10 + badges 10 + disclaimer 15 + validity 15, capped
		assert.Equal(t, 100, trustScore(o))
	})
}

func TestService_GetOfferStats(t *testing.T) {
	ctx := context.Background()

	t.Run("sums the daily breakdown", func(t *testing.T) {
		o := newTestOffer(t)
		clickRepo := new(MockClickRepository)
		offerRepo := new(MockOfferRepository)

		day1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		day2 := day1.AddDate(0, 0, 1)
		daily := []tracking.DailyStat{
			{Day: day1, Clicks: 40, Conversions: 2, Revenue: decimal.NewFromInt(100)},
			{Day: day2, Clicks: 60, Conversions: 3, Revenue: decimal.NewFromInt(150)},
		}

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		clickRepo.On("DailyStats", mock.Anything, o.ID, mock.Anything, mock.Anything).Return(daily, nil)

		svc := newService(clickRepo, offerRepo)

		stats, err := svc.GetOfferStats(ctx, o.ID, day1, day2.AddDate(0, 0, 1))
		require.NoError(t, err)

		assert.Equal(t, int64(100), stats.TotalClicks)
		assert.Equal(t, int64(5), stats.TotalConversions)
		assert.InDelta(t, 0.05, stats.ConversionRate, 1e-9)
		assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(250)))
		assert.True(t, stats.EstimatedCommission.Equal(decimal.NewFromFloat(12.5)), "5%% of 250")
		assert.Len(t, stats.Daily, 2)
	})

	t.Run("rejects an inverted window", func(t *testing.T) {
		o := newTestOffer(t)
		offerRepo := new(MockOfferRepository)
		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		svc := newService(new(MockClickRepository), offerRepo)

		now := time.Now()
		_, err := svc.GetOfferStats(ctx, o.ID, now, now.AddDate(0, 0, -1))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
