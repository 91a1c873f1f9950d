package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/source"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSourceRepository is a mock implementation of source.Repository
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

// MockPlugin is a mock implementation of source.Plugin
type MockPlugin struct {
	mock.Mock
}

func (m *MockPlugin) Slug() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlugin) Initialize(config json.RawMessage) error {
	args := m.Called(config)
	return args.Error(0)
}

func (m *MockPlugin) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPlugin) FetchOffers(ctx context.Context) ([]source.RawOffer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]source.RawOffer), args.Error(1)
}

func (m *MockPlugin) ValidateOffer(raw source.RawOffer) error {
	args := m.Called(raw)
	return args.Error(0)
}

func (m *MockPlugin) TransformOffer(raw source.RawOffer, sourceID uuid.UUID) (*offer.Offer, error) {
	args := m.Called(raw, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Offer), args.Error(1)
}

type stubResolver struct {
	plugin source.Plugin
	err    error
}

func (r *stubResolver) Resolve(slug string) (source.Plugin, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.plugin, nil
}

type stubInvalidator struct {
	calls int
}

func (c *stubInvalidator) InvalidateAll(ctx context.Context) error {
	c.calls++
	return nil
}

func newTestSource(t *testing.T) *source.Source {
	t.Helper()
	src, err := source.NewSource("Amazon DE", "amazon-partners", `{"tag":"redakta-21"}`)
	require.NoError(t, err)
	return src
}

func newFeedOffer(t *testing.T, sourceID uuid.UUID, slug string) *offer.Offer {
	t.Helper()
	o, err := offer.NewOffer(sourceID, slug, "Offer "+slug, "https://merchant.example.com/"+slug)
	require.NoError(t, err)
	require.NoError(t, o.SetPricing(decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(5)))
	o.ClearDomainEvents()
	return o
}

func TestService_SyncSource(t *testing.T) {
	ctx := context.Background()

	t.Run("adds new offers and deactivates absent ones", func(t *testing.T) {
		src := newTestSource(t)
		sourceRepo := new(MockSourceRepository)
		offerRepo := new(MockOfferRepository)
		plugin := new(MockPlugin)
		invalidator := &stubInvalidator{}

		rawNew := source.RawOffer{"asin": "NEW1"}
		transformed := newFeedOffer(t, src.ID, "new1")
		stale := newFeedOffer(t, src.ID, "stale")

		sourceRepo.On("FindByID", mock.Anything, src.ID).Return(src, nil)
		sourceRepo.On("Save", mock.Anything, src).Return(nil)

		plugin.On("Initialize", mock.Anything).Return(nil)
		plugin.On("TestConnection", mock.Anything).Return(nil)
		plugin.On("FetchOffers", mock.Anything).Return([]source.RawOffer{rawNew}, nil)
		plugin.On("ValidateOffer", rawNew).Return(nil)
		plugin.On("TransformOffer", rawNew, src.ID).Return(transformed, nil)

		offerRepo.On("FindBySourceAndSlug", mock.Anything, src.ID, "new1").
			Return(nil, fmt.Errorf("%w: offer", shared.ErrNotFound))
		offerRepo.On("Save", mock.Anything, transformed).Return(nil)
		offerRepo.On("FindBySource", mock.Anything, src.ID).Return([]offer.Offer{*stale}, nil)
		offerRepo.On("Save", mock.Anything, mock.MatchedBy(func(o *offer.Offer) bool {
			return o.Slug == "stale" && !o.IsActive
		})).Return(nil)

		svc := NewService(sourceRepo, offerRepo, &stubResolver{plugin: plugin}, invalidator, zap.NewNop())

		result, err := svc.SyncSource(ctx, src.ID)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Added)
		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 1, result.Removed)
		assert.Empty(t, result.Errors)
		assert.Equal(t, source.SyncStatusSuccess, src.LastSyncStatus)
		assert.Equal(t, 1, invalidator.calls)
		offerRepo.AssertExpectations(t)
	})

	t.Run("patches existing offers in place", func(t *testing.T) {
		src := newTestSource(t)
		sourceRepo := new(MockSourceRepository)
		offerRepo := new(MockOfferRepository)
		plugin := new(MockPlugin)

		raw := source.RawOffer{"asin": "KNOWN"}
		incoming := newFeedOffer(t, src.ID, "known")
		incoming.Title = "Fresh Title"
		existing := newFeedOffer(t, src.ID, "known")
		require.NoError(t, existing.Deactivate())
		existing.SetScores(77, 60)

		sourceRepo.On("FindByID", mock.Anything, src.ID).Return(src, nil)
		sourceRepo.On("Save", mock.Anything, src).Return(nil)

		plugin.On("Initialize", mock.Anything).Return(nil)
		plugin.On("TestConnection", mock.Anything).Return(nil)
		plugin.On("FetchOffers", mock.Anything).Return([]source.RawOffer{raw}, nil)
		plugin.On("ValidateOffer", raw).Return(nil)
		plugin.On("TransformOffer", raw, src.ID).Return(incoming, nil)

		offerRepo.On("FindBySourceAndSlug", mock.Anything, src.ID, "known").Return(existing, nil)
		offerRepo.On("Save", mock.Anything, existing).Return(nil)
		offerRepo.On("FindBySource", mock.Anything, src.ID).Return([]offer.Offer{}, nil)

		svc := NewService(sourceRepo, offerRepo, &stubResolver{plugin: plugin}, &stubInvalidator{}, zap.NewNop())

		result, err := svc.SyncSource(ctx, src.ID)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 0, result.Added)
		assert.Equal(t, "Fresh Title", existing.Title)
		assert.True(t, existing.IsActive, "reappearing offer is reactivated")
		assert.Equal(t, 77, existing.QualityScore, "feed sync never overwrites performance scores")
	})

	t.Run("record failures accumulate without aborting the run", func(t *testing.T) {
		src := newTestSource(t)
		sourceRepo := new(MockSourceRepository)
		offerRepo := new(MockOfferRepository)
		plugin := new(MockPlugin)

		bad := source.RawOffer{"asin": "BAD"}
		good := source.RawOffer{"asin": "GOOD"}
		transformed := newFeedOffer(t, src.ID, "good")

		sourceRepo.On("FindByID", mock.Anything, src.ID).Return(src, nil)
		sourceRepo.On("Save", mock.Anything, src).Return(nil)

		plugin.On("Initialize", mock.Anything).Return(nil)
		plugin.On("TestConnection", mock.Anything).Return(nil)
		plugin.On("FetchOffers", mock.Anything).Return([]source.RawOffer{bad, good}, nil)
		plugin.On("ValidateOffer", bad).Return(errors.New("missing title"))
		plugin.On("ValidateOffer", good).Return(nil)
		plugin.On("TransformOffer", good, src.ID).Return(transformed, nil)

		offerRepo.On("FindBySourceAndSlug", mock.Anything, src.ID, "good").
			Return(nil, fmt.Errorf("%w: offer", shared.ErrNotFound))
		offerRepo.On("Save", mock.Anything, transformed).Return(nil)
		offerRepo.On("FindBySource", mock.Anything, src.ID).Return([]offer.Offer{}, nil)

		svc := NewService(sourceRepo, offerRepo, &stubResolver{plugin: plugin}, &stubInvalidator{}, zap.NewNop())

		result, err := svc.SyncSource(ctx, src.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 1, result.Added)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "missing title")
	})

	t.Run("connection failure is recorded on the source", func(t *testing.T) {
		src := newTestSource(t)
		sourceRepo := new(MockSourceRepository)
		offerRepo := new(MockOfferRepository)
		plugin := new(MockPlugin)

		sourceRepo.On("FindByID", mock.Anything, src.ID).Return(src, nil)
		sourceRepo.On("Save", mock.Anything, src).Return(nil)

		plugin.On("Initialize", mock.Anything).Return(nil)
		plugin.On("TestConnection", mock.Anything).Return(errors.New("dial tcp: timeout"))

		svc := NewService(sourceRepo, offerRepo, &stubResolver{plugin: plugin}, &stubInvalidator{}, zap.NewNop())

		_, err := svc.SyncSource(ctx, src.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrSourceConnection)
		assert.Equal(t, source.SyncStatusFailed, src.LastSyncStatus)
		assert.Contains(t, src.LastSyncError, "dial tcp")
	})

	t.Run("inactive source is rejected", func(t *testing.T) {
		src := newTestSource(t)
		src.IsActive = false
		sourceRepo := new(MockSourceRepository)
		sourceRepo.On("FindByID", mock.Anything, src.ID).Return(src, nil)

		svc := NewService(sourceRepo, new(MockOfferRepository), &stubResolver{}, &stubInvalidator{}, zap.NewNop())

		_, err := svc.SyncSource(ctx, src.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("unknown plugin is recorded as a failure", func(t *testing.T) {
		src := newTestSource(t)
		sourceRepo := new(MockSourceRepository)
		sourceRepo.On("FindByID", mock.Anything, src.ID).Return(src, nil)
		sourceRepo.On("Save", mock.Anything, src).Return(nil)

		resolver := &stubResolver{err: fmt.Errorf("%w: 'amazon-partners'", shared.ErrPluginNotRegistered)}
		svc := NewService(sourceRepo, new(MockOfferRepository), resolver, &stubInvalidator{}, zap.NewNop())

		_, err := svc.SyncSource(ctx, src.ID)
		assert.ErrorIs(t, err, shared.ErrPluginNotRegistered)
		assert.Equal(t, source.SyncStatusFailed, src.LastSyncStatus)
	})
}

func TestService_SyncAll(t *testing.T) {
	ctx := context.Background()

	t.Run("one failing source never fails the batch", func(t *testing.T) {
		healthy := newTestSource(t)
		broken := newTestSource(t)

		sourceRepo := new(MockSourceRepository)
		offerRepo := new(MockOfferRepository)
		plugin := new(MockPlugin)

		sourceRepo.On("FindActive", mock.Anything).Return([]source.Source{*broken, *healthy}, nil)
		sourceRepo.On("FindByID", mock.Anything, broken.ID).Return(broken, nil)
		sourceRepo.On("FindByID", mock.Anything, healthy.ID).Return(healthy, nil)
		sourceRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		plugin.On("Initialize", mock.Anything).Return(errors.New("bad credentials")).Once()
		plugin.On("Initialize", mock.Anything).Return(nil)
		plugin.On("TestConnection", mock.Anything).Return(nil)
		plugin.On("FetchOffers", mock.Anything).Return([]source.RawOffer{}, nil)

		offerRepo.On("FindBySource", mock.Anything, healthy.ID).Return([]offer.Offer{}, nil)

		svc := NewService(sourceRepo, offerRepo, &stubResolver{plugin: plugin}, &stubInvalidator{}, zap.NewNop())

		results, err := svc.SyncAll(ctx)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.NotEmpty(t, results[0].Errors)
		assert.Empty(t, results[1].Errors)
	})
}
