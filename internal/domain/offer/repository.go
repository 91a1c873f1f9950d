package offer

import (
	"context"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/shared"
)

// CounterDelta carries per-row counter increments for an offer.
// Counter updates must never go through a whole-record save; a concurrent
// click increment would otherwise be lost under a conversion update.
type CounterDelta struct {
	Clicks      int64
	Conversions int64
}

// Repository defines persistence operations for offers
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	FindBySlug(ctx context.Context, slug string) (*Offer, error)
	FindBySourceAndSlug(ctx context.Context, sourceID uuid.UUID, slug string) (*Offer, error)
	FindActive(ctx context.Context, filter shared.Filter) ([]Offer, error)
	FindActiveByCategory(ctx context.Context, category string, filter shared.Filter) ([]Offer, error)
	FindBySource(ctx context.Context, sourceID uuid.UUID) ([]Offer, error)
	Save(ctx context.Context, o *Offer) error
	IncrementCounters(ctx context.Context, id uuid.UUID, delta CounterDelta) error
	UpdateScores(ctx context.Context, id uuid.UUID, quality, trust int, conversionRate float64) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
