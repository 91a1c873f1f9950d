package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyStat is one day of aggregated click activity for an offer
type DailyStat struct {
	Day         time.Time       `json:"day"`
	Clicks      int64           `json:"clicks"`
	Conversions int64           `json:"conversions"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Repository defines persistence operations for clicks
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Click, error)
	// FindLatestBySession returns the most recent click of a session,
	// preferring clicks without a tracked conversion.
	FindLatestBySession(ctx context.Context, sessionID string) (*Click, error)
	Save(ctx context.Context, c *Click) error
	// DailyStats aggregates clicks, conversions and conversion revenue per
	// day for an offer within [from, to].
	DailyStats(ctx context.Context, offerID uuid.UUID, from, to time.Time) ([]DailyStat, error)
	// AverageOrderValue returns the mean conversion value across tracked
	// conversions of an offer, zero when none exist.
	AverageOrderValue(ctx context.Context, offerID uuid.UUID) (decimal.Decimal, error)
}
