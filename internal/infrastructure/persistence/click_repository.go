package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/tracking"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormClickRepository implements tracking.Repository using GORM
type GormClickRepository struct {
	db *gorm.DB
}

// NewGormClickRepository creates a new GormClickRepository
func NewGormClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// FindByID finds a click by its ID
func (r *GormClickRepository) FindByID(ctx context.Context, id uuid.UUID) (*tracking.Click, error) {
	var c tracking.Click
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindLatestBySession returns the most recent click of a session. Clicks
// without a tracked conversion come first so a second purchase in the same
// session attributes to the newest unconverted click.
func (r *GormClickRepository) FindLatestBySession(ctx context.Context, sessionID string) (*tracking.Click, error) {
	var c tracking.Click
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("conversion_tracked ASC, created_at DESC").
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Save creates or updates a click
func (r *GormClickRepository) Save(ctx context.Context, c *tracking.Click) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// dailyStatRow is the scan target for the stats aggregation query
type dailyStatRow struct {
	Day         time.Time
	Clicks      int64
	Conversions int64
	Revenue     decimal.Decimal
}

// DailyStats aggregates clicks, conversions and conversion revenue per day
// for an offer within [from, to]
func (r *GormClickRepository) DailyStats(ctx context.Context, offerID uuid.UUID, from, to time.Time) ([]tracking.DailyStat, error) {
	var rows []dailyStatRow
	if err := r.db.WithContext(ctx).
		Model(&tracking.Click{}).
		Select(
			"DATE_TRUNC('day', created_at) AS day, "+
				"COUNT(*) AS clicks, "+
				"COUNT(*) FILTER (WHERE conversion_tracked) AS conversions, "+
				"COALESCE(SUM(conversion_value) FILTER (WHERE conversion_tracked), 0) AS revenue").
		Where("offer_id = ? AND created_at >= ? AND created_at <= ?", offerID, from, to).
		Group("DATE_TRUNC('day', created_at)").
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := make([]tracking.DailyStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, tracking.DailyStat{
			Day:         row.Day,
			Clicks:      row.Clicks,
			Conversions: row.Conversions,
			Revenue:     row.Revenue,
		})
	}
	return stats, nil
}

// AverageOrderValue returns the mean conversion value across tracked
// conversions of an offer, zero when none exist
func (r *GormClickRepository) AverageOrderValue(ctx context.Context, offerID uuid.UUID) (decimal.Decimal, error) {
	var avg decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&tracking.Click{}).
		Select("AVG(conversion_value)").
		Where("offer_id = ? AND conversion_tracked = ?", offerID, true).
		Scan(&avg).Error; err != nil {
		return decimal.Zero, err
	}
	if !avg.Valid {
		return decimal.Zero, nil
	}
	return avg.Decimal, nil
}

// Ensure GormClickRepository implements tracking.Repository
var _ tracking.Repository = (*GormClickRepository)(nil)
