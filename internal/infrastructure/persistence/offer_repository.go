package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormOfferRepository implements offer.Repository using GORM
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new GormOfferRepository
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// FindByID finds an offer by its ID
func (r *GormOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	var o offer.Offer
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindBySlug finds an offer by its slug. Slugs are unique per source; when two
// sources carry the same slug the most recently updated offer wins, which is
// what the redirect resolver wants.
func (r *GormOfferRepository) FindBySlug(ctx context.Context, slug string) (*offer.Offer, error) {
	var o offer.Offer
	if err := r.db.WithContext(ctx).
		Where("slug = ?", strings.ToLower(slug)).
		Order("updated_at DESC").
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindBySourceAndSlug finds an offer by its source-scoped identity
func (r *GormOfferRepository) FindBySourceAndSlug(ctx context.Context, sourceID uuid.UUID, slug string) (*offer.Offer, error) {
	var o offer.Offer
	if err := r.db.WithContext(ctx).
		Where("source_id = ? AND slug = ?", sourceID, strings.ToLower(slug)).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindActive finds all active offers matching the filter
func (r *GormOfferRepository) FindActive(ctx context.Context, filter shared.Filter) ([]offer.Offer, error) {
	var offers []offer.Offer
	query := r.applyFilter(r.db.WithContext(ctx).Model(&offer.Offer{}).Where("is_active = ?", true), filter)

	if err := query.Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// FindActiveByCategory finds active offers in a category
func (r *GormOfferRepository) FindActiveByCategory(ctx context.Context, category string, filter shared.Filter) ([]offer.Offer, error) {
	var offers []offer.Offer
	query := r.db.WithContext(ctx).Model(&offer.Offer{}).
		Where("is_active = ? AND category = ?", true, strings.ToLower(category))
	query = r.applyFilter(query, filter)

	if err := query.Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// FindBySource finds all offers belonging to a source, active or not
func (r *GormOfferRepository) FindBySource(ctx context.Context, sourceID uuid.UUID) ([]offer.Offer, error) {
	var offers []offer.Offer
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("slug ASC").
		Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// Save creates or updates an offer
func (r *GormOfferRepository) Save(ctx context.Context, o *offer.Offer) error {
	return r.db.WithContext(ctx).Save(o).Error
}

// IncrementCounters applies click/conversion deltas as per-row expressions so
// concurrent writers never lose increments, then refreshes the conversion rate
// from the updated columns.
func (r *GormOfferRepository) IncrementCounters(ctx context.Context, id uuid.UUID, delta offer.CounterDelta) error {
	updates := map[string]interface{}{}
	if delta.Clicks != 0 {
		updates["click_count"] = gorm.Expr("click_count + ?", delta.Clicks)
	}
	if delta.Conversions != 0 {
		updates["conversion_count"] = gorm.Expr("conversion_count + ?", delta.Conversions)
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&offer.Offer{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}

	return r.db.WithContext(ctx).Model(&offer.Offer{}).
		Where("id = ?", id).
		Update("conversion_rate", gorm.Expr(
			"CASE WHEN click_count = 0 THEN 0 ELSE CAST(conversion_count AS float) / CAST(click_count AS float) END",
		)).Error
}

// UpdateScores persists recomputed scores without touching the rest of the row
func (r *GormOfferRepository) UpdateScores(ctx context.Context, id uuid.UUID, quality, trust int, conversionRate float64) error {
	result := r.db.WithContext(ctx).Model(&offer.Offer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quality_score":   offer.ClampScore(quality),
			"trust_score":     offer.ClampScore(trust),
			"conversion_rate": conversionRate,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts offers matching the filter
func (r *GormOfferRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&offer.Offer{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormOfferRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormOfferRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR merchant ILIKE ?", searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "category":
			query = query.Where("category = ?", value)
		case "merchant":
			query = query.Where("merchant = ?", value)
		case "region":
			query = query.Where("region = ?", value)
		case "is_featured":
			query = query.Where("is_featured = ?", value)
		case "min_quality_score":
			query = query.Where("quality_score >= ?", value)
		}
	}

	return query
}

// Ensure GormOfferRepository implements offer.Repository
var _ offer.Repository = (*GormOfferRepository)(nil)
