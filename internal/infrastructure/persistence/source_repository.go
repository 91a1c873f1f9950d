package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/source"
	"gorm.io/gorm"
)

// GormSourceRepository implements source.Repository using GORM
type GormSourceRepository struct {
	db *gorm.DB
}

// NewGormSourceRepository creates a new GormSourceRepository
func NewGormSourceRepository(db *gorm.DB) *GormSourceRepository {
	return &GormSourceRepository{db: db}
}

// FindByID finds a source by its ID
func (r *GormSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*source.Source, error) {
	var s source.Source
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindActive finds all active sources ordered by name
func (r *GormSourceRepository) FindActive(ctx context.Context) ([]source.Source, error) {
	var sources []source.Source
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// Save creates or updates a source
func (r *GormSourceRepository) Save(ctx context.Context, s *source.Source) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// Ensure GormSourceRepository implements source.Repository
var _ source.Repository = (*GormSourceRepository)(nil)
