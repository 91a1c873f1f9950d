package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/compliance"
	"github.com/redakta/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormComplianceRuleRepository implements compliance.Repository using GORM
type GormComplianceRuleRepository struct {
	db *gorm.DB
}

// NewGormComplianceRuleRepository creates a new GormComplianceRuleRepository
func NewGormComplianceRuleRepository(db *gorm.DB) *GormComplianceRuleRepository {
	return &GormComplianceRuleRepository{db: db}
}

// FindByID finds a rule by its ID
func (r *GormComplianceRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*compliance.Rule, error) {
	var rule compliance.Rule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindActive finds all active rules ordered by priority, highest first
func (r *GormComplianceRuleRepository) FindActive(ctx context.Context) ([]compliance.Rule, error) {
	var rules []compliance.Rule
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC, name ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Save creates or updates a rule
func (r *GormComplianceRuleRepository) Save(ctx context.Context, rule *compliance.Rule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Ensure GormComplianceRuleRepository implements compliance.Repository
var _ compliance.Repository = (*GormComplianceRuleRepository)(nil)
