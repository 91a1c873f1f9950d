package compliance

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for compliance rules
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	FindActive(ctx context.Context) ([]Rule, error)
	Save(ctx context.Context, r *Rule) error
}
