package source

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for sources
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Source, error)
	FindActive(ctx context.Context) ([]Source, error)
	Save(ctx context.Context, s *Source) error
}
