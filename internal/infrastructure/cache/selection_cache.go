package cache

import (
	"context"
	"time"

	"github.com/redakta/backend/internal/domain/offer"
)

// SelectionCache stores ranked offer slices keyed by selection context.
// Implementations must treat a stored empty slice and a miss as distinct
// states; the selection service degrades to the last cached slice when the
// database is unavailable.
type SelectionCache interface {
	// Get returns the cached slice for a key. The second return value
	// reports whether the key was present and unexpired.
	Get(ctx context.Context, key string) ([]offer.Offer, bool, error)
	Set(ctx context.Context, key string, offers []offer.Offer, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// InvalidateAll drops every cached slice. Used by rotation and by the
	// compliance invalidation hook.
	InvalidateAll(ctx context.Context) error
	Close() error
}
