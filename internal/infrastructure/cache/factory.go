package cache

import (
	"github.com/redakta/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewSelectionCache builds the selection cache named by the configuration:
// Redis when redis.enabled is set, the in-memory cache otherwise. Falling
// back to in-memory keeps single-instance deployments free of a Redis
// dependency.
func NewSelectionCache(cfg *config.Config, logger *zap.Logger) (SelectionCache, error) {
	if cfg.Redis.Enabled {
		redisCache, err := NewRedisSelectionCache(&cfg.Redis,
			WithRedisTTL(cfg.Selection.CacheTTL),
			WithRedisLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Redis selection cache",
			zap.String("addr", cfg.Redis.Addr()))
		return redisCache, nil
	}

	logger.Info("Using in-memory selection cache")
	return NewInMemorySelectionCache(
		WithInMemoryTTL(cfg.Selection.CacheTTL),
		WithInMemoryLogger(logger),
	), nil
}
