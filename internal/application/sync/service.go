// Package sync orchestrates offer synchronization from affiliate networks.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/source"
	"github.com/redakta/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PluginResolver resolves a registered affiliate network plugin by slug
type PluginResolver interface {
	Resolve(slug string) (source.Plugin, error)
}

// CacheInvalidator drops cached selection slices after offers change
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Service pulls offer feeds from affiliate networks and reconciles them with
// the offer store. Record-level failures accumulate in the result; only
// source-level failures (bad config, unreachable network) abort a source, and
// never the whole batch.
type Service struct {
	sourceRepo    source.Repository
	offerRepo     offer.Repository
	resolver      PluginResolver
	cache         CacheInvalidator
	metrics       *telemetry.OfferMetrics
	logger        *zap.Logger
	sourceTimeout time.Duration
}

// Option configures the sync service
type Option func(*Service)

// WithSourceTimeout bounds how long one source's sync may take
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.sourceTimeout = d
	}
}

// WithMetrics attaches business metrics recording
func WithMetrics(m *telemetry.OfferMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a new sync service
func NewService(
	sourceRepo source.Repository,
	offerRepo offer.Repository,
	resolver PluginResolver,
	cache CacheInvalidator,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		sourceRepo:    sourceRepo,
		offerRepo:     offerRepo,
		resolver:      resolver,
		cache:         cache,
		logger:        logger,
		sourceTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncSource pulls the feed for one source and reconciles it with the store.
// Offers present in the feed are inserted or patched; offers of this source
// absent from the feed are deactivated, never deleted.
func (s *Service) SyncSource(ctx context.Context, sourceID uuid.UUID) (*source.SyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "sync_source",
		telemetry.WithAttribute(telemetry.SpanAttrSourceID, sourceID.String()),
	)
	defer span.End()

	src, err := s.sourceRepo.FindByID(ctx, sourceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !src.IsActive {
		err := fmt.Errorf("%w: source '%s' is inactive", shared.ErrInvalidState, src.Name)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sourceTimeout)
		defer cancel()
	}

	result, err := s.runSync(ctx, src)
	if err != nil {
		src.RecordSyncFailure(err.Error())
		if saveErr := s.sourceRepo.Save(ctx, src); saveErr != nil {
			s.logger.Error("Failed to record sync failure",
				zap.String("source_id", src.ID.String()),
				zap.Error(saveErr),
			)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	src.RecordSyncSuccess()
	if err := s.sourceRepo.Save(ctx, src); err != nil {
		s.logger.Error("Failed to record sync success",
			zap.String("source_id", src.ID.String()),
			zap.Error(err),
		)
	}

	if result.Added > 0 || result.Updated > 0 || result.Removed > 0 {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("Selection cache invalidation failed after sync", zap.Error(err))
		}
	}

	s.metrics.RecordSync(ctx, src.PluginSlug, result.Added, result.Updated, result.Removed, len(result.Errors))

	s.logger.Info("Source sync completed",
		zap.String("source_id", src.ID.String()),
		zap.String("source_name", src.Name),
		zap.Int("processed", result.Processed),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("record_errors", len(result.Errors)),
	)

	return result, nil
}

func (s *Service) runSync(ctx context.Context, src *source.Source) (*source.SyncResult, error) {
	plugin, err := s.resolver.Resolve(src.PluginSlug)
	if err != nil {
		return nil, err
	}

	if err := plugin.Initialize(json.RawMessage(src.Config)); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}
	if err := plugin.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}

	raws, err := plugin.FetchOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}

	result := &source.SyncResult{SourceID: src.ID}
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		result.Processed++

		if err := plugin.ValidateOffer(raw); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		incoming, err := plugin.TransformOffer(raw, src.ID)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		seen[incoming.Slug] = true

		if err := s.upsertOffer(ctx, incoming, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("offer '%s': %v", incoming.Slug, err))
		}
	}

	if err := s.deactivateAbsent(ctx, src.ID, seen, result); err != nil {
		return nil, err
	}

	return result, nil
}

// upsertOffer inserts a new offer or patches the stored one in place.
// Quality and trust scores of an existing offer are owned by the performance
// recomputation and are not overwritten by feed data.
func (s *Service) upsertOffer(ctx context.Context, incoming *offer.Offer, result *source.SyncResult) error {
	existing, err := s.offerRepo.FindBySourceAndSlug(ctx, incoming.SourceID, incoming.Slug)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			if err := s.offerRepo.Save(ctx, incoming); err != nil {
				return err
			}
			result.Added++
			return nil
		}
		return err
	}

	if err := existing.UpdateDetails(incoming.Title, incoming.Description, incoming.Merchant, incoming.Category); err != nil {
		return err
	}
	if err := existing.SetPricing(incoming.Price, incoming.OldPrice, incoming.CommissionRate); err != nil {
		return err
	}
	if err := existing.SetValidity(incoming.ValidFrom, incoming.ValidUntil); err != nil {
		return err
	}
	existing.TargetURL = incoming.TargetURL
	existing.Currency = incoming.Currency
	existing.Region = incoming.Region
	existing.Tags = incoming.Tags
	existing.Badges = incoming.Badges
	existing.Disclaimer = incoming.Disclaimer

	if !existing.IsActive {
		if err := existing.Activate(); err != nil {
			return err
		}
	}

	if err := s.offerRepo.Save(ctx, existing); err != nil {
		return err
	}
	result.Updated++
	return nil
}

func (s *Service) deactivateAbsent(ctx context.Context, sourceID uuid.UUID, seen map[string]bool, result *source.SyncResult) error {
	stored, err := s.offerRepo.FindBySource(ctx, sourceID)
	if err != nil {
		return err
	}

	for i := range stored {
		o := &stored[i]
		if seen[o.Slug] || !o.IsActive {
			continue
		}
		if err := o.Deactivate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("offer '%s': %v", o.Slug, err))
			continue
		}
		if err := s.offerRepo.Save(ctx, o); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("offer '%s': %v", o.Slug, err))
			continue
		}
		result.Removed++
	}

	return nil
}

// SyncAll syncs every active source, one at a time. A failing source is
// reported in its result's Errors and never aborts the batch.
func (s *Service) SyncAll(ctx context.Context) ([]source.SyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "sync_all")
	defer span.End()

	sources, err := s.sourceRepo.FindActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	results := make([]source.SyncResult, 0, len(sources))
	for i := range sources {
		src := &sources[i]
		result, err := s.SyncSource(ctx, src.ID)
		if err != nil {
			s.logger.Error("Source sync failed",
				zap.String("source_id", src.ID.String()),
				zap.String("source_name", src.Name),
				zap.Error(err),
			)
			results = append(results, source.SyncResult{
				SourceID: src.ID,
				Errors:   []string{err.Error()},
			})
			continue
		}
		results = append(results, *result)
	}

	return results, nil
}
