// Package tracking records clicks and conversions and resolves cloaked
// redirect links.
package tracking

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/tracking"
	"github.com/redakta/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service tracks outbound clicks and merchant conversion postbacks, and
// maintains the performance-derived offer scores.
type Service struct {
	clickRepo tracking.Repository
	offerRepo offer.Repository
	metrics   *telemetry.OfferMetrics
	logger    *zap.Logger

	redirectBase    string
	statsWindowDays int
}

// Option configures the tracking service
type Option func(*Service)

// WithMetrics attaches business metrics recording
func WithMetrics(m *telemetry.OfferMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStatsWindow sets the default stats window in days
func WithStatsWindow(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.statsWindowDays = days
		}
	}
}

// NewService creates a new tracking service
func NewService(
	clickRepo tracking.Repository,
	offerRepo offer.Repository,
	redirectBaseURL string,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		clickRepo:       clickRepo,
		offerRepo:       offerRepo,
		logger:          logger,
		redirectBase:    strings.TrimRight(redirectBaseURL, "/"),
		statsWindowDays: 30,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackClick persists a click against an active offer and bumps the offer's
// click counter with a per-row increment.
func (s *Service) TrackClick(ctx context.Context, req TrackClickRequest) (*TrackClickResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "track_click",
		telemetry.WithAttribute(telemetry.SpanAttrOfferID, req.OfferID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, req.SessionID),
	)
	defer span.End()

	o, err := s.offerRepo.FindByID(ctx, req.OfferID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	utm := req.UTM
	if utm.Source == "" {
		utm.Source = "redakta"
	}
	if utm.Medium == "" {
		utm.Medium = "offer"
	}
	if utm.Campaign == "" {
		utm.Campaign = o.Category
	}

	click, err := tracking.NewClick(o, req.SessionID, req.UserID, req.PageSlug, utm)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.clickRepo.Save(ctx, click); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.offerRepo.IncrementCounters(ctx, o.ID, offer.CounterDelta{Clicks: 1}); err != nil {
		s.logger.Error("Click counter increment failed",
			zap.String("offer_id", o.ID.String()),
			zap.Error(err),
		)
	}

	s.metrics.RecordClick(ctx, o.Slug, o.Category)
	s.logger.Info("offer_click",
		zap.String("click_id", click.ID.String()),
		zap.String("offer_id", o.ID.String()),
		zap.String("offer_slug", o.Slug),
		zap.String("session_id", req.SessionID),
		zap.String("page_slug", req.PageSlug),
	)

	return &TrackClickResponse{
		ClickID:     click.ID,
		TrackingURL: s.trackingURL(o, click, utm, req.PageSlug),
	}, nil
}

func (s *Service) trackingURL(o *offer.Offer, click *tracking.Click, utm tracking.UTMParams, pageSlug string) string {
	params := url.Values{}
	params.Set("click_id", click.ID.String())
	params.Set("utm_source", utm.Source)
	params.Set("utm_medium", utm.Medium)
	if utm.Campaign != "" {
		params.Set("utm_campaign", utm.Campaign)
	}
	if utm.Content != "" {
		params.Set("utm_content", utm.Content)
	}
	if pageSlug != "" {
		params.Set("ref", pageSlug)
	}
	return s.redirectBase + "/go/" + o.Slug + "?" + params.Encode()
}

// ResolveRedirect resolves a cloaked slug to the merchant target URL.
// Inactive offers resolve to NotFound; a dead link must never forward the
// visitor. The click_id parameter is consumed for attribution; every other
// inbound parameter is re-projected onto the target URL, inbound winning
// over merchant parameters of the same name.
func (s *Service) ResolveRedirect(ctx context.Context, slug string, params url.Values) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "resolve_redirect",
		telemetry.WithAttribute(telemetry.SpanAttrOfferSlug, slug),
	)
	defer span.End()

	o, err := s.offerRepo.FindBySlug(ctx, slug)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	if !o.IsActive {
		return "", fmt.Errorf("%w: offer '%s'", shared.ErrNotFound, slug)
	}

	if clickID := params.Get("click_id"); clickID != "" {
		s.markRedirected(ctx, clickID)
	}

	target, err := url.Parse(o.TargetURL)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("%w: offer '%s' has an unparsable target", shared.ErrInvalidState, slug)
	}

	query := target.Query()
	for key, values := range params {
		if key == "click_id" {
			continue
		}
		query[key] = values
	}
	target.RawQuery = query.Encode()

	return target.String(), nil
}

// markRedirected is best-effort: a failed attribution must not break the
// visitor's redirect.
func (s *Service) markRedirected(ctx context.Context, rawClickID string) {
	clickID, err := uuid.Parse(rawClickID)
	if err != nil {
		s.logger.Warn("Malformed click_id on redirect", zap.String("click_id", rawClickID))
		return
	}

	click, err := s.clickRepo.FindByID(ctx, clickID)
	if err != nil {
		s.logger.Warn("Click lookup failed on redirect",
			zap.String("click_id", rawClickID),
			zap.Error(err),
		)
		return
	}

	click.MarkRedirected()
	if err := s.clickRepo.Save(ctx, click); err != nil {
		s.logger.Warn("Click redirect update failed",
			zap.String("click_id", rawClickID),
			zap.Error(err),
		)
	}
}

// TrackConversion attributes a conversion to a click (by id, else the
// session's latest click), bumps the offer's conversion counter and
// recomputes the performance-derived quality and trust scores.
func (s *Service) TrackConversion(ctx context.Context, req TrackConversionRequest) (*TrackConversionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "track_conversion")
	defer span.End()

	click, err := s.resolveClick(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// A retried postback overwrites the click's value but is still the same
	// conversion: the offer counter and the conversion metric fire once.
	wasTracked := click.ConversionTracked

	if err := click.TrackConversion(req.ConversionValue, req.ConversionType); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.clickRepo.Save(ctx, click); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !wasTracked {
		if err := s.offerRepo.IncrementCounters(ctx, click.OfferID, offer.CounterDelta{Conversions: 1}); err != nil {
			s.logger.Error("Conversion counter increment failed",
				zap.String("offer_id", click.OfferID.String()),
				zap.Error(err),
			)
		}
	}

	s.recomputeScores(ctx, click.OfferID)

	if !wasTracked {
		s.metrics.RecordConversion(ctx, click.OfferSlug, click.OfferCategory, click.ConversionType, click.ConversionValue)
	}
	s.logger.Info("offer_conversion",
		zap.String("click_id", click.ID.String()),
		zap.String("offer_id", click.OfferID.String()),
		zap.String("conversion_type", click.ConversionType),
		zap.String("conversion_value", click.ConversionValue.String()),
	)

	return &TrackConversionResponse{
		ConversionID:    click.ID,
		OfferID:         click.OfferID,
		ConversionValue: click.ConversionValue,
		ConversionType:  click.ConversionType,
	}, nil
}

func (s *Service) resolveClick(ctx context.Context, req TrackConversionRequest) (*tracking.Click, error) {
	if req.ClickID != nil {
		return s.clickRepo.FindByID(ctx, *req.ClickID)
	}
	if req.SessionID != "" {
		return s.clickRepo.FindLatestBySession(ctx, req.SessionID)
	}
	return nil, fmt.Errorf("%w: conversion needs a click id or a session id", shared.ErrInvalidInput)
}

// recomputeScores refreshes quality and trust from observed performance.
// Best-effort: a scoring failure must not fail the conversion.
func (s *Service) recomputeScores(ctx context.Context, offerID uuid.UUID) {
	o, err := s.offerRepo.FindByID(ctx, offerID)
	if err != nil {
		s.logger.Warn("Score recomputation skipped, offer fetch failed",
			zap.String("offer_id", offerID.String()),
			zap.Error(err),
		)
		return
	}

	avgOrderValue, err := s.clickRepo.AverageOrderValue(ctx, offerID)
	if err != nil {
		s.logger.Warn("Score recomputation skipped, order value query failed",
			zap.String("offer_id", offerID.String()),
			zap.Error(err),
		)
		return
	}

	quality := qualityScore(o.ClickCount, o.ConversionCount, avgOrderValue)
	trust := trustScore(o)
	o.RecalculateConversionRate()

	if err := s.offerRepo.UpdateScores(ctx, offerID, quality, trust, o.ConversionRate); err != nil {
		s.logger.Warn("Score update failed",
			zap.String("offer_id", offerID.String()),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("Offer scores recomputed",
		zap.String("offer_id", offerID.String()),
		zap.Int("quality_score", quality),
		zap.Int("trust_score", trust),
	)
}

// GetOfferStats aggregates totals and a daily breakdown for one offer.
// Zero bounds default to the configured stats window ending now.
func (s *Service) GetOfferStats(ctx context.Context, offerID uuid.UUID, from, to time.Time) (*OfferStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "offer_stats",
		telemetry.WithAttribute(telemetry.SpanAttrOfferID, offerID.String()),
	)
	defer span.End()

	o, err := s.offerRepo.FindByID(ctx, offerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -s.statsWindowDays)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: stats window ends before it starts", shared.ErrInvalidInput)
	}

	daily, err := s.clickRepo.DailyStats(ctx, offerID, from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stats := &OfferStats{
		OfferID:      offerID,
		From:         from,
		To:           to,
		TotalRevenue: decimal.Zero,
		Daily:        daily,
	}
	for _, day := range daily {
		stats.TotalClicks += day.Clicks
		stats.TotalConversions += day.Conversions
		stats.TotalRevenue = stats.TotalRevenue.Add(day.Revenue)
	}
	if stats.TotalClicks > 0 {
		stats.ConversionRate = float64(stats.TotalConversions) / float64(stats.TotalClicks)
	}
	stats.EstimatedCommission = o.CommissionRate.Div(decimal.NewFromInt(100)).Mul(stats.TotalRevenue)

	return stats, nil
}
