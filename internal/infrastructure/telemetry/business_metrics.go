// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a nil meter is passed to NewOfferMetrics.
var ErrMeterNil = errors.New("meter must not be nil")

// OfferMetrics provides business metrics for the offer system.
// It tracks click and conversion activity, feed sync outcomes, and
// selection cache effectiveness.
type OfferMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	clicksTotal          metric.Int64Counter
	conversionsTotal     metric.Int64Counter
	conversionValueTotal metric.Float64Counter

	syncOffersTotal metric.Int64Counter
	syncErrorsTotal metric.Int64Counter

	selectionRequestsTotal metric.Int64Counter
	selectionDuration      metric.Float64Histogram
}

// NewOfferMetrics creates a new OfferMetrics instance on the given meter.
func NewOfferMetrics(meter metric.Meter, logger *zap.Logger) (*OfferMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	om := &OfferMetrics{
		meter:  meter,
		logger: logger,
	}

	var err error

	om.clicksTotal, err = meter.Int64Counter(
		"offer_clicks_total",
		metric.WithDescription("Total number of tracked offer clicks"),
		metric.WithUnit("{clicks}"),
	)
	if err != nil {
		return nil, err
	}

	om.conversionsTotal, err = meter.Int64Counter(
		"offer_conversions_total",
		metric.WithDescription("Total number of tracked conversions"),
		metric.WithUnit("{conversions}"),
	)
	if err != nil {
		return nil, err
	}

	om.conversionValueTotal, err = meter.Float64Counter(
		"offer_conversion_value_total",
		metric.WithDescription("Total conversion order value"),
		metric.WithUnit("{currency}"),
	)
	if err != nil {
		return nil, err
	}

	om.syncOffersTotal, err = meter.Int64Counter(
		"offer_sync_offers_total",
		metric.WithDescription("Offers touched by feed syncs, by operation"),
		metric.WithUnit("{offers}"),
	)
	if err != nil {
		return nil, err
	}

	om.syncErrorsTotal, err = meter.Int64Counter(
		"offer_sync_record_errors_total",
		metric.WithDescription("Feed records rejected during sync"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	om.selectionRequestsTotal, err = meter.Int64Counter(
		"offer_selection_requests_total",
		metric.WithDescription("Offer selection requests, by cache outcome"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	om.selectionDuration, err = meter.Float64Histogram(
		"offer_selection_duration_seconds",
		metric.WithDescription("Offer selection pipeline duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return om, nil
}

// RecordClick records a tracked click for an offer.
func (om *OfferMetrics) RecordClick(ctx context.Context, offerSlug, category string) {
	if om == nil {
		return
	}
	om.clicksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("offer_slug", offerSlug),
		attribute.String("category", category),
	))
}

// RecordConversion records a tracked conversion and its order value.
func (om *OfferMetrics) RecordConversion(ctx context.Context, offerSlug, category, conversionType string, value decimal.Decimal) {
	if om == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("offer_slug", offerSlug),
		attribute.String("category", category),
		attribute.String("conversion_type", conversionType),
	)
	om.conversionsTotal.Add(ctx, 1, attrs)
	om.conversionValueTotal.Add(ctx, value.InexactFloat64(), attrs)
}

// RecordSync records the outcome of a single source sync.
func (om *OfferMetrics) RecordSync(ctx context.Context, sourceSlug string, added, updated, removed, recordErrors int) {
	if om == nil {
		return
	}
	source := attribute.String("source_slug", sourceSlug)
	om.syncOffersTotal.Add(ctx, int64(added), metric.WithAttributes(source, attribute.String("operation", "added")))
	om.syncOffersTotal.Add(ctx, int64(updated), metric.WithAttributes(source, attribute.String("operation", "updated")))
	om.syncOffersTotal.Add(ctx, int64(removed), metric.WithAttributes(source, attribute.String("operation", "removed")))
	om.syncErrorsTotal.Add(ctx, int64(recordErrors), metric.WithAttributes(source))
}

// RecordSelection records an offer selection request and its duration.
func (om *OfferMetrics) RecordSelection(ctx context.Context, category string, fromCache bool, elapsed time.Duration) {
	if om == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("category", category),
		attribute.Bool("from_cache", fromCache),
	)
	om.selectionRequestsTotal.Add(ctx, 1, attrs)
	om.selectionDuration.Record(ctx, elapsed.Seconds(), attrs)
}
