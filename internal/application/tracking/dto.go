package tracking

import (
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/tracking"
	"github.com/shopspring/decimal"
)

// TrackClickRequest records one outbound click on an offer
type TrackClickRequest struct {
	OfferID   uuid.UUID          `json:"offerId"`
	SessionID string             `json:"sessionId"`
	UserID    string             `json:"userId,omitempty"`
	PageSlug  string             `json:"pageSlug,omitempty"`
	UTM       tracking.UTMParams `json:"-"`
}

// TrackClickResponse returns the click id and the URL the visitor follows
type TrackClickResponse struct {
	ClickID     uuid.UUID `json:"clickId"`
	TrackingURL string    `json:"trackingUrl"`
}

// TrackConversionRequest attributes a conversion to a click or a session
type TrackConversionRequest struct {
	ClickID         *uuid.UUID      `json:"clickId,omitempty"`
	SessionID       string          `json:"sessionId,omitempty"`
	ConversionValue decimal.Decimal `json:"conversionValue"`
	ConversionType  string          `json:"conversionType,omitempty"`
}

// TrackConversionResponse confirms the recorded conversion
type TrackConversionResponse struct {
	ConversionID    uuid.UUID       `json:"conversionId"`
	OfferID         uuid.UUID       `json:"offerId"`
	ConversionValue decimal.Decimal `json:"conversionValue"`
	ConversionType  string          `json:"conversionType"`
}

// OfferStats aggregates click activity for one offer over a window
type OfferStats struct {
	OfferID             uuid.UUID            `json:"offerId"`
	From                time.Time            `json:"from"`
	To                  time.Time            `json:"to"`
	TotalClicks         int64                `json:"totalClicks"`
	TotalConversions    int64                `json:"totalConversions"`
	ConversionRate      float64              `json:"conversionRate"`
	TotalRevenue        decimal.Decimal      `json:"totalRevenue"`
	EstimatedCommission decimal.Decimal      `json:"estimatedCommission"`
	Daily               []tracking.DailyStat `json:"daily"`
}
