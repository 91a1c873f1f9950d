package tracking

import (
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status tracks a click through its lifecycle
type Status string

const (
	StatusCreated           Status = "created"
	StatusRedirected        Status = "redirected"
	StatusConversionTracked Status = "conversion_tracked"
)

// Click records one outbound interaction with an offer. It carries a
// denormalized snapshot of the offer so analytics stay meaningful after
// the offer is updated or deactivated.
type Click struct {
	shared.BaseAggregateRoot
	OfferID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SessionID string    `gorm:"type:varchar(120);not null;index"`
	UserID    string    `gorm:"type:varchar(120);index"`
	PageSlug  string    `gorm:"type:varchar(200)"`
	Status    Status    `gorm:"type:varchar(30);not null;default:'created'"`

	// offer snapshot at click time
	OfferSlug           string          `gorm:"type:varchar(120);not null"`
	OfferTitle          string          `gorm:"type:varchar(200);not null"`
	OfferCategory       string          `gorm:"type:varchar(60)"`
	OfferCommissionRate decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`

	UTMSource   string `gorm:"type:varchar(60)"`
	UTMMedium   string `gorm:"type:varchar(60)"`
	UTMCampaign string `gorm:"type:varchar(120)"`
	UTMContent  string `gorm:"type:varchar(120)"`

	ConversionTracked bool            `gorm:"not null;default:false;index"`
	ConversionValue   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ConversionType    string          `gorm:"type:varchar(40)"`
	ConvertedAt       *time.Time
	RedirectedAt      *time.Time
}

// TableName returns the table name for GORM
func (Click) TableName() string {
	return "clicks"
}

// UTMParams carries the attribution parameters captured with a click
type UTMParams struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
}

// NewClick records a click against an active offer
func NewClick(o *offer.Offer, sessionID, userID, pageSlug string, utm UTMParams) (*Click, error) {
	if o == nil {
		return nil, shared.ErrNotFound
	}
	if !o.IsActive {
		return nil, shared.ErrOfferInactive
	}
	if sessionID == "" {
		return nil, shared.NewDomainError("INVALID_SESSION", "Session id cannot be empty")
	}

	return &Click{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		OfferID:             o.ID,
		SessionID:           sessionID,
		UserID:              userID,
		PageSlug:            pageSlug,
		Status:              StatusCreated,
		OfferSlug:           o.Slug,
		OfferTitle:          o.Title,
		OfferCategory:       o.Category,
		OfferCommissionRate: o.CommissionRate,
		UTMSource:           utm.Source,
		UTMMedium:           utm.Medium,
		UTMCampaign:         utm.Campaign,
		UTMContent:          utm.Content,
		ConversionValue:     decimal.Zero,
	}, nil
}

// MarkRedirected records that the visitor was forwarded to the merchant.
// Calling it again, or after a conversion was tracked, is a no-op.
func (c *Click) MarkRedirected() {
	if c.Status != StatusCreated {
		return
	}
	now := time.Now()
	c.Status = StatusRedirected
	c.RedirectedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()
}

// TrackConversion attributes a conversion to this click. A repeated call
// overwrites the previous value and type rather than accumulating; the
// network's postback is treated as the authoritative latest state.
func (c *Click) TrackConversion(value decimal.Decimal, conversionType string) error {
	if value.IsNegative() {
		return shared.NewDomainError("INVALID_CONVERSION_VALUE", "Conversion value cannot be negative")
	}
	if conversionType == "" {
		conversionType = "sale"
	}

	now := time.Now()
	c.Status = StatusConversionTracked
	c.ConversionTracked = true
	c.ConversionValue = value
	c.ConversionType = conversionType
	c.ConvertedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()

	return nil
}

// EstimatedCommission returns the commission earned by this click's
// conversion, based on the snapshot rate.
func (c *Click) EstimatedCommission() decimal.Decimal {
	if !c.ConversionTracked {
		return decimal.Zero
	}
	return c.OfferCommissionRate.Div(decimal.NewFromInt(100)).Mul(c.ConversionValue)
}
