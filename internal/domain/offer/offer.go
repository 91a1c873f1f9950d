package offer

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Score bounds shared by quality and trust scores
const (
	MinScore = 0
	MaxScore = 100
)

// Offer represents a canonical monetizable recommendation synced from an
// affiliate network. It is the aggregate root for offer operations.
// Offers are never hard-deleted; a withdrawn offer is deactivated instead so
// click history keeps a valid reference.
type Offer struct {
	shared.BaseAggregateRoot
	SourceID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_offer_source_slug,priority:1"`
	Slug               string          `gorm:"type:varchar(120);not null;uniqueIndex:idx_offer_source_slug,priority:2"`
	Title              string          `gorm:"type:varchar(200);not null"`
	Description        string          `gorm:"type:text"`
	Merchant           string          `gorm:"type:varchar(120);index"`
	Category           string          `gorm:"type:varchar(60);index"`
	Tags               []string        `gorm:"type:jsonb;serializer:json"`
	Badges             []string        `gorm:"type:jsonb;serializer:json"`
	Price              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	OldPrice           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'EUR'"`
	CommissionRate     decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"` // percent of price
	CommissionEstimate decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QualityScore       int             `gorm:"not null;default:0"`
	TrustScore         int             `gorm:"not null;default:50"`
	Region             string          `gorm:"type:varchar(10);index"`
	Emotion            string          `gorm:"type:varchar(40)"`
	IsActive           bool            `gorm:"not null;default:true;index"`
	IsFeatured         bool            `gorm:"not null;default:false"`
	Priority           int             `gorm:"not null;default:0"`
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	ClickCount         int64           `gorm:"not null;default:0"`
	ConversionCount    int64           `gorm:"not null;default:0"`
	ConversionRate     float64         `gorm:"not null;default:0"`
	TargetURL          string          `gorm:"type:text;not null"`
	Disclaimer         string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Offer) TableName() string {
	return "offers"
}

// NewOffer creates a new offer for a source
func NewOffer(sourceID uuid.UUID, slug, title, targetURL string) (*Offer, error) {
	if err := validateSlug(slug); err != nil {
		return nil, err
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateTargetURL(targetURL); err != nil {
		return nil, err
	}

	o := &Offer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SourceID:          sourceID,
		Slug:              strings.ToLower(slug),
		Title:             title,
		TargetURL:         targetURL,
		Currency:          "EUR",
		Price:             decimal.Zero,
		OldPrice:          decimal.Zero,
		CommissionRate:    decimal.Zero,
		TrustScore:        50,
		IsActive:          true,
	}

	o.AddDomainEvent(NewOfferCreatedEvent(o))

	return o, nil
}

// UpdateDetails updates the offer's descriptive fields
func (o *Offer) UpdateDetails(title, description, merchant, category string) error {
	if err := validateTitle(title); err != nil {
		return err
	}

	o.Title = title
	o.Description = description
	o.Merchant = merchant
	o.Category = strings.ToLower(category)
	o.UpdatedAt = time.Now()
	o.IncrementVersion()

	o.AddDomainEvent(NewOfferUpdatedEvent(o))

	return nil
}

// SetPricing sets price, old price and commission rate
func (o *Offer) SetPricing(price, oldPrice, commissionRate decimal.Decimal) error {
	if price.IsNegative() || oldPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if commissionRate.IsNegative() || commissionRate.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_COMMISSION", "Commission rate must be within [0,100] percent")
	}

	o.Price = price
	o.OldPrice = oldPrice
	o.CommissionRate = commissionRate
	o.CommissionEstimate = o.Revenue()
	o.UpdatedAt = time.Now()
	o.IncrementVersion()

	return nil
}

// SetValidity sets the validity window; either bound may be nil (unbounded)
func (o *Offer) SetValidity(from, until *time.Time) error {
	if from != nil && until != nil && until.Before(*from) {
		return shared.NewDomainError("INVALID_VALIDITY", "Validity window ends before it starts")
	}
	o.ValidFrom = from
	o.ValidUntil = until
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	return nil
}

// SetScores sets quality and trust scores, clamped to [0,100]
func (o *Offer) SetScores(quality, trust int) {
	o.QualityScore = ClampScore(quality)
	o.TrustScore = ClampScore(trust)
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
}

// Activate re-enables the offer for display
func (o *Offer) Activate() error {
	if o.IsActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Offer is already active")
	}
	o.IsActive = true
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	return nil
}

// Deactivate withdraws the offer from display without deleting it
func (o *Offer) Deactivate() error {
	if !o.IsActive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Offer is already inactive")
	}
	o.IsActive = false
	o.UpdatedAt = time.Now()
	o.IncrementVersion()

	o.AddDomainEvent(NewOfferDeactivatedEvent(o))

	return nil
}

// ApplyTitleLimit truncates the title to maxLen runes.
// Returns true if the title was changed; a second call is a no-op.
func (o *Offer) ApplyTitleLimit(maxLen int) bool {
	if maxLen <= 0 {
		return false
	}
	runes := []rune(o.Title)
	if len(runes) <= maxLen {
		return false
	}
	o.Title = string(runes[:maxLen])
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	o.AddDomainEvent(NewOfferRemediatedEvent(o, "title_truncated"))
	return true
}

// ApplyPriceFloor raises the price to floor if it is below it.
// Returns true if the price was changed; a second call is a no-op.
func (o *Offer) ApplyPriceFloor(floor decimal.Decimal) bool {
	if floor.IsNegative() || o.Price.GreaterThanOrEqual(floor) {
		return false
	}
	o.Price = floor
	o.CommissionEstimate = o.Revenue()
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	o.AddDomainEvent(NewOfferRemediatedEvent(o, "price_clamped"))
	return true
}

// RecordClick increments the click counter and refreshes the conversion rate.
// Persistence must apply this as a per-row increment; this method only keeps
// the in-memory aggregate consistent.
func (o *Offer) RecordClick() {
	o.ClickCount++
	o.RecalculateConversionRate()
	o.UpdatedAt = time.Now()
}

// RecordConversion increments the conversion counter and refreshes the rate
func (o *Offer) RecordConversion() {
	o.ConversionCount++
	o.RecalculateConversionRate()
	o.UpdatedAt = time.Now()
}

// RecalculateConversionRate recomputes conversions/clicks
func (o *Offer) RecalculateConversionRate() {
	if o.ClickCount == 0 {
		o.ConversionRate = 0
		return
	}
	o.ConversionRate = float64(o.ConversionCount) / float64(o.ClickCount)
}

// IsWithinValidity reports whether the offer is valid at the given time
func (o *Offer) IsWithinValidity(now time.Time) bool {
	if o.ValidFrom != nil && now.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && now.After(*o.ValidUntil) {
		return false
	}
	return true
}

// DiscountPercent returns the discount relative to the old price.
// Returns zero when no old price is set.
func (o *Offer) DiscountPercent() decimal.Decimal {
	if o.OldPrice.IsZero() || o.OldPrice.LessThanOrEqual(o.Price) {
		return decimal.Zero
	}
	return o.OldPrice.Sub(o.Price).Div(o.OldPrice).Mul(decimal.NewFromInt(100))
}

// Revenue returns the estimated commission for one conversion
func (o *Offer) Revenue() decimal.Decimal {
	return o.CommissionRate.Div(decimal.NewFromInt(100)).Mul(o.Price)
}

// HasBadges reports whether the merchant supplied any badges
func (o *Offer) HasBadges() bool {
	return len(o.Badges) > 0
}

// ClampScore bounds a score value to [0,100]
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// validateSlug validates the offer slug
func validateSlug(slug string) error {
	if slug == "" {
		return shared.NewDomainError("INVALID_SLUG", "Offer slug cannot be empty")
	}
	if len(slug) > 120 {
		return shared.NewDomainError("INVALID_SLUG", "Offer slug cannot exceed 120 characters")
	}
	for _, r := range slug {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_SLUG", "Offer slug can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

// validateTitle validates the offer title
func validateTitle(title string) error {
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Offer title cannot be empty")
	}
	if len([]rune(title)) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Offer title cannot exceed 200 characters")
	}
	return nil
}

// validateTargetURL validates the merchant target URL
func validateTargetURL(rawURL string) error {
	if rawURL == "" {
		return shared.NewDomainError("INVALID_TARGET_URL", "Target URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return shared.NewDomainError("INVALID_TARGET_URL", "Target URL must be an absolute http(s) URL")
	}
	return nil
}
