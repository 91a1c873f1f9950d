package tracking

import (
	"math"

	"github.com/redakta/backend/internal/domain/offer"
	"github.com/shopspring/decimal"
)

// Quality score components. Conversion rate dominates; click volume and order
// value add diminishing-return components on a log scale.
const (
	convRateWeight      = 400.0
	convRateCap         = 40.0
	clickVolumeWeight   = 10.0
	clickVolumeCap      = 30.0
	orderValueWeight    = 3.0
	orderValueCap       = 30.0
	trustBase           = 50
	trustMerchantBonus  = 10
	trustDetailBonus    = 10
	trustBadgeBonus     = 10
	trustDisclosure     = 15
	trustValidityBonus  = 15
	minMeaningfulDetail = 50
)

// qualityScore recomputes an offer's quality from observed performance
func qualityScore(clicks, conversions int64, avgOrderValue decimal.Decimal) int {
	var convRate float64
	if clicks > 0 {
		convRate = float64(conversions) / float64(clicks)
	}

	score := math.Min(convRate*convRateWeight, convRateCap) +
		math.Min(math.Log10(float64(clicks)+1)*clickVolumeWeight, clickVolumeCap) +
		math.Min(math.Log10(avgOrderValue.InexactFloat64()+1)*orderValueWeight, orderValueCap)

	return offer.ClampScore(int(math.Round(score)))
}

// trustScore derives a trust signal from how complete the offer's merchant
// presentation is
func trustScore(o *offer.Offer) int {
	score := trustBase
	if o.Merchant != "" {
		score += trustMerchantBonus
	}
	if len(o.Description) > minMeaningfulDetail {
		score += trustDetailBonus
	}
	if o.HasBadges() {
		score += trustBadgeBonus
	}
	if o.Disclaimer != "" {
		score += trustDisclosure
	}
	if o.ValidFrom != nil || o.ValidUntil != nil {
		score += trustValidityBonus
	}
	return offer.ClampScore(score)
}
