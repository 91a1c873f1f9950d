package affiliate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/domain/source"
	"github.com/shopspring/decimal"
)

const (
	// AmazonSlug is the registry key for the Amazon Partners plugin
	AmazonSlug = "amazon-partners"

	amazonBaseQuality  = 50
	amazonRatingWeight = 8
	amazonReviewWeight = 4
	amazonPrimeBonus   = 10
)

// amazonConfig is the source config blob the Amazon Partners plugin expects
type amazonConfig struct {
	PartnerTag     string          `json:"tag"`
	FeedURL        string          `json:"feedUrl"`
	Marketplace    string          `json:"marketplace"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
}

// AmazonPlugin syncs offers from an Amazon Partners product feed
type AmazonPlugin struct {
	config amazonConfig
	client *http.Client
}

// NewAmazonPlugin creates a new Amazon Partners plugin instance
func NewAmazonPlugin() *AmazonPlugin {
	return &AmazonPlugin{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Slug returns the stable registry key for this network
func (p *AmazonPlugin) Slug() string {
	return AmazonSlug
}

// Initialize parses and validates the source config blob
func (p *AmazonPlugin) Initialize(config json.RawMessage) error {
	var cfg amazonConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if cfg.PartnerTag == "" {
		return shared.NewDomainError("INVALID_CONFIG", "Amazon config requires a partner tag")
	}
	if cfg.FeedURL == "" {
		return shared.NewDomainError("INVALID_CONFIG", "Amazon config requires a feed URL")
	}
	if u, err := url.Parse(cfg.FeedURL); err != nil || u.Host == "" {
		return shared.NewDomainError("INVALID_CONFIG", "Amazon feed URL must be absolute")
	}
	if cfg.CommissionRate.IsZero() {
		cfg.CommissionRate = decimal.NewFromInt(3)
	}

	p.config = cfg
	return nil
}

// TestConnection verifies the feed endpoint is reachable
func (p *AmazonPlugin) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.FeedURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: feed returned status %d", shared.ErrSourceConnection, resp.StatusCode)
	}
	return nil
}

// FetchOffers pulls the current raw feed for the configured partner tag
func (p *AmazonPlugin) FetchOffers(ctx context.Context) ([]source.RawOffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.FeedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d", shared.ErrSourceConnection, resp.StatusCode)
	}

	var feed []source.RawOffer
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: malformed feed: %v", shared.ErrSourceConnection, err)
	}
	return feed, nil
}

// ValidateOffer checks one raw record's shape before transformation
func (p *AmazonPlugin) ValidateOffer(raw source.RawOffer) error {
	if raw.String("asin") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing an ASIN")
	}
	if raw.String("title") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing a title")
	}
	if raw.String("url") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing a product URL")
	}
	if raw.Float("price") <= 0 {
		return shared.NewDomainError("INVALID_RECORD", "Record price must be positive")
	}
	return nil
}

// TransformOffer normalizes one validated record into a canonical offer. The
// initial quality score is derived from rating, review volume and the Prime
// badge; tracking data refines it later.
func (p *AmazonPlugin) TransformOffer(raw source.RawOffer, sourceID uuid.UUID) (*offer.Offer, error) {
	slug := strings.ToLower(raw.String("asin"))
	targetURL, err := p.taggedURL(raw.String("url"))
	if err != nil {
		return nil, err
	}

	o, err := offer.NewOffer(sourceID, slug, raw.String("title"), targetURL)
	if err != nil {
		return nil, err
	}

	if err := o.UpdateDetails(raw.String("title"), raw.String("description"), "Amazon", raw.String("category")); err != nil {
		return nil, err
	}

	price := decimal.NewFromFloat(raw.Float("price"))
	oldPrice := decimal.NewFromFloat(raw.Float("oldPrice"))
	if err := o.SetPricing(price, oldPrice, p.config.CommissionRate); err != nil {
		return nil, err
	}

	if raw.Bool("isPrime") {
		o.Badges = append(o.Badges, "prime")
	}
	if region := raw.String("region"); region != "" {
		o.Region = strings.ToUpper(region)
	} else if p.config.Marketplace != "" {
		o.Region = strings.ToUpper(p.config.Marketplace)
	}

	o.SetScores(p.initialQualityScore(raw), o.TrustScore)
	o.ClearDomainEvents()

	return o, nil
}

// initialQualityScore seeds the quality score from network signals:
// base 50, +8 per rating star, +4 per decade of reviews, +10 for Prime.
func (p *AmazonPlugin) initialQualityScore(raw source.RawOffer) int {
	score := float64(amazonBaseQuality)
	score += raw.Float("rating") * amazonRatingWeight
	score += math.Log10(raw.Float("reviews")+1) * amazonReviewWeight
	if raw.Bool("isPrime") {
		score += amazonPrimeBonus
	}
	return offer.ClampScore(int(math.Round(score)))
}

// taggedURL appends the partner tag to the merchant URL
func (p *AmazonPlugin) taggedURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", shared.NewDomainError("INVALID_RECORD", "Record product URL must be absolute")
	}
	q := u.Query()
	q.Set("tag", p.config.PartnerTag)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Ensure AmazonPlugin implements source.Plugin
var _ source.Plugin = (*AmazonPlugin)(nil)
