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
	// ShareASaleSlug is the registry key for the ShareASale plugin
	ShareASaleSlug = "shareasale"

	shareASaleBaseQuality = 50
	shareASaleEPCWeight   = 12
	shareASaleGoldBonus   = 10
	shareASaleSilverBonus = 5
)

// shareASaleConfig is the source config blob the ShareASale plugin expects
type shareASaleConfig struct {
	AffiliateID string `json:"affiliateId"`
	APIToken    string `json:"apiToken"`
	FeedURL     string `json:"feedUrl"`
}

// ShareASalePlugin syncs offers from a ShareASale datafeed
type ShareASalePlugin struct {
	config shareASaleConfig
	client *http.Client
}

// NewShareASalePlugin creates a new ShareASale plugin instance
func NewShareASalePlugin() *ShareASalePlugin {
	return &ShareASalePlugin{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Slug returns the stable registry key for this network
func (p *ShareASalePlugin) Slug() string {
	return ShareASaleSlug
}

// Initialize parses and validates the source config blob
func (p *ShareASalePlugin) Initialize(config json.RawMessage) error {
	var cfg shareASaleConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if cfg.AffiliateID == "" {
		return shared.NewDomainError("INVALID_CONFIG", "ShareASale config requires an affiliate id")
	}
	if cfg.APIToken == "" {
		return shared.NewDomainError("INVALID_CONFIG", "ShareASale config requires an API token")
	}
	if cfg.FeedURL == "" {
		return shared.NewDomainError("INVALID_CONFIG", "ShareASale config requires a feed URL")
	}
	if u, err := url.Parse(cfg.FeedURL); err != nil || u.Host == "" {
		return shared.NewDomainError("INVALID_CONFIG", "ShareASale feed URL must be absolute")
	}

	p.config = cfg
	return nil
}

// TestConnection verifies credentials against the datafeed endpoint
func (p *ShareASalePlugin) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.FeedURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-ShareASale-Token", p.config.APIToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: datafeed returned status %d", shared.ErrSourceConnection, resp.StatusCode)
	}
	return nil
}

// FetchOffers pulls the current datafeed for the configured affiliate
func (p *ShareASalePlugin) FetchOffers(ctx context.Context) ([]source.RawOffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.FeedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-ShareASale-Token", p.config.APIToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: datafeed returned status %d", shared.ErrSourceConnection, resp.StatusCode)
	}

	var feed []source.RawOffer
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: malformed datafeed: %v", shared.ErrSourceConnection, err)
	}
	return feed, nil
}

// ValidateOffer checks one raw record's shape before transformation
func (p *ShareASalePlugin) ValidateOffer(raw source.RawOffer) error {
	if raw.String("sku") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing a SKU")
	}
	if raw.String("title") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing a title")
	}
	if raw.String("link") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing an affiliate link")
	}
	if raw.String("merchant") == "" {
		return shared.NewDomainError("INVALID_RECORD", "Record is missing a merchant")
	}
	if raw.Float("price") <= 0 {
		return shared.NewDomainError("INVALID_RECORD", "Record price must be positive")
	}
	return nil
}

// TransformOffer normalizes one validated record into a canonical offer.
// The initial quality score is derived from EPC and merchant status.
func (p *ShareASalePlugin) TransformOffer(raw source.RawOffer, sourceID uuid.UUID) (*offer.Offer, error) {
	slug := slugify(raw.String("merchant") + "-" + raw.String("sku"))
	targetURL, err := p.affiliateURL(raw.String("link"))
	if err != nil {
		return nil, err
	}

	o, err := offer.NewOffer(sourceID, slug, raw.String("title"), targetURL)
	if err != nil {
		return nil, err
	}

	if err := o.UpdateDetails(raw.String("title"), raw.String("description"), raw.String("merchant"), raw.String("category")); err != nil {
		return nil, err
	}

	price := decimal.NewFromFloat(raw.Float("price"))
	oldPrice := decimal.NewFromFloat(raw.Float("retailPrice"))
	commission := decimal.NewFromFloat(raw.Float("commissionRate"))
	if err := o.SetPricing(price, oldPrice, commission); err != nil {
		return nil, err
	}

	if strings.EqualFold(raw.String("merchantStatus"), "gold") {
		o.Badges = append(o.Badges, "top-merchant")
	}
	if region := raw.String("region"); region != "" {
		o.Region = strings.ToUpper(region)
	}

	o.SetScores(p.initialQualityScore(raw), o.TrustScore)
	o.ClearDomainEvents()

	return o, nil
}

// initialQualityScore seeds the quality score from network signals:
// base 50, +12 per decade of EPC, +10/+5 for gold/silver merchant status.
func (p *ShareASalePlugin) initialQualityScore(raw source.RawOffer) int {
	score := float64(shareASaleBaseQuality)
	score += math.Log10(raw.Float("epc")+1) * shareASaleEPCWeight
	switch strings.ToLower(raw.String("merchantStatus")) {
	case "gold":
		score += shareASaleGoldBonus
	case "silver":
		score += shareASaleSilverBonus
	}
	return offer.ClampScore(int(math.Round(score)))
}

// affiliateURL appends the affiliate id to the merchant link
func (p *ShareASalePlugin) affiliateURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", shared.NewDomainError("INVALID_RECORD", "Record affiliate link must be absolute")
	}
	q := u.Query()
	q.Set("afftrack", p.config.AffiliateID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// slugify lowercases and strips characters the offer slug rules reject
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen && b.Len() > 0:
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Ensure ShareASalePlugin implements source.Plugin
var _ source.Plugin = (*ShareASalePlugin)(nil)
