package selection

import (
	"context"
	"math"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/infrastructure/cache"
	"github.com/redakta/backend/internal/infrastructure/config"
	"github.com/redakta/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Rank strategies
const (
	StrategyPerformance       = "performance"
	StrategyNewest            = "newest"
	StrategyHighestCommission = "highest_commission"
	StrategyRandom            = "random"
)

// Ranking boosts applied on top of the strategy score
const (
	featuredBoost       = 1000.0
	qualityBoostPerUnit = 10.0
)

// ComplianceChecker gates candidates on active display rules
type ComplianceChecker interface {
	FilterDisplayable(ctx context.Context, offers []offer.Offer) ([]offer.Offer, error)
}

// Meta describes how a selection result was produced
type Meta struct {
	Strategy       string    `json:"strategy"`
	FiltersApplied []string  `json:"filters_applied,omitempty"`
	FromCache      bool      `json:"from_cache"`
	Total          int       `json:"total"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Result is a ranked, shuffled offer slice plus selection metadata
type Result struct {
	Offers []offer.Offer `json:"offers"`
	Meta   Meta          `json:"meta"`
}

// Service implements the context-aware offer selection pipeline. A failure to
// fetch candidates degrades to the last cached baseline slice; GetOffers never
// returns an error to the caller.
type Service struct {
	offerRepo offer.Repository
	cache     cache.SelectionCache
	checker   ComplianceChecker
	metrics   *telemetry.OfferMetrics
	logger    *zap.Logger

	maxPerPage         int
	ratingThreshold    int
	strategy           string
	cacheTTL           time.Duration
	baselineCategories []string
	redirectBase       string

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// Option configures the selection service
type Option func(*Service)

// WithMetrics attaches business metrics recording
func WithMetrics(m *telemetry.OfferMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRandSource overrides the shuffle source, for deterministic tests
func WithRandSource(src rand.Source) Option {
	return func(s *Service) {
		s.rng = rand.New(src)
	}
}

// NewService creates a new selection service
func NewService(
	offerRepo offer.Repository,
	selectionCache cache.SelectionCache,
	checker ComplianceChecker,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		offerRepo:          offerRepo,
		cache:              selectionCache,
		checker:            checker,
		logger:             logger,
		maxPerPage:         cfg.Selection.MaxOffersPerPage,
		ratingThreshold:    cfg.Selection.RatingThreshold,
		strategy:           cfg.Selection.RankStrategy,
		cacheTTL:           cfg.Selection.CacheTTL,
		baselineCategories: cfg.Selection.BaselineCategories,
		redirectBase:       strings.TrimRight(cfg.Tracking.RedirectBaseURL, "/"),
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOffers returns the ranked offers for a page context. Cache hits are
// re-shuffled per request so repeat visitors see rotation inside the slice.
func (s *Service) GetOffers(ctx context.Context, selCtx SelectionContext) (*Result, error) {
	start := s.now()
	canon := selCtx.Canonical()
	key := canon.CacheKey()

	ctx, span := telemetry.StartServiceSpan(ctx, "selection", "get_offers",
		telemetry.WithAttribute(telemetry.SpanAttrCacheKey, key),
		telemetry.WithAttribute(telemetry.SpanAttrStrategy, s.strategy),
	)
	defer span.End()

	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Selection cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		result := s.buildResult(cached, canon, true)
		s.metrics.RecordSelection(ctx, canon.Category, true, s.now().Sub(start))
		return result, nil
	}

	ranked, err := s.selectAndRank(ctx, canon)
	if err != nil {
		s.logger.Error("Offer selection failed, degrading to cached baseline",
			zap.String("key", key),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		ranked = s.baselineFallback(ctx)
	} else if err := s.cache.Set(ctx, key, ranked, s.cacheTTL); err != nil {
		s.logger.Warn("Selection cache write failed", zap.String("key", key), zap.Error(err))
	}

	result := s.buildResult(ranked, canon, false)
	s.metrics.RecordSelection(ctx, canon.Category, false, s.now().Sub(start))
	return result, nil
}

// selectAndRank runs the hard filter, soft narrowing and ranking stages
func (s *Service) selectAndRank(ctx context.Context, canon SelectionContext) ([]offer.Offer, error) {
	eligible, err := s.eligibleCandidates(ctx, canon.Category)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 && canon.Category != "general" {
		// A category with no eligible offers falls back to the whole
		// catalog: the page still shows something. The soft category
		// filter in narrow skips itself on an empty match.
		if eligible, err = s.eligibleCandidates(ctx, "general"); err != nil {
			return nil, err
		}
	}

	narrowed := s.narrow(eligible, canon)
	s.rank(narrowed)
	return narrowed, nil
}

// eligibleCandidates fetches candidates, scoped to one category when the
// context names one, and applies the hard activity, rating, validity and
// compliance gates
func (s *Service) eligibleCandidates(ctx context.Context, category string) ([]offer.Offer, error) {
	var candidates []offer.Offer
	var err error
	if category != "general" {
		candidates, err = s.offerRepo.FindActiveByCategory(ctx, category, shared.Filter{})
	} else {
		candidates, err = s.offerRepo.FindActive(ctx, shared.Filter{})
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	hard := make([]offer.Offer, 0, len(candidates))
	for i := range candidates {
		o := &candidates[i]
		if !o.IsActive || o.QualityScore < s.ratingThreshold || !o.IsWithinValidity(now) {
			continue
		}
		hard = append(hard, *o)
	}

	return s.checker.FilterDisplayable(ctx, hard)
}

// narrow applies the soft context filters. A filter that would empty the set
// is skipped: a page with no category-matched offers still shows something.
func (s *Service) narrow(set []offer.Offer, canon SelectionContext) []offer.Offer {
	if canon.Category != "general" {
		set = keepUnlessEmpty(set, func(o *offer.Offer) bool {
			return o.Category == canon.Category
		})
	}
	if canon.Archetype != "general" {
		set = keepUnlessEmpty(set, func(o *offer.Offer) bool {
			return hasTag(o, canon.Archetype)
		})
	}
	if canon.Topic != "all" {
		set = keepUnlessEmpty(set, func(o *offer.Offer) bool {
			return matchesTopic(o, canon.Topic)
		})
	}
	if canon.ExperienceLevel != "all" {
		set = keepUnlessEmpty(set, func(o *offer.Offer) bool {
			return hasTag(o, canon.ExperienceLevel)
		})
	}
	if len(canon.QuizTopics) > 0 {
		set = keepUnlessEmpty(set, func(o *offer.Offer) bool {
			for _, topic := range canon.QuizTopics {
				if matchesTopic(o, topic) {
					return true
				}
			}
			return false
		})
	}
	return set
}

func keepUnlessEmpty(set []offer.Offer, pred func(*offer.Offer) bool) []offer.Offer {
	kept := make([]offer.Offer, 0, len(set))
	for i := range set {
		if pred(&set[i]) {
			kept = append(kept, set[i])
		}
	}
	if len(kept) == 0 {
		return set
	}
	return kept
}

func hasTag(o *offer.Offer, tag string) bool {
	for _, t := range o.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func matchesTopic(o *offer.Offer, topic string) bool {
	if hasTag(o, topic) {
		return true
	}
	text := strings.ToLower(o.Title + " " + o.Description)
	return strings.Contains(text, topic)
}

// rank sorts the set descending by strategy score plus the featured and
// quality boosts. Ties break on quality, then recency.
func (s *Service) rank(set []offer.Offer) {
	scores := make(map[string]float64, len(set))
	for i := range set {
		scores[set[i].ID.String()] = s.score(&set[i])
	}
	sort.SliceStable(set, func(i, j int) bool {
		si, sj := scores[set[i].ID.String()], scores[set[j].ID.String()]
		if si != sj {
			return si > sj
		}
		if set[i].QualityScore != set[j].QualityScore {
			return set[i].QualityScore > set[j].QualityScore
		}
		return set[i].CreatedAt.After(set[j].CreatedAt)
	})
}

func (s *Service) score(o *offer.Offer) float64 {
	var base float64
	switch s.strategy {
	case StrategyNewest:
		base = float64(o.CreatedAt.Unix())
	case StrategyHighestCommission:
		base = o.Revenue().InexactFloat64() * 100
	case StrategyRandom:
		s.rngMu.Lock()
		base = s.rng.Float64() * 100
		s.rngMu.Unlock()
	default: // performance
		base = o.ConversionRate*400 +
			math.Log10(float64(o.ClickCount)+1)*60 +
			o.Revenue().InexactFloat64()*20
	}

	base += float64(o.Priority)
	if o.IsFeatured {
		base += featuredBoost
	}
	base += float64(o.QualityScore) * qualityBoostPerUnit
	return base
}

// baselineFallback serves the last cached all-category slice when the store
// is unreachable. An empty slice is the final fallback, never an error.
func (s *Service) baselineFallback(ctx context.Context) []offer.Offer {
	baseline, found, err := s.cache.Get(ctx, SelectionContext{}.CacheKey())
	if err != nil || !found {
		return []offer.Offer{}
	}
	return baseline
}

func (s *Service) buildResult(ranked []offer.Offer, canon SelectionContext, fromCache bool) *Result {
	shuffled := make([]offer.Offer, len(ranked))
	copy(shuffled, ranked)

	s.rngMu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.rngMu.Unlock()

	if s.maxPerPage > 0 && len(shuffled) > s.maxPerPage {
		shuffled = shuffled[:s.maxPerPage]
	}

	return &Result{
		Offers: shuffled,
		Meta: Meta{
			Strategy:       s.strategy,
			FiltersApplied: appliedFilters(canon),
			FromCache:      fromCache,
			Total:          len(ranked),
			GeneratedAt:    s.now(),
		},
	}
}

func appliedFilters(canon SelectionContext) []string {
	var filters []string
	if canon.Category != "general" {
		filters = append(filters, "category")
	}
	if canon.Archetype != "general" {
		filters = append(filters, "archetype")
	}
	if canon.Topic != "all" {
		filters = append(filters, "topic")
	}
	if canon.ExperienceLevel != "all" {
		filters = append(filters, "experience_level")
	}
	if len(canon.QuizTopics) > 0 {
		filters = append(filters, "quiz_topics")
	}
	return filters
}

// Rotate clears every cached slice and eagerly repopulates the baseline
// per-category slices so the next page view is a cache hit. Implements the
// rotation scheduler's Rotator contract.
func (s *Service) Rotate(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return err
	}

	categories := append([]string{""}, s.baselineCategories...)
	for _, category := range categories {
		selCtx := SelectionContext{Category: category}
		canon := selCtx.Canonical()

		ranked, err := s.selectAndRank(ctx, canon)
		if err != nil {
			s.logger.Warn("Rotation repopulation failed",
				zap.String("category", canon.Category),
				zap.Error(err),
			)
			continue
		}
		if err := s.cache.Set(ctx, canon.CacheKey(), ranked, s.cacheTTL); err != nil {
			s.logger.Warn("Rotation cache write failed",
				zap.String("category", canon.Category),
				zap.Error(err),
			)
		}
	}

	return nil
}

// InvalidateDisplayRules drops every cached slice immediately. Wired to the
// admin cache-refresh endpoint and to rule change hooks.
func (s *Service) InvalidateDisplayRules(ctx context.Context) error {
	s.logger.Info("Display rules changed, invalidating selection cache")
	return s.cache.InvalidateAll(ctx)
}

// GenerateCloakedLink builds the public redirect URL for an offer. The
// merchant target URL is never exposed; attribution parameters identify the
// placement that produced the click.
func (s *Service) GenerateCloakedLink(o *offer.Offer, selCtx SelectionContext, pageSlug string) string {
	canon := selCtx.Canonical()

	params := url.Values{}
	params.Set("utm_source", "redakta")
	params.Set("utm_medium", "offer")
	params.Set("utm_campaign", canon.Category)
	params.Set("utm_content", canon.Archetype)
	if pageSlug != "" {
		params.Set("ref", pageSlug)
	}

	return s.redirectBase + "/go/" + o.Slug + "?" + params.Encode()
}
