package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	selectionapp "github.com/redakta/backend/internal/application/selection"
	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/interfaces/http/middleware"
)

// OfferHandler handles offer selection API endpoints
type OfferHandler struct {
	BaseHandler
	selectionService *selectionapp.Service
}

// NewOfferHandler creates a new OfferHandler
func NewOfferHandler(selectionService *selectionapp.Service) *OfferHandler {
	return &OfferHandler{
		selectionService: selectionService,
	}
}

// SelectOffersRequest describes the page asking for offers
// @Description Page context for offer selection. All fields are optional.
type SelectOffersRequest struct {
	Category        string   `json:"category" form:"category" example:"office"`
	Archetype       string   `json:"archetype" form:"archetype" example:"optimizer"`
	Topic           string   `json:"topic" form:"topic" example:"standing-desk"`
	ExperienceLevel string   `json:"experienceLevel" form:"experienceLevel" example:"beginner"`
	Device          string   `json:"device" form:"device" example:"mobile"`
	QuizTopics      []string `json:"quizTopics" form:"quizTopics"`
	PageSlug        string   `json:"pageSlug" form:"pageSlug" example:"best-standing-desks"`
}

// OfferItem represents one selectable offer in the response. The link is the
// cloaked redirect URL; the merchant target is never exposed here.
// @Description Offer response object
type OfferItem struct {
	ID              string          `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Slug            string          `json:"slug" example:"flexidesk-pro"`
	Title           string          `json:"title" example:"FlexiDesk Pro standing desk"`
	Description     string          `json:"description,omitempty"`
	Merchant        string          `json:"merchant,omitempty" example:"FlexiSpot"`
	Category        string          `json:"category,omitempty" example:"office"`
	Tags            []string        `json:"tags,omitempty"`
	Badges          []string        `json:"badges,omitempty"`
	Price           decimal.Decimal `json:"price"`
	OldPrice        decimal.Decimal `json:"oldPrice,omitempty"`
	Currency        string          `json:"currency" example:"EUR"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	QualityScore    int             `json:"qualityScore" example:"72"`
	TrustScore      int             `json:"trustScore" example:"85"`
	IsFeatured      bool            `json:"isFeatured"`
	Emotion         string          `json:"emotion,omitempty"`
	Disclaimer      string          `json:"disclaimer,omitempty"`
	Link            string          `json:"link"`
}

// SelectionResponse bundles the selected offers with selection metadata
// @Description Offer selection response
type SelectionResponse struct {
	Offers []OfferItem       `json:"offers"`
	Meta   selectionapp.Meta `json:"meta"`
}

// GetOffers godoc
// @Summary      Select offers for a page context
// @Description  Returns the ranked, compliance-filtered offers for the given page context. Selection never fails hard; an empty list is returned when nothing matches.
// @Tags         offers
// @Produce      json
// @Param        category query string false "Page category"
// @Param        archetype query string false "Visitor archetype"
// @Param        topic query string false "Page topic"
// @Param        experienceLevel query string false "Visitor experience level"
// @Param        device query string false "Visitor device class"
// @Param        pageSlug query string false "Requesting page slug, embedded in cloaked links"
// @Success      200 {object} dto.Response{data=SelectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /offers [get]
func (h *OfferHandler) GetOffers(c *gin.Context) {
	var req SelectOffersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	h.respond(c, req)
}

// SelectOffers godoc
// @Summary      Select offers for a rich page context
// @Description  Same selection pipeline as GET /offers, with the context in the body so quiz results can be passed as arrays.
// @Tags         offers
// @Accept       json
// @Produce      json
// @Param        request body SelectOffersRequest true "Page context"
// @Success      200 {object} dto.Response{data=SelectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /offers/select [post]
func (h *OfferHandler) SelectOffers(c *gin.Context) {
	var req SelectOffersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	h.respond(c, req)
}

func (h *OfferHandler) respond(c *gin.Context, req SelectOffersRequest) {
	selCtx := selectionapp.SelectionContext{
		Category:        req.Category,
		Archetype:       req.Archetype,
		Topic:           req.Topic,
		ExperienceLevel: req.ExperienceLevel,
		Device:          req.Device,
		QuizTopics:      req.QuizTopics,
	}

	result, err := h.selectionService.GetOffers(c.Request.Context(), selCtx)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]OfferItem, 0, len(result.Offers))
	for i := range result.Offers {
		items = append(items, h.toOfferItem(&result.Offers[i], selCtx, req.PageSlug))
	}

	h.Success(c, SelectionResponse{Offers: items, Meta: result.Meta})
}

func (h *OfferHandler) toOfferItem(o *offer.Offer, selCtx selectionapp.SelectionContext, pageSlug string) OfferItem {
	return OfferItem{
		ID:              o.ID.String(),
		Slug:            o.Slug,
		Title:           o.Title,
		Description:     o.Description,
		Merchant:        o.Merchant,
		Category:        o.Category,
		Tags:            o.Tags,
		Badges:          o.Badges,
		Price:           o.Price,
		OldPrice:        o.OldPrice,
		Currency:        o.Currency,
		DiscountPercent: o.DiscountPercent(),
		QualityScore:    o.QualityScore,
		TrustScore:      o.TrustScore,
		IsFeatured:      o.IsFeatured,
		Emotion:         o.Emotion,
		Disclaimer:      o.Disclaimer,
		Link:            h.selectionService.GenerateCloakedLink(o, selCtx, pageSlug),
	}
}
