package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	trackingapp "github.com/redakta/backend/internal/application/tracking"
	"github.com/redakta/backend/internal/domain/tracking"
	"github.com/redakta/backend/internal/interfaces/http/middleware"
)

// TrackingHandler handles click, conversion and redirect API endpoints
type TrackingHandler struct {
	BaseHandler
	trackingService *trackingapp.Service
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(trackingService *trackingapp.Service) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
	}
}

// TrackClickRequest represents a request to record an outbound click
// @Description Request body for click tracking
type TrackClickRequest struct {
	OfferID     string `json:"offerId" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	SessionID   string `json:"sessionId" binding:"required,min=1,max=120" example:"sess-8f14e45f"`
	UserID      string `json:"userId" binding:"omitempty,max=120"`
	PageSlug    string `json:"pageSlug" binding:"omitempty,max=120" example:"best-standing-desks"`
	UTMSource   string `json:"utmSource" binding:"omitempty,max=60"`
	UTMMedium   string `json:"utmMedium" binding:"omitempty,max=60"`
	UTMCampaign string `json:"utmCampaign" binding:"omitempty,max=60"`
	UTMContent  string `json:"utmContent" binding:"omitempty,max=60"`
}

// TrackConversionRequest represents a conversion postback
// @Description Request body for conversion tracking. Either clickId or
// sessionId must be present.
type TrackConversionRequest struct {
	ClickID         *string         `json:"clickId" binding:"omitempty,uuid"`
	SessionID       string          `json:"sessionId" binding:"omitempty,max=120"`
	ConversionValue decimal.Decimal `json:"conversionValue"`
	ConversionType  string          `json:"conversionType" binding:"omitempty,max=40" example:"sale"`
}

// TrackClick godoc
// @Summary      Record an outbound click
// @Description  Persists a click against an active offer and returns the cloaked tracking URL the visitor should follow.
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        request body TrackClickRequest true "Click details"
// @Success      201 {object} dto.Response{data=trackingapp.TrackClickResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/clicks [post]
func (h *TrackingHandler) TrackClick(c *gin.Context) {
	var req TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	offerID, err := uuid.Parse(req.OfferID)
	if err != nil {
		h.BadRequest(c, "Invalid offer ID format")
		return
	}

	resp, err := h.trackingService.TrackClick(c.Request.Context(), trackingapp.TrackClickRequest{
		OfferID:   offerID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		PageSlug:  req.PageSlug,
		UTM: tracking.UTMParams{
			Source:   req.UTMSource,
			Medium:   req.UTMMedium,
			Campaign: req.UTMCampaign,
			Content:  req.UTMContent,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// TrackConversion godoc
// @Summary      Record a conversion
// @Description  Attributes a conversion to a click, by click id or by the session's latest click. Repeated postbacks for the same click overwrite the previous value.
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        request body TrackConversionRequest true "Conversion details"
// @Success      200 {object} dto.Response{data=trackingapp.TrackConversionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/conversions [post]
func (h *TrackingHandler) TrackConversion(c *gin.Context) {
	var req TrackConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	appReq := trackingapp.TrackConversionRequest{
		SessionID:       req.SessionID,
		ConversionValue: req.ConversionValue,
		ConversionType:  req.ConversionType,
	}
	if req.ClickID != nil && *req.ClickID != "" {
		clickID, err := uuid.Parse(*req.ClickID)
		if err != nil {
			h.BadRequest(c, "Invalid click ID format")
			return
		}
		appReq.ClickID = &clickID
	}

	resp, err := h.trackingService.TrackConversion(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// GetOfferStats godoc
// @Summary      Get offer performance stats
// @Description  Aggregated clicks, conversions, revenue and estimated commission for one offer over a window. Bounds default to the last 30 days.
// @Tags         tracking
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Param        from query string false "Window start (RFC 3339)"
// @Param        to query string false "Window end (RFC 3339)"
// @Success      200 {object} dto.Response{data=trackingapp.OfferStats}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /offers/{id}/stats [get]
func (h *TrackingHandler) GetOfferStats(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid offer ID format")
		return
	}

	from, ok := h.parseTimeParam(c, "from")
	if !ok {
		return
	}
	to, ok := h.parseTimeParam(c, "to")
	if !ok {
		return
	}

	stats, err := h.trackingService.GetOfferStats(c.Request.Context(), offerID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

func (h *TrackingHandler) parseTimeParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.BadRequest(c, "Invalid '"+name+"' timestamp, expected RFC 3339")
		return time.Time{}, false
	}
	return t, true
}

// Redirect godoc
// @Summary      Resolve a cloaked offer link
// @Description  Resolves the slug to the merchant target URL and issues a 302. Unknown or deactivated offers return 404; a dead link never forwards the visitor.
// @Tags         tracking
// @Produce      json
// @Param        slug path string true "Offer slug"
// @Param        click_id query string false "Click ID for attribution, consumed and not forwarded"
// @Success      302 "Found"
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /go/{slug} [get]
func (h *TrackingHandler) Redirect(c *gin.Context) {
	target, err := h.trackingService.ResolveRedirect(c.Request.Context(), c.Param("slug"), c.Request.URL.Query())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Redirect(http.StatusFound, target)
}
