package handler

import (
	"github.com/gin-gonic/gin"

	selectionapp "github.com/redakta/backend/internal/application/selection"
)

// CacheHandler handles selection cache administration endpoints
type CacheHandler struct {
	BaseHandler
	selectionService *selectionapp.Service
}

// NewCacheHandler creates a new CacheHandler
func NewCacheHandler(selectionService *selectionapp.Service) *CacheHandler {
	return &CacheHandler{
		selectionService: selectionService,
	}
}

// Refresh godoc
// @Summary      Rotate the selection cache
// @Description  Drops every cached selection slice and re-populates the baseline categories so the next page views see a fresh rotation.
// @Tags         cache
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /cache/refresh [post]
func (h *CacheHandler) Refresh(c *gin.Context) {
	if err := h.selectionService.Rotate(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"rotated": true})
}

// Invalidate godoc
// @Summary      Invalidate cached selections
// @Description  Drops every cached selection slice without re-populating. Used after display rule changes.
// @Tags         cache
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /cache/invalidate [post]
func (h *CacheHandler) Invalidate(c *gin.Context) {
	if err := h.selectionService.InvalidateDisplayRules(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"invalidated": true})
}
