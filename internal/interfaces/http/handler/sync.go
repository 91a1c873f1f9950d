package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/redakta/backend/internal/application/sync"
)

// SyncHandler handles source synchronization API endpoints
type SyncHandler struct {
	BaseHandler
	syncService *syncapp.Service
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *syncapp.Service) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// SyncSource godoc
// @Summary      Sync one affiliate source
// @Description  Fetches the source's feed through its plugin and reconciles the offer catalog: new offers are added, known ones patched in place, absent ones deactivated.
// @Tags         sync
// @Produce      json
// @Param        id path string true "Source ID" format(uuid)
// @Success      200 {object} dto.Response{data=source.SyncResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sources/{id}/sync [post]
func (h *SyncHandler) SyncSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid source ID format")
		return
	}

	result, err := h.syncService.SyncSource(c.Request.Context(), sourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SyncAll godoc
// @Summary      Sync every active affiliate source
// @Description  Runs a sync for each active source. One failing source never aborts the batch; its result carries the error instead.
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=[]source.SyncResult}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync [post]
func (h *SyncHandler) SyncAll(c *gin.Context) {
	results, err := h.syncService.SyncAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, results)
}
