package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	complianceapp "github.com/redakta/backend/internal/application/compliance"
)

// ComplianceHandler handles compliance check and remediation API endpoints
type ComplianceHandler struct {
	BaseHandler
	complianceService *complianceapp.Service
}

// NewComplianceHandler creates a new ComplianceHandler
func NewComplianceHandler(complianceService *complianceapp.Service) *ComplianceHandler {
	return &ComplianceHandler{
		complianceService: complianceService,
	}
}

// CheckCompliance godoc
// @Summary      Check one offer against active display rules
// @Description  Evaluates every active compliance rule against the offer and returns the violation report. Checking never mutates the offer.
// @Tags         compliance
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Success      200 {object} dto.Response{data=compliance.Report}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /offers/{id}/compliance [get]
func (h *ComplianceHandler) CheckCompliance(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid offer ID format")
		return
	}

	report, err := h.complianceService.CheckOfferCompliance(c.Request.Context(), offerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// AutoFix godoc
// @Summary      Auto-remediate fixable violations on one offer
// @Description  Applies the modification each violated modify-action rule prescribes (title truncation, price floors), persists the offer once and returns the applied fixes with the post-fix report.
// @Tags         compliance
// @Produce      json
// @Param        id path string true "Offer ID" format(uuid)
// @Success      200 {object} dto.Response{data=complianceapp.FixResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /offers/{id}/compliance/fix [post]
func (h *ComplianceHandler) AutoFix(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid offer ID format")
		return
	}

	result, err := h.complianceService.AutoFixCompliance(c.Request.Context(), offerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
