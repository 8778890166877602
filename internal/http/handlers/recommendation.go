package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type RecommendationHandler struct {
	log  *logger.Logger
	recs services.RecommendationService
}

func NewRecommendationHandler(baseLog *logger.Logger, recs services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		log:  baseLog.With("handler", "RecommendationHandler"),
		recs: recs,
	}
}

// POST /api/recommendations/generate/:user_id
func (h *RecommendationHandler) Generate(c *gin.Context) {
	windowDays, err := intQuery(c, "window_days", 30)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window_days"))
		return
	}
	force, err := boolQuery(c, "force_regenerate", false)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("force_regenerate"))
		return
	}

	out, err := h.recs.Generate(c.Request.Context(), c.Param("user_id"), windowDays, force)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	if out.Cached {
		response.RespondOK(c, out)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /api/recommendations/:user_id
func (h *RecommendationHandler) ListRecommendations(c *gin.Context) {
	windowDays, err := intQuery(c, "window_days", 0)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window_days"))
		return
	}

	rows, total, err := h.recs.List(c.Request.Context(), c.Param("user_id"), c.Query("status"), windowDays)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"user_id":         c.Param("user_id"),
		"recommendations": rows,
		"count":           len(rows),
		"total":           total,
	})
}

// POST /api/recommendations/:recommendation_id/approve
func (h *RecommendationHandler) Approve(c *gin.Context) {
	var req struct {
		OperatorID string `json:"operator_id" binding:"required"`
		Notes      string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.recs.Approve(c.Request.Context(), c.Param("recommendation_id"), req.OperatorID, req.Notes)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/recommendations/:recommendation_id/override
func (h *RecommendationHandler) Override(c *gin.Context) {
	var req struct {
		OperatorID string `json:"operator_id" binding:"required"`
		Reason     string `json:"reason" binding:"required"`
		NewTitle   string `json:"new_title"`
		NewContent string `json:"new_content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.recs.Override(c.Request.Context(), c.Param("recommendation_id"), req.OperatorID, req.Reason, req.NewTitle, req.NewContent)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/recommendations/:recommendation_id/reject
func (h *RecommendationHandler) Reject(c *gin.Context) {
	var req struct {
		OperatorID string `json:"operator_id" binding:"required"`
		Reason     string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.recs.Reject(c.Request.Context(), c.Param("recommendation_id"), req.OperatorID, req.Reason)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/recommendations/bulk-approve
func (h *RecommendationHandler) BulkApprove(c *gin.Context) {
	var req struct {
		OperatorID        string   `json:"operator_id" binding:"required"`
		RecommendationIDs []string `json:"recommendation_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.recs.BulkApprove(c.Request.Context(), req.OperatorID, req.RecommendationIDs)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}
