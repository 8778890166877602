package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type FeatureHandler struct {
	log      *logger.Logger
	features services.FeatureService
}

func NewFeatureHandler(baseLog *logger.Logger, features services.FeatureService) *FeatureHandler {
	return &FeatureHandler{
		log:      baseLog.With("handler", "FeatureHandler"),
		features: features,
	}
}

// POST /api/features/compute/:user_id
func (h *FeatureHandler) Compute(c *gin.Context) {
	windowDays, err := intQuery(c, "window_days", 30)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window_days"))
		return
	}

	out, err := h.features.Compute(c.Request.Context(), c.Param("user_id"), windowDays)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/features/:user_id
func (h *FeatureHandler) ListFeatures(c *gin.Context) {
	window, err := optionalIntQuery(c, "window_days")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window_days"))
		return
	}

	if window != nil {
		out, err := h.features.GetByUserWindow(c.Request.Context(), c.Param("user_id"), *window)
		if err != nil {
			response.RespondFault(c, err)
			return
		}
		response.RespondOK(c, out)
		return
	}

	out, err := h.features.ListByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user_id": c.Param("user_id"), "features": out})
}
