package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type ConsentHandler struct {
	log     *logger.Logger
	consent services.ConsentService
}

func NewConsentHandler(baseLog *logger.Logger, consent services.ConsentService) *ConsentHandler {
	return &ConsentHandler{
		log:     baseLog.With("handler", "ConsentHandler"),
		consent: consent,
	}
}

// POST /api/consent
func (h *ConsentHandler) UpdateConsent(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.consent.Update(c.Request.Context(), req.UserID, req.Action, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/consent/:user_id
func (h *ConsentHandler) GetConsent(c *gin.Context) {
	out, err := h.consent.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}
