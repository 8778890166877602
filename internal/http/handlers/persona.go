package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type PersonaHandler struct {
	log      *logger.Logger
	personas services.PersonaService
}

func NewPersonaHandler(baseLog *logger.Logger, personas services.PersonaService) *PersonaHandler {
	return &PersonaHandler{
		log:      baseLog.With("handler", "PersonaHandler"),
		personas: personas,
	}
}

// POST /api/personas/:user_id/assign
//
// Assignment over HTTP is strict: missing features for the window is a 400
// rather than the internal low-confidence fallback, so operators notice the
// missing compute step instead of silently storing a default.
func (h *PersonaHandler) Assign(c *gin.Context) {
	windowDays, err := intQuery(c, "window_days", 30)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window_days"))
		return
	}

	out, err := h.personas.Assign(c.Request.Context(), c.Param("user_id"), windowDays)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/personas/:user_id
func (h *PersonaHandler) ListPersonas(c *gin.Context) {
	window, err := optionalIntQuery(c, "window")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window"))
		return
	}

	out, err := h.personas.ListByUser(c.Request.Context(), c.Param("user_id"), window)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user_id": c.Param("user_id"), "personas": out})
}
