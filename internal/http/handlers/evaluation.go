package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type EvaluationHandler struct {
	log  *logger.Logger
	eval services.EvaluationService
}

func NewEvaluationHandler(baseLog *logger.Logger, eval services.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{
		log:  baseLog.With("handler", "EvaluationHandler"),
		eval: eval,
	}
}

// POST /api/evaluate
func (h *EvaluationHandler) Run(c *gin.Context) {
	var req struct {
		RunID string `json:"run_id"`
	}
	// Body is optional; an empty body runs with a generated id.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
			return
		}
	}

	out, err := h.eval.Run(c.Request.Context(), req.RunID)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/evaluate/latest
func (h *EvaluationHandler) Latest(c *gin.Context) {
	out, err := h.eval.Latest(c.Request.Context())
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/evaluate/history
func (h *EvaluationHandler) History(c *gin.Context) {
	limit, err := intQuery(c, "limit", 10)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("limit"))
		return
	}

	out, err := h.eval.History(c.Request.Context(), limit)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}
