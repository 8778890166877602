package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type IngestHandler struct {
	log       *logger.Logger
	ingestion services.IngestionService
}

func NewIngestHandler(baseLog *logger.Logger, ingestion services.IngestionService) *IngestHandler {
	return &IngestHandler{
		log:       baseLog.With("handler", "IngestHandler"),
		ingestion: ingestion,
	}
}

// POST /api/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var payload services.IngestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.ingestion.Ingest(c.Request.Context(), &payload)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}
