package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type UserHandler struct {
	log   *logger.Logger
	users services.UserService
}

func NewUserHandler(baseLog *logger.Logger, users services.UserService) *UserHandler {
	return &UserHandler{
		log:   baseLog.With("handler", "UserHandler"),
		users: users,
	}
}

// GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("limit"))
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("offset"))
		return
	}

	filter := repos.UserFilter{UserType: strings.TrimSpace(c.Query("user_type"))}
	if raw := strings.TrimSpace(c.Query("consent_status")); raw != "" {
		consent, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("consent_status"))
			return
		}
		filter.ConsentStatus = &consent
	}

	out, err := h.users.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	out, err := h.users.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/profile/:user_id
func (h *UserHandler) GetProfile(c *gin.Context) {
	window, err := optionalIntQuery(c, "window")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window"))
		return
	}

	out, err := h.users.Profile(c.Request.Context(), c.Param("user_id"), window)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/operator/dashboard
func (h *UserHandler) Dashboard(c *gin.Context) {
	out, err := h.users.Dashboard(c.Request.Context())
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}
