package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondFault maps a domain error to its HTTP status. The envelope carries
// the fault message without the internal operation prefix.
func RespondFault(c *gin.Context, err error) {
	code := fault.CodeOf(err)
	msg := "unknown error"
	var domErr *fault.Error
	if errors.As(err, &domErr) && domErr.Message != "" {
		msg = domErr.Message
	} else if err != nil {
		msg = err.Error()
	}
	c.JSON(StatusOf(code), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    string(code),
		},
	})
}

// StatusOf translates fault codes to HTTP statuses. Unknown codes are server
// errors.
func StatusOf(code fault.ErrorCode) int {
	switch code {
	case fault.CodeValidation:
		return http.StatusBadRequest
	case fault.CodeNotFound:
		return http.StatusNotFound
	case fault.CodeConflict:
		return http.StatusConflict
	case fault.CodeConsentDenied:
		return http.StatusForbidden
	case fault.CodeProviderFailed:
		return http.StatusBadGateway
	case fault.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
