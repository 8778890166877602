package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		code fault.ErrorCode
		want int
	}{
		{fault.CodeValidation, http.StatusBadRequest},
		{fault.CodeNotFound, http.StatusNotFound},
		{fault.CodeConflict, http.StatusConflict},
		{fault.CodeConsentDenied, http.StatusForbidden},
		{fault.CodeProviderFailed, http.StatusBadGateway},
		{fault.CodeRetryable, http.StatusServiceUnavailable},
		{fault.CodeInternal, http.StatusInternalServerError},
		{fault.ErrorCode(""), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusOf(tc.code); got != tc.want {
			t.Errorf("StatusOf(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestRespondFaultEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		RespondFault(c, fault.New(fault.CodeNotFound, "UserService.Get", "user u1 not found", nil))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Error.Code != "not_found" {
		t.Errorf("code = %q, want not_found", env.Error.Code)
	}
	// The operation prefix stays internal.
	if env.Error.Message != "user u1 not found" {
		t.Errorf("message = %q", env.Error.Message)
	}
}
