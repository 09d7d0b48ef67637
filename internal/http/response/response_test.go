package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mahamart/commerce-backend/internal/apperr"
)

func TestFromErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{err: apperr.InvalidInput("Email is required"), status: http.StatusBadRequest, message: "Email is required"},
		{err: apperr.Unauthorized("Invalid credentials"), status: http.StatusUnauthorized, message: "Invalid credentials"},
		{err: apperr.NotFound("User not found"), status: http.StatusNotFound, message: "User not found"},
		{err: apperr.Conflict("User already exists"), status: http.StatusConflict, message: "User already exists"},
		{err: apperr.ExternalService("Google login failed", errors.New("dial")), status: http.StatusBadGateway, message: "Google login failed"},
		{err: apperr.EmailDelivery("Failed to send reset password email", errors.New("535")), status: http.StatusInternalServerError, message: "Failed to send reset password email"},
		{err: errors.New("pq: connection refused"), status: http.StatusInternalServerError, message: "Internal server error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-1"))
		FromError(rr, req, "test", tc.err)

		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var body ErrorBody
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != tc.message || body.RequestID != "req-1" || body.Code == "" {
			t.Fatalf("unexpected body %+v", body)
		}
	}
}

func TestJSONOmitsEmptyToken(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, Message{Message: "Reset password email sent"})
	if got := rr.Body.String(); got != "{\"message\":\"Reset password email sent\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected json content type")
	}
}
