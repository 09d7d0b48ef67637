package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mahamart/commerce-backend/internal/apperr"
)

// Message is the body of a successful auth or mutation response. Token is set
// only by flows that sign a user in.
type Message struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, _ *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	JSON(w, r, status, ErrorBody{
		Error:     message,
		Code:      code,
		RequestID: chimiddleware.GetReqID(r.Context()),
		Details:   details,
	})
}

// FromError writes err using its apperr kind. Errors that map to a 5xx are
// logged with their cause; the client only sees the safe message.
func FromError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"op", op,
			"kind", string(kind),
			"error", err.Error(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	}
	Error(w, r, status, string(kind), apperr.MessageOf(err), nil)
}
