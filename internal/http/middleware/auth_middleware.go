package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/mahamart/commerce-backend/internal/http/response"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/security"
	"github.com/mahamart/commerce-backend/internal/service"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"

	msgNoToken      = "Unauthorized: No token provided"
	msgInvalidToken = "Forbidden: Invalid token"
)

// AuthMiddleware admits requests carrying a valid access token. The token is
// read from "Authorization: Bearer <token>" and, failing that, from a "token"
// field in a JSON body. The body is restored for the next handler.
func AuthMiddleware(verifier service.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := bearerToken(r), "header"
			if raw == "" {
				raw, source = bodyToken(r), "body"
			}
			if raw == "" {
				observability.RecordMiddlewareValidationEvent(r.Context(), "auth", "missing_token")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", msgNoToken, nil)
				return
			}
			claims, err := verifier.Verify(r.Context(), raw, source)
			if err != nil {
				observability.RecordMiddlewareValidationEvent(r.Context(), "auth", "invalid_token")
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", msgInvalidToken, nil)
				return
			}
			observability.RecordMiddlewareValidationEvent(r.Context(), "auth", "allowed")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, &claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

func bodyToken(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ""
	}
	buf, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		// Downstream decoders must see the read failure, e.g. *http.MaxBytesError.
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), failingReader{err: err}))
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	var payload struct {
		Token string `json:"token"`
	}
	if json.Unmarshal(buf, &payload) != nil {
		return ""
	}
	return strings.TrimSpace(payload.Token)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

// SubjectFromContext returns the verified token subject, the user id as a
// decimal string.
func SubjectFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}
