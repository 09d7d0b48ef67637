package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mahamart/commerce-backend/internal/health"
	"github.com/mahamart/commerce-backend/internal/http/handler"
	"github.com/mahamart/commerce-backend/internal/http/middleware"
	"github.com/mahamart/commerce-backend/internal/http/response"
	"github.com/mahamart/commerce-backend/internal/service"
)

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultUploadBodyBytes = 6 << 20
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	ProductHandler  *handler.ProductHandler
	OrderHandler    *handler.OrderHandler
	TokenVerifier   service.TokenVerifier
	Logger          *slog.Logger
	CORSOrigins     []string
	MaxBodyBytes    int64
	UploadBodyBytes int64
	Readiness       *health.ProbeRunner
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	if dep.Logger == nil {
		dep.Logger = slog.Default()
	}
	if dep.MaxBodyBytes <= 0 {
		dep.MaxBodyBytes = defaultMaxBodyBytes
	}
	if dep.UploadBodyBytes <= 0 {
		dep.UploadBodyBytes = defaultUploadBodyBytes
	}
	gate := middleware.AuthMiddleware(dep.TokenVerifier)
	jsonLimit := middleware.BodyLimit(dep.MaxBodyBytes)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(dep.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(jsonLimit)
			r.Post("/register", dep.AuthHandler.Register)
			r.Post("/login", dep.AuthHandler.Login)
			r.Post("/google-login", dep.AuthHandler.GoogleLogin)
			r.Post("/forgot-password", dep.AuthHandler.ForgotPassword)
			r.Post("/reset-password", dep.AuthHandler.ResetPassword)
			r.Get("/google/login", dep.AuthHandler.GoogleStart)
			r.Get("/google/callback", dep.AuthHandler.GoogleCallback)
			r.With(gate).Get("/me", dep.AuthHandler.Me)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", dep.ProductHandler.List)
			r.Get("/{id}", dep.ProductHandler.Get)
			r.Group(func(r chi.Router) {
				// multipart bodies carry the image
				r.Use(middleware.BodyLimit(dep.UploadBodyBytes))
				r.Use(gate)
				r.Post("/", dep.ProductHandler.Create)
				r.Put("/{id}", dep.ProductHandler.Update)
				r.Delete("/{id}", dep.ProductHandler.Delete)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(jsonLimit)
			r.Use(gate)
			r.Post("/", dep.OrderHandler.Create)
			r.Get("/", dep.OrderHandler.List)
			r.Patch("/{id}/status", dep.OrderHandler.UpdateStatus)
			r.Put("/{id}", dep.OrderHandler.UpdateStatus)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
