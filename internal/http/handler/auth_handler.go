package handler

import (
	"net/http"
	"time"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/http/middleware"
	"github.com/mahamart/commerce-backend/internal/http/response"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/security"
	"github.com/mahamart/commerce-backend/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthCookiePath  = "/api/auth/google"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (credentialsRequest) requiredMessage() string { return "Email and password are required" }

type googleLoginRequest struct {
	TokenID string `json:"tokenId" validate:"required"`
}

func (googleLoginRequest) requiredMessage() string { return "Token ID is required" }

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

func (forgotPasswordRequest) requiredMessage() string { return "Email is required" }

type resetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (resetPasswordRequest) requiredMessage() string { return "Token and new password are required" }

type meResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthHandler struct {
	authSvc  service.AuthServiceInterface
	stateKey string
}

func NewAuthHandler(authSvc service.AuthServiceInterface, stateKey string) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, stateKey: stateKey}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer h.observe(w, r, "register", time.Now())

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "auth.register", err)
		return
	}
	res, err := h.authSvc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, r, "auth.register", err)
		return
	}
	response.JSON(w, r, http.StatusCreated, response.Message{Message: "User registered", Token: res.Token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer h.observe(w, r, "login", time.Now())

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "auth.login", err)
		return
	}
	res, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, r, "auth.login", err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message{Message: "Login successful", Token: res.Token})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	defer h.observe(w, r, "google_login", time.Now())

	var req googleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "auth.google_login", err)
		return
	}
	res, err := h.authSvc.GoogleLogin(r.Context(), req.TokenID)
	if err != nil {
		response.FromError(w, r, "auth.google_login", err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message{Message: "Google login successful", Token: res.Token})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	defer h.observe(w, r, "forgot_password", time.Now())

	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "auth.forgot_password", err)
		return
	}
	if err := h.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		response.FromError(w, r, "auth.forgot_password", err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message{Message: "Reset password email sent"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	defer h.observe(w, r, "reset_password", time.Now())

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "auth.reset_password", err)
		return
	}
	err := h.authSvc.ResetPassword(r.Context(), service.ResetPasswordInput{
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		response.FromError(w, r, "auth.reset_password", err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message{Message: "Password reset successful"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized: No token provided", nil)
		return
	}
	user, err := h.authSvc.Me(r.Context(), subject)
	if err != nil {
		response.FromError(w, r, "auth.me", err)
		return
	}
	response.JSON(w, r, http.StatusOK, meResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

// GoogleStart redirects the browser to Google's consent screen with a signed,
// short-lived state cookie.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if !h.authSvc.GoogleCodeFlowEnabled() {
		response.FromError(w, r, "auth.google_start", apperr.NotFound("Google login is not enabled"))
		return
	}
	state, err := security.NewRandomString(24)
	if err != nil {
		response.FromError(w, r, "auth.google_start", apperr.Wrap(apperr.KindInternal, "Failed to start Google login", err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    security.SignState(state, h.stateKey),
		Path:     oauthCookiePath,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
	http.Redirect(w, r, h.authSvc.GoogleLoginURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	defer h.observe(w, r, "google_callback", time.Now())

	queryState := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if queryState == "" || code == "" {
		response.FromError(w, r, "auth.google_callback", apperr.InvalidInput("Missing state or code"))
		return
	}
	state, ok := security.VerifySignedState(security.GetCookie(r, oauthStateCookie), h.stateKey)
	if !ok || state != queryState {
		response.FromError(w, r, "auth.google_callback", apperr.Unauthorized("Invalid OAuth state"))
		return
	}
	// state is single use
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: oauthCookiePath, MaxAge: -1, HttpOnly: true, Secure: r.TLS != nil})

	res, err := h.authSvc.LoginWithGoogleCode(r.Context(), code)
	if err != nil {
		response.FromError(w, r, "auth.google_callback", err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message{Message: "Google login successful", Token: res.Token})
}

func (h *AuthHandler) observe(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time) {
	status := "success"
	if sw, ok := w.(interface{ Status() int }); ok && sw.Status() >= http.StatusBadRequest {
		status = "failure"
	}
	observability.RecordAuthRequestDuration(r.Context(), endpoint, status, time.Since(start))
}
