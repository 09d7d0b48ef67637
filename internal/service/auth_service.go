package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/config"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/repository"
	"github.com/mahamart/commerce-backend/internal/security"
)

const (
	msgUserNotFound       = "User not found"
	msgInvalidCredentials = "Invalid credentials"
	resetPasswordSubject  = "Reset Password"
)

type AuthResult struct {
	User  *domain.User
	Token string
}

type ResetPasswordInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

type AuthService struct {
	cfg           *config.Config
	hasher        *security.Hasher
	tokens        *TokenService
	users         repository.UserRepository
	identity      IdentityVerifier
	oauthProvider OAuthProvider
	mailer        MailSender
}

func NewAuthService(
	cfg *config.Config,
	hasher *security.Hasher,
	tokens *TokenService,
	users repository.UserRepository,
	identity IdentityVerifier,
	oauthProvider OAuthProvider,
	mailer MailSender,
) *AuthService {
	return &AuthService{
		cfg:           cfg,
		hasher:        hasher,
		tokens:        tokens,
		users:         users,
		identity:      identity,
		oauthProvider: oauthProvider,
		mailer:        mailer,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (res *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.register")
	defer span.End()
	defer func() { observability.RecordAuthFlowEvent(ctx, "register", flowOutcome(err)) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.InvalidInput("Email and password are required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	hash, err := s.hash(ctx, password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, email, &hash)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperr.Wrap(apperr.KindConflict, "User already exists", err)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Registration failed", err)
	}
	return s.result(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.login")
	defer span.End()
	defer func() { observability.RecordAuthFlowEvent(ctx, "login", flowOutcome(err)) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.InvalidInput("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.Unauthorized(s.unknownUserMessage())
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Login failed", err)
	}
	// OAuth-only accounts have nothing to compare against.
	if !user.HasPassword() {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	ok, err := s.compare(ctx, password, *user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	return s.result(ctx, user)
}

// GoogleLogin verifies a Google ID token obtained by the client and signs the
// matching account in, creating a password-less account on first use.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (res *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.google_login")
	defer span.End()
	defer func() { observability.RecordAuthFlowEvent(ctx, "google_login", flowOutcome(err)) }()

	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.InvalidInput("Token ID is required")
	}
	if s.cfg.GoogleClientID == "" {
		return nil, apperr.Configuration("Google Client ID is not set")
	}
	identity, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.ExternalService("Google login failed", err)
		}
		return nil, err
	}
	return s.loginExternalIdentity(ctx, identity)
}

func (s *AuthService) GoogleCodeFlowEnabled() bool {
	return s.oauthProvider != nil && s.cfg.GoogleClientID != "" && s.cfg.GoogleClientSecret != ""
}

func (s *AuthService) GoogleLoginURL(state string) string {
	if !s.GoogleCodeFlowEnabled() {
		return ""
	}
	return s.oauthProvider.AuthCodeURL(state)
}

func (s *AuthService) LoginWithGoogleCode(ctx context.Context, code string) (res *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.google_callback")
	defer span.End()
	defer func() { observability.RecordAuthFlowEvent(ctx, "google_callback", flowOutcome(err)) }()

	if !s.GoogleCodeFlowEnabled() {
		return nil, apperr.NotFound("Google login is not enabled")
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperr.InvalidInput("Authorization code is required")
	}
	identity, err := resolveCodeFlowIdentity(ctx, s.oauthProvider, code)
	if err != nil {
		if errors.Is(err, errGoogleEmailUnverified) {
			return nil, apperr.InvalidInput("Google email not verified")
		}
		return nil, apperr.ExternalService("Google login failed", err)
	}
	return s.loginExternalIdentity(ctx, identity)
}

func (s *AuthService) loginExternalIdentity(ctx context.Context, identity *VerifiedIdentity) (*AuthResult, error) {
	if identity == nil || strings.TrimSpace(identity.Email) == "" {
		return nil, apperr.InvalidInput("Email is required")
	}
	email := strings.TrimSpace(identity.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = s.users.Create(ctx, email, nil)
		// a concurrent first login for the same email won the insert
		if errors.Is(err, repository.ErrUserExists) {
			user, err = s.users.FindByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "User creation failed", err)
	}
	return s.result(ctx, user)
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := observability.StartSpan(ctx, "auth.forgot_password")
	defer span.End()
	defer func() { observability.RecordAuthFlowEvent(ctx, "forgot_password", flowOutcome(err)) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.InvalidInput("Email is required")
	}
	if s.mailer == nil || !s.cfg.MailConfigured() {
		return apperr.Configuration("Email credentials are not set")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound(msgUserNotFound)
		}
		return apperr.Wrap(apperr.KindInternal, "Failed to send reset password email", err)
	}

	resetToken, err := s.tokens.IssueForUser(ctx, user)
	if err != nil {
		return err
	}
	link, err := resetLink(s.cfg.AppResetPasswordURL, resetToken)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, MailMessage{
		To:      user.Email,
		Subject: resetPasswordSubject,
		Body:    "Klik link berikut untuk reset password: " + link,
	}); err != nil {
		return apperr.EmailDelivery("Failed to send reset password email", err)
	}
	return nil
}

// ResetPassword replaces the password of the user named by a reset token. The
// token is not consumed; it stays usable until it expires.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	ctx, span := observability.StartSpan(ctx, "auth.reset_password")
	defer span.End()
	defer func() { observability.RecordAuthFlowEvent(ctx, "reset_password", flowOutcome(err)) }()

	if strings.TrimSpace(in.Token) == "" || in.NewPassword == "" {
		return apperr.InvalidInput("Token and new password are required")
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.NewPassword {
		return apperr.InvalidInput("Passwords do not match")
	}

	claims, err := s.tokens.Verify(ctx, in.Token, "reset_password")
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConfiguration {
			return err
		}
		return apperr.Wrap(apperr.KindUnauthorized, "Invalid token", err)
	}
	userID, err := ParseSubject(claims.Subject)
	if err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "Invalid token", err)
	}

	hash, err := s.hash(ctx, in.NewPassword)
	if err != nil {
		return err
	}
	rows, err := s.users.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "Password reset failed", err)
	}
	if rows == 0 {
		return apperr.NotFound(msgUserNotFound)
	}
	return nil
}

// Me loads the account behind a verified token subject.
func (s *AuthService) Me(ctx context.Context, subject string) (*domain.User, error) {
	id, err := ParseSubject(subject)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.NotFound(msgUserNotFound)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load user", err)
	}
	return user, nil
}

func (s *AuthService) result(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.IssueForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) unknownUserMessage() string {
	if s.cfg.AuthUniformLoginErrors {
		return msgInvalidCredentials
	}
	return msgUserNotFound
}

func (s *AuthService) hash(ctx context.Context, password string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(ctx, password)
	observability.RecordPasswordHashDuration(ctx, "hash", flowOutcome(err), time.Since(start))
	return hash, err
}

func (s *AuthService) compare(ctx context.Context, password, hash string) (bool, error) {
	start := time.Now()
	ok, err := s.hasher.Compare(ctx, password, hash)
	observability.RecordPasswordHashDuration(ctx, "compare", flowOutcome(err), time.Since(start))
	return ok, err
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.InvalidInput("Invalid email")
	}
	return nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apperr.Configuration("APP_RESET_PASSWORD_URL is invalid")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func flowOutcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(apperr.KindOf(err)))
}
