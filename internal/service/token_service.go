package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/security"
)

// TokenService is the flow-facing wrapper around JWTManager. Reset tokens and
// access tokens share one signing key and TTL.
type TokenService struct {
	jwtMgr *security.JWTManager
}

func NewTokenService(jwtMgr *security.JWTManager) *TokenService {
	return &TokenService{jwtMgr: jwtMgr}
}

func (s *TokenService) TTL() time.Duration { return s.jwtMgr.TTL() }

func (s *TokenService) Issue(ctx context.Context, subject string) (string, error) {
	token, err := s.jwtMgr.Issue(subject)
	if err != nil {
		observability.RecordTokenValidation(ctx, "issue_error", "issue")
		return "", err
	}
	return token, nil
}

func (s *TokenService) IssueForUser(ctx context.Context, user *domain.User) (string, error) {
	if user == nil || user.ID == 0 {
		return "", apperr.InvalidInput("user id is required")
	}
	return s.Issue(ctx, FormatSubject(user.ID))
}

// Verify checks signature and expiry. source labels the caller in metrics
// (for example "header", "body", "reset_password").
func (s *TokenService) Verify(ctx context.Context, token, source string) (security.Claims, error) {
	claims, err := s.jwtMgr.Verify(token)
	switch {
	case err == nil:
		observability.RecordTokenValidation(ctx, "valid", source)
	case security.IsExpired(err):
		observability.RecordTokenValidation(ctx, "expired", source)
	default:
		observability.RecordTokenValidation(ctx, "invalid", source)
	}
	return claims, err
}

func FormatSubject(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseSubject turns a verified token subject back into a user id.
func ParseSubject(subject string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(subject), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidToken("invalid user subject")
	}
	return uint(id), nil
}
