package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mahamart/commerce-backend/internal/apperr"
)

// TokenClaims is the signed payload. The user id travels in the "id" claim and
// is mirrored into "sub" for standard tooling.
type TokenClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Claims is what a verified token yields to callers.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type JWTManager struct {
	secret []byte
	ttl    time.Duration
	method jwt.SigningMethod
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}
}

// WithClock returns a copy of the manager that stamps and validates tokens
// against now.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *JWTManager) TTL() time.Duration { return m.ttl }

func (m *JWTManager) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", apperr.InvalidInput("token subject is required")
	}
	if err := m.checkConfigured(); err != nil {
		return "", err
	}
	now := m.now()
	claims := TokenClaims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *JWTManager) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, apperr.InvalidInput("token is required")
	}
	if err := m.checkConfigured(); err != nil {
		return Claims{}, err
	}
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, m.keyFunc,
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, apperr.Wrap(apperr.KindInvalidToken, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperr.InvalidToken("invalid token")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, apperr.InvalidToken("token has no subject")
	}
	out := Claims{Subject: claims.UserID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (m *JWTManager) keyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
	}
	return m.secret, nil
}

func (m *JWTManager) checkConfigured() error {
	var missing []string
	if len(m.secret) == 0 {
		missing = append(missing, "JWT_SECRET")
	}
	if m.ttl <= 0 {
		missing = append(missing, "JWT_EXPIRES_IN")
	}
	if len(missing) > 0 {
		return apperr.Configuration(strings.Join(missing, ", ") + " not configured")
	}
	return nil
}

// IsExpired reports whether err came from verifying an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
