package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/observability"
)

const (
	defaultJWKSCacheTTL    = time.Hour
	minJWKSRefreshInterval = 30 * time.Second
	jwksFetchTimeout       = 5 * time.Second
	maxJWKSResponseBytes   = 1 << 20
	googleIssuerBare       = "accounts.google.com"
	googleIssuerWithScheme = "https://accounts.google.com"
)

var errJWKSUnavailable = errors.New("google signing keys unavailable")

// VerifiedIdentity is what a successfully verified external ID token yields.
type VerifiedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*VerifiedIdentity, error)
}

// GoogleIDTokenVerifier checks Google-issued ID tokens locally against
// Google's published RSA keys. Keys are cached and refreshed when a token
// references an unknown key id or the cache ages out.
type GoogleIDTokenVerifier struct {
	clientID   string
	jwksURL    string
	httpClient *http.Client
	now        func() time.Time
	cacheTTL   time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	refresh   singleflight.Group
}

func NewGoogleIDTokenVerifier(clientID, jwksURL string, httpClient *http.Client) *GoogleIDTokenVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: jwksFetchTimeout}
	}
	return &GoogleIDTokenVerifier{
		clientID:   clientID,
		jwksURL:    jwksURL,
		httpClient: httpClient,
		now:        time.Now,
		cacheTTL:   defaultJWKSCacheTTL,
		keys:       map[string]*rsa.PublicKey{},
	}
}

type flexBool bool

// Google has historically sent email_verified both as a JSON bool and as the
// string "true".
func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*b = flexBool(strings.EqualFold(s, "true"))
	return nil
}

type googleIDClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
	jwt.RegisteredClaims
}

func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, idToken string) (*VerifiedIdentity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, apperr.InvalidInput("Token ID is required")
	}
	if v.clientID == "" {
		return nil, apperr.Configuration("GOOGLE_CLIENT_ID not configured")
	}

	claims := &googleIDClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, errJWKSUnavailable) {
			observability.RecordGoogleOAuthError(ctx, "jwks_unavailable")
			return nil, apperr.ExternalService("Failed to verify Google token", err)
		}
		observability.RecordGoogleOAuthError(ctx, "invalid_id_token")
		return nil, apperr.Wrap(apperr.KindInvalidInput, "Invalid Google token", err)
	}
	if claims.Issuer != googleIssuerBare && claims.Issuer != googleIssuerWithScheme {
		observability.RecordGoogleOAuthError(ctx, "invalid_issuer")
		return nil, apperr.InvalidInput("Invalid Google token")
	}
	if claims.Email != "" && !bool(claims.EmailVerified) {
		observability.RecordGoogleOAuthError(ctx, "email_not_verified")
		return nil, apperr.InvalidInput("Google email not verified")
	}
	return &VerifiedIdentity{
		Subject:       claims.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func (v *GoogleIDTokenVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, errors.New("id token has no key id")
	}
	v.mu.RLock()
	k, ok := v.keys[kid]
	stale := v.now().Sub(v.fetchedAt) > v.cacheTTL
	recent := v.now().Sub(v.fetchedAt) < minJWKSRefreshInterval
	v.mu.RUnlock()
	if ok && !stale {
		return k, nil
	}
	if !ok && recent {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}

	if _, err, _ := v.refresh.Do("jwks", func() (any, error) {
		return nil, v.fetchKeys(ctx)
	}); err != nil {
		if ok {
			// serve the stale key rather than fail on a transient fetch error
			return k, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown key id %q", kid)
}

type jwkSet struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		Alg string `json:"alg"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *GoogleIDTokenVerifier) fetchKeys(ctx context.Context) error {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordGoogleOAuthRequestDuration(ctx, "jwks", status, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		status = "error"
		return fmt.Errorf("%w: %v", errJWKSUnavailable, err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		status = "error"
		return fmt.Errorf("%w: %v", errJWKSUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		status = "error"
		return fmt.Errorf("%w: jwks status %d", errJWKSUnavailable, resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSResponseBytes)).Decode(&set); err != nil {
		status = "error"
		return fmt.Errorf("%w: decode jwks: %v", errJWKSUnavailable, err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		status = "error"
		return fmt.Errorf("%w: no usable RSA keys", errJWKSUnavailable)
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = v.now()
	v.mu.Unlock()
	return nil
}

func rsaPublicKey(n64, e64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(e64)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eb)
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil
}
