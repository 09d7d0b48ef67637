package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahamart/commerce-backend/internal/config"
	"github.com/mahamart/commerce-backend/internal/database"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/health"
	"github.com/mahamart/commerce-backend/internal/http/handler"
	"github.com/mahamart/commerce-backend/internal/http/response"
	"github.com/mahamart/commerce-backend/internal/repository"
	"github.com/mahamart/commerce-backend/internal/security"
	"github.com/mahamart/commerce-backend/internal/service"
)

const e2eSecret = "router-test-secret"

type capturingMailer struct {
	mu   sync.Mutex
	sent []service.MailMessage
}

func (m *capturingMailer) Send(_ context.Context, msg service.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *capturingMailer) last(t *testing.T) service.MailMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func (s *memoryStorage) UploadProductImage(_ context.Context, file io.Reader, _ int64) (service.StoredObject, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return service.StoredObject{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	key := fmt.Sprintf("products/%d.png", s.seq)
	s.objects[key] = data
	return service.StoredObject{Key: key, URL: "http://storage.local/" + key}, nil
}

func (s *memoryStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) Ping(context.Context) error { return nil }

type testServer struct {
	handler http.Handler
	mailer  *capturingMailer
	storage *memoryStorage
	jwt     *security.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		DatabaseDriver:      "sqlite",
		DatabaseURL:         fmt.Sprintf("file:router_%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
		JWTSecret:           e2eSecret,
		JWTExpiresIn:        time.Hour,
		AppResetPasswordURL: "http://localhost:3000/reset-password",
		EmailDriver:         "log",
		MaxBodyBytes:        1 << 20,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtMgr := security.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	tokens := service.NewTokenService(jwtMgr)
	mailer := &capturingMailer{}
	storage := &memoryStorage{objects: map[string][]byte{}}

	authSvc := service.NewAuthService(cfg, security.NewHasher(4, 2), tokens, repository.NewUserRepository(db), nil, nil, mailer)
	productSvc := service.NewProductService(repository.NewProductRepository(db), storage, service.NewInMemoryProductListCache(), time.Minute, logger)
	orderSvc := service.NewOrderService(repository.NewOrderRepository(db))

	h := NewRouter(Dependencies{
		AuthHandler:    handler.NewAuthHandler(authSvc, "state-key"),
		ProductHandler: handler.NewProductHandler(productSvc),
		OrderHandler:   handler.NewOrderHandler(orderSvc),
		TokenVerifier:  tokens,
		Logger:         logger,
		CORSOrigins:    []string{"*"},
		Readiness:      health.NewProbeRunner(time.Second, health.NewDBChecker(db), health.NewStorageChecker(storage)),
	})
	return &testServer{handler: h, mailer: mailer, storage: storage, jwt: jwtMgr}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func messageOf(t *testing.T, rr *httptest.ResponseRecorder) response.Message {
	t.Helper()
	var msg response.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg), rr.Body.String())
	return msg
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestRegisterThenLogin(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/auth/register", "", credentials("a@x.com", "pw123"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	registered := messageOf(t, rr)
	assert.Equal(t, "User registered", registered.Message)
	require.NotEmpty(t, registered.Token)

	rr = srv.do(t, http.MethodPost, "/api/auth/login", "", credentials("a@x.com", "pw123"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	loggedIn := messageOf(t, rr)
	assert.Equal(t, "Login successful", loggedIn.Message)

	regClaims, err := srv.jwt.Verify(registered.Token)
	require.NoError(t, err)
	loginClaims, err := srv.jwt.Verify(loggedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, regClaims.Subject, loginClaims.Subject)

	rr = srv.do(t, http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "a@x.com", me.Email)
	assert.Equal(t, loginClaims.Subject, service.FormatSubject(me.ID))

	rr = srv.do(t, http.MethodPost, "/api/auth/register", "", credentials("a@x.com", "pw123"))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/auth/register", "", credentials("a@x.com", "pw123")).Code)

	rr := srv.do(t, http.MethodPost, "/api/auth/login", "", credentials("a@x.com", "wrong"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", errorOf(t, rr).Error)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "unknown@x.com"})
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found", errorOf(t, rr).Error)
}

func TestResetPasswordReplacesCredential(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/auth/register", "", credentials("a@x.com", "pw123")).Code)

	rr := srv.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	mail := srv.mailer.last(t)
	assert.Equal(t, "a@x.com", mail.To)
	link := mail.Body[strings.Index(mail.Body, "http"):]
	u, err := url.Parse(strings.TrimSpace(link))
	require.NoError(t, err)
	resetToken := u.Query().Get("token")
	require.NotEmpty(t, resetToken)

	rr = srv.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": resetToken, "newPassword": "newpw"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Password reset successful", messageOf(t, rr).Message)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/auth/login", "", credentials("a@x.com", "newpw")).Code)
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodPost, "/api/auth/login", "", credentials("a@x.com", "pw123")).Code)
}

func TestAuthGateResponses(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Unauthorized: No token provided", errorOf(t, rr).Error)

	rr = srv.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Forbidden: Invalid token", errorOf(t, rr).Error)

	foreign, err := security.NewJWTManager("some-other-secret", time.Hour).Issue("1")
	require.NoError(t, err)
	rr = srv.do(t, http.MethodGet, "/api/orders", foreign, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCatalogAndOrders(t *testing.T) {
	srv := newTestServer(t)
	rr := srv.do(t, http.MethodPost, "/api/auth/register", "", credentials("buyer@x.com", "pw123"))
	require.Equal(t, http.StatusCreated, rr.Code)
	token := messageOf(t, rr).Token

	rr = srv.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "No products found", errorOf(t, rr).Error)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	require.NoError(t, mw.WriteField("name", "Lamp"))
	require.NoError(t, mw.WriteField("description", "Desk lamp"))
	require.NoError(t, mw.WriteField("price", "25"))
	require.NoError(t, mw.WriteField("stock", "3"))
	fw, err := mw.CreateFormFile("image", "lamp.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr = httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code, "product writes are gated")

	req = httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(form.Bytes()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var product domain.Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &product))
	require.NotNil(t, product.ImageURL)
	assert.Len(t, srv.storage.objects, 1)

	rr = srv.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var items []domain.Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Lamp", items[0].Name)

	rr = srv.do(t, http.MethodPost, "/api/orders", token, map[string]any{"id_product": product.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var order domain.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	rr = srv.do(t, http.MethodPost, "/api/orders", token, map[string]any{"id_product": 999, "quantity": 1})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "User or product not found", errorOf(t, rr).Error)

	rr = srv.do(t, http.MethodGet, "/api/orders?user_id="+fmt.Sprint(order.UserID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rows []domain.OrderSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "buyer@x.com", rows[0].UserEmail)
	assert.Equal(t, "Lamp", rows[0].ProductName)

	rr = srv.do(t, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", order.ID), token, map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated domain.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)

	rr = srv.do(t, http.MethodPut, fmt.Sprintf("/api/orders/%d", order.ID), token, map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, domain.OrderStatusDelivered, updated.Status)

	rr = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", product.ID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Product deleted successfully", messageOf(t, rr).Message)
	assert.Empty(t, srv.storage.objects)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"object_storage"`)
}
