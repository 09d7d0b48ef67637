package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mahamart/commerce-backend/internal/app"
	"github.com/mahamart/commerce-backend/internal/config"
	"github.com/mahamart/commerce-backend/internal/database"
	"github.com/mahamart/commerce-backend/internal/health"
	"github.com/mahamart/commerce-backend/internal/http/handler"
	"github.com/mahamart/commerce-backend/internal/http/router"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/repository"
	"github.com/mahamart/commerce-backend/internal/security"
	"github.com/mahamart/commerce-backend/internal/service"
)

const (
	googleHTTPTimeout  = 10 * time.Second
	uploadFormOverhead = 1 << 20
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideImageStorage,
	provideProductListCache,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewProductRepository,
	repository.NewOrderRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideHasher,
)

var ServiceSet = wire.NewSet(
	service.NewTokenService,
	provideIdentityVerifier,
	provideOAuthProvider,
	service.NewMailSender,
	service.NewAuthService,
	provideProductService,
	service.NewOrderService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.ProductServiceInterface), new(*service.ProductService)),
	wire.Bind(new(service.OrderServiceInterface), new(*service.OrderService)),
	wire.Bind(new(service.TokenVerifier), new(*service.TokenService)),
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	handler.NewProductHandler,
	handler.NewOrderHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

// provideRuntimeDB opens the database and brings the schema up to date before
// the server accepts traffic.
func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// provideRedisClient returns nil when REDIS_ADDR is unset; the product list
// cache then falls back to process memory.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideImageStorage(cfg *config.Config) (service.ImageStorage, error) {
	if cfg.MinIOEndpoint == "" {
		return service.DisabledImageStorage{}, nil
	}
	return service.NewMinIOStorageService(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucket,
		cfg.MinIOPublicBaseURL,
		cfg.MinIOUseSSL,
		cfg.ImageMaxBytes,
	)
}

func provideProductListCache(redisClient redis.UniversalClient) service.ProductListCache {
	if redisClient == nil {
		return service.NewInMemoryProductListCache()
	}
	return service.NewRedisProductListCache(redisClient, "")
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, storage service.ImageStorage) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	if cfg.MinIOEndpoint != "" {
		checkers = append(checkers, health.NewStorageChecker(storage))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, checkers...)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiresIn)
}

func provideHasher(cfg *config.Config) *security.Hasher {
	return security.NewHasher(cfg.AuthBcryptCost, cfg.AuthHashConcurrency)
}

func provideIdentityVerifier(cfg *config.Config) service.IdentityVerifier {
	return service.NewGoogleIDTokenVerifier(cfg.GoogleClientID, cfg.GoogleJWKSURL, &http.Client{Timeout: googleHTTPTimeout})
}

// provideOAuthProvider returns a nil interface when the code flow is not
// configured so AuthService reports it as disabled.
func provideOAuthProvider(cfg *config.Config) service.OAuthProvider {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil
	}
	return service.NewGoogleOAuthProvider(cfg)
}

func provideProductService(
	cfg *config.Config,
	repo repository.ProductRepository,
	storage service.ImageStorage,
	cache service.ProductListCache,
	logger *slog.Logger,
) *service.ProductService {
	return service.NewProductService(repo, storage, cache, cfg.ProductCacheTTL, logger)
}

func provideAuthHandler(cfg *config.Config, authSvc service.AuthServiceInterface) *handler.AuthHandler {
	stateKey := cfg.OAuthStateSigningSecret
	if stateKey == "" {
		stateKey = cfg.JWTSecret
	}
	return handler.NewAuthHandler(authSvc, stateKey)
}

func provideRouterDependencies(
	cfg *config.Config,
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	productHandler *handler.ProductHandler,
	orderHandler *handler.OrderHandler,
	verifier service.TokenVerifier,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:     authHandler,
		ProductHandler:  productHandler,
		OrderHandler:    orderHandler,
		TokenVerifier:   verifier,
		Logger:          logger,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		UploadBodyBytes: cfg.ImageMaxBytes + uploadFormOverhead,
		Readiness:       readiness,
		EnableOTelHTTP:  cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient)
}
