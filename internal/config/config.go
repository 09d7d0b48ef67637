package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mahamart/commerce-backend/internal/apperr"
)

type Config struct {
	Env             string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	DatabaseDriver string
	DatabaseURL    string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration

	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOBucket        string
	MinIOUseSSL        bool
	MinIOPublicBaseURL string
	ImageMaxBytes      int64

	JWTSecret    string
	JWTExpiresIn time.Duration

	AuthBcryptCost          int
	AuthHashConcurrency     int
	AuthUniformLoginErrors  bool
	AppResetPasswordURL     string
	CORSAllowedOrigins      []string
	ReadinessProbeTimeout   time.Duration
	GoogleClientID          string
	GoogleClientSecret      string
	GoogleRedirectURL       string
	GoogleJWKSURL           string
	OAuthStateSigningSecret string

	EmailDriver   string
	EmailUser     string
	EmailPass     string
	EmailSMTPHost string
	EmailSMTPPort int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

// Load reads the process environment. A .env file in the working directory
// (or the one named by ENV_FILE) is applied first without overriding
// variables that are already set.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	env := getEnv("APP_ENV", "development")
	cfg := &Config{
		Env:            env,
		HTTPAddr:       httpAddr(),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinIOEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:        getEnv("MINIO_BUCKET", "product-images"),
		MinIOUseSSL:        getEnvBool("MINIO_USE_SSL", false),
		MinIOPublicBaseURL: strings.TrimRight(os.Getenv("MINIO_PUBLIC_BASE_URL"), "/"),
		ImageMaxBytes:      int64(getEnvInt("PRODUCT_IMAGE_MAX_BYTES", 5<<20)),

		JWTSecret: os.Getenv("JWT_SECRET"),

		AuthBcryptCost:          getEnvInt("AUTH_BCRYPT_COST", 10),
		AuthHashConcurrency:     getEnvInt("AUTH_HASH_CONCURRENCY", runtime.NumCPU()),
		AuthUniformLoginErrors:  getEnvBool("AUTH_UNIFORM_LOGIN_ERRORS", false),
		AppResetPasswordURL:     getEnv("APP_RESET_PASSWORD_URL", "http://localhost:3000/reset-password"),
		CORSAllowedOrigins:      splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		GoogleClientID:          os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:      os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:       getEnv("GOOGLE_REDIRECT_URL", "http://localhost:5000/api/auth/google/callback"),
		GoogleJWKSURL:           getEnv("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
		OAuthStateSigningSecret: os.Getenv("OAUTH_STATE_SECRET"),

		EmailDriver:   strings.ToLower(getEnv("EMAIL_DRIVER", "smtp")),
		EmailUser:     os.Getenv("EMAIL_USER"),
		EmailPass:     os.Getenv("EMAIL_PASS"),
		EmailSMTPHost: getEnv("EMAIL_SMTP_HOST", "smtp.gmail.com"),
		EmailSMTPPort: getEnvInt("EMAIL_SMTP_PORT", 587),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "mahamart-commerce-backend"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELLogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.JWTExpiresIn, err = ParseExpiry(os.Getenv("JWT_EXPIRES_IN")); err != nil {
		return nil, fmt.Errorf("parse JWT_EXPIRES_IN: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProductCacheTTL, err = getEnvDuration("PRODUCT_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReadinessProbeTimeout, err = getEnvDuration("READINESS_PROBE_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once. The JWT settings are
// required at startup; Google and mail settings are optional and checked by the
// flows that need them.
func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		errs = append(errs, "DATABASE_DRIVER must be postgres or sqlite")
	}
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, "JWT_EXPIRES_IN is required and must be > 0")
	}
	if c.AuthBcryptCost < 4 || c.AuthBcryptCost > 31 {
		errs = append(errs, "AUTH_BCRYPT_COST must be between 4 and 31")
	}
	if c.AuthHashConcurrency <= 0 {
		errs = append(errs, "AUTH_HASH_CONCURRENCY must be > 0")
	}
	if c.GoogleClientSecret != "" && c.GoogleClientID == "" {
		errs = append(errs, "GOOGLE_CLIENT_ID is required when GOOGLE_CLIENT_SECRET is set")
	}
	if c.GoogleClientSecret != "" && len(c.OAuthStateSigningSecret) < 16 {
		errs = append(errs, "OAUTH_STATE_SECRET must be at least 16 chars when the Google code flow is enabled")
	}
	if c.EmailDriver != "smtp" && c.EmailDriver != "log" {
		errs = append(errs, "EMAIL_DRIVER must be smtp or log")
	}
	if c.MinIOEndpoint != "" && (c.MinIOAccessKey == "" || c.MinIOSecretKey == "") {
		errs = append(errs, "MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, "MAX_BODY_BYTES must be > 0")
	}
	if c.ProductCacheTTL <= 0 {
		errs = append(errs, "PRODUCT_CACHE_TTL must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return apperr.Configuration(strings.Join(errs, "; "))
	}
	return nil
}

// MailConfigured reports whether the forgot-password flow can deliver mail.
func (c *Config) MailConfigured() bool {
	if c.EmailDriver == "log" {
		return true
	}
	return c.EmailUser != "" && c.EmailPass != ""
}

// ParseExpiry accepts a Go duration ("90m"), a bare number of seconds ("3600")
// or a number of days ("7d").
func ParseExpiry(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func httpAddr() string {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":" + getEnv("PORT", "5000")
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
