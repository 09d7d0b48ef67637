package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"

	"github.com/mahamart/commerce-backend/internal/config"
)

const meterName = "mahamart-commerce-backend"

type AppMetrics struct {
	authFlowCounter          metric.Int64Counter
	authReqDuration          metric.Float64Histogram
	tokenValidationCounter   metric.Int64Counter
	passwordHashDuration     metric.Float64Histogram
	oauthGoogleReqDuration   metric.Float64Histogram
	oauthGoogleErrorsCounter metric.Int64Counter
	repositoryOpCounter      metric.Int64Counter
	productCacheCounter      metric.Int64Counter
	productOpDuration        metric.Float64Histogram
	orderOpDuration          metric.Float64Histogram
	storageOpCounter         metric.Int64Counter
	mailDeliveryCounter      metric.Int64Counter
	middlewareValidation     metric.Int64Counter
	healthCheckResultCounter metric.Int64Counter
	healthCheckDuration      metric.Float64Histogram
	dbStartupCounter         metric.Int64Counter
	dbStartupDuration        metric.Float64Histogram
	toolCommandCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.password.hash.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.25, 0.5, 1},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var (
		m   AppMetrics
		err error
	)
	counter := func(dst *metric.Int64Counter, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc))
	}
	seconds := func(dst *metric.Float64Histogram, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name, metric.WithUnit("s"), metric.WithDescription(desc))
	}

	counter(&m.authFlowCounter, "auth.flow.events", "Auth flow outcomes by flow")
	seconds(&m.authReqDuration, "auth.request.duration", "Duration of auth endpoint requests")
	counter(&m.tokenValidationCounter, "auth.token.validation.events", "Bearer token validation outcomes")
	seconds(&m.passwordHashDuration, "auth.password.hash.duration", "bcrypt hash and compare latency")
	seconds(&m.oauthGoogleReqDuration, "auth.oauth.google.request.duration", "Google OAuth call latency")
	counter(&m.oauthGoogleErrorsCounter, "auth.oauth.google.errors", "Google OAuth failures by reason")
	counter(&m.repositoryOpCounter, "repository.operations", "Repository operation outcomes")
	counter(&m.productCacheCounter, "product.cache.events", "Product list cache hits and misses")
	seconds(&m.productOpDuration, "product.operation.duration", "Catalog service operation latency")
	seconds(&m.orderOpDuration, "order.operation.duration", "Order service operation latency")
	counter(&m.storageOpCounter, "storage.operations", "Object storage operation outcomes")
	counter(&m.mailDeliveryCounter, "mail.deliveries", "Outbound mail outcomes")
	counter(&m.middlewareValidation, "http.middleware.validation.events", "Middleware decisions")
	counter(&m.healthCheckResultCounter, "health.check.results", "Readiness check outcomes")
	seconds(&m.healthCheckDuration, "health.check.duration", "Readiness check latency")
	counter(&m.dbStartupCounter, "database.startup.events", "Migration and seed outcomes")
	seconds(&m.dbStartupDuration, "database.startup.duration", "Migration and seed latency")
	counter(&m.toolCommandCounter, "tool.command.runs", "CLI tool command outcomes")
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthFlowEvent(ctx context.Context, flow, outcome string) {
	if m := current(); m != nil {
		m.authFlowCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	if m := current(); m != nil {
		m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		))
	}
}

func RecordTokenValidation(ctx context.Context, outcome, source string) {
	if m := current(); m != nil {
		m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		))
	}
}

func RecordPasswordHashDuration(ctx context.Context, op, outcome string, duration time.Duration) {
	if m := current(); m != nil {
		m.passwordHashDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordGoogleOAuthRequestDuration(ctx context.Context, stage, status string, duration time.Duration) {
	if m := current(); m != nil {
		m.oauthGoogleReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		))
	}
}

func RecordGoogleOAuthError(ctx context.Context, reason string) {
	if m := current(); m != nil {
		m.oauthGoogleErrorsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	if m := current(); m != nil {
		m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("repository", repo),
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordProductCacheEvent(ctx context.Context, outcome string) {
	if m := current(); m != nil {
		m.productCacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func RecordProductOperation(ctx context.Context, op, outcome string, duration time.Duration) {
	if m := current(); m != nil {
		m.productOpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordOrderOperation(ctx context.Context, op, outcome string, duration time.Duration) {
	if m := current(); m != nil {
		m.orderOpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordStorageOperation(ctx context.Context, op, outcome string) {
	if m := current(); m != nil {
		m.storageOpCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordMailDelivery(ctx context.Context, driver, outcome string) {
	if m := current(); m != nil {
		m.mailDeliveryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("driver", driver),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	if m := current(); m != nil {
		m.middlewareValidation.Add(ctx, 1, metric.WithAttributes(
			attribute.String("middleware", middleware),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	if m := current(); m != nil {
		m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", check),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	if m := current(); m != nil {
		m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("check", check)))
	}
}

func RecordDatabaseStartupEvent(ctx context.Context, phase, outcome string) {
	if m := current(); m != nil {
		m.dbStartupCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordDatabaseStartupDuration(ctx context.Context, phase string, duration time.Duration) {
	if m := current(); m != nil {
		m.dbStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("phase", phase)))
	}
}

func RecordToolCommandRun(ctx context.Context, tool, command, outcome string) {
	if m := current(); m != nil {
		m.toolCommandCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("command", command),
			attribute.String("outcome", outcome),
		))
	}
}
