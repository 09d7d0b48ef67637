package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentRedisClient installs a hook recording command counts, latency and
// keyspace hit/miss outcomes for the product cache client.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	hook, err := newRedisHook(otel.Meter(meterName))
	if err != nil {
		logger.Warn("redis instrumentation disabled", "error", err)
		return
	}
	client.AddHook(hook)
}

type redisHook struct {
	commands metric.Int64Counter
	latency  metric.Float64Histogram
	keyspace metric.Int64Counter
}

func newRedisHook(meter metric.Meter) (*redisHook, error) {
	commands, err := meter.Int64Counter("redis.commands", metric.WithDescription("Redis commands by status"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("redis.command.duration", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	keyspace, err := meter.Int64Counter("redis.keyspace.lookups", metric.WithDescription("GET outcomes (hit or miss)"))
	if err != nil {
		return nil, err
	}
	return &redisHook{commands: commands, latency: latency, keyspace: keyspace}, nil
}

func (h *redisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *redisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, err)
		h.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("command", strings.ToLower(cmd.Name())),
		))
		return err
	}
}

func (h *redisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err())
		}
		h.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("command", "pipeline"),
		))
		return err
	}
}

func (h *redisHook) observe(ctx context.Context, cmd redis.Cmder, err error) {
	name := strings.ToLower(cmd.Name())
	h.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("status", redisStatus(err)),
	))
	if name != "get" {
		return
	}
	switch {
	case errors.Is(err, redis.Nil):
		h.keyspace.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "miss")))
	case err == nil:
		h.keyspace.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))
	}
}

func redisStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}
