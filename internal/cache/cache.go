// Package cache keeps the latest metric snapshots in Redis so dashboard
// reads never hit the aggregation tables. Payloads are snappy-compressed
// JSON. With no Redis address configured the cache degrades to a no-op.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/agendobot/metrics/internal/config"
	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Snapshots stores and serves the latest computed snapshot per key.
type Snapshots interface {
	SetPlatform(ctx context.Context, period string, payload []byte) error
	SetTenant(ctx context.Context, tenantID, period string, payload []byte) error
	GetPlatform(ctx context.Context, period string) ([]byte, bool, error)
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type redisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

type noopSnapshots struct{}

func (noopSnapshots) SetPlatform(context.Context, string, []byte) error       { return nil }
func (noopSnapshots) SetTenant(context.Context, string, string, []byte) error { return nil }
func (noopSnapshots) GetPlatform(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func New(p Params) Snapshots {
	if p.Config.RedisAddr == "" {
		p.Log.Named("cache").Info("redis not configured, snapshot cache disabled")
		return noopSnapshots{}
	}
	client := redis.NewClient(&redis.Options{
		Addr: p.Config.RedisAddr,
		DB:   p.Config.RedisDB,
	})
	return &redisSnapshots{
		client: client,
		ttl:    p.Config.SnapshotTTL,
		log:    p.Log.Named("cache"),
	}
}

func platformKey(period string) string { return fmt.Sprintf("metrics:platform:%s", period) }

func tenantKey(tenantID, period string) string {
	return fmt.Sprintf("metrics:tenant:%s:%s", tenantID, period)
}

func (c *redisSnapshots) SetPlatform(ctx context.Context, period string, payload []byte) error {
	return c.set(ctx, platformKey(period), payload)
}

func (c *redisSnapshots) SetTenant(ctx context.Context, tenantID, period string, payload []byte) error {
	return c.set(ctx, tenantKey(tenantID, period), payload)
}

func (c *redisSnapshots) set(ctx context.Context, key string, payload []byte) error {
	compressed := snappy.Encode(nil, payload)
	if err := c.client.Set(ctx, key, compressed, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *redisSnapshots) GetPlatform(ctx context.Context, period string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, platformKey(period)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", platformKey(period), err)
	}
	decoded, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", platformKey(period), err)
	}
	return decoded, true, nil
}

var Module = fx.Module("cache",
	fx.Provide(New),
)
