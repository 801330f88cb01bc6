// Package rediscache caches resolved responsibility centre permissions in
// Redis so hot read paths skip the grant lookup. The cache is optional: when
// no Redis address is configured the application falls back to direct
// resolution.
package rediscache

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/metrics"
	"github.com/myrc-project/myrc/internal/config"
	"github.com/myrc-project/myrc/pkg/logger"
)

// noneValue marks a cached negative result so strangers do not trigger a
// grant lookup on every request.
const noneValue = "NONE"

// PermissionCache stores resolved access levels keyed by RC and username.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// New wraps an existing Redis client.
func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *PermissionCache {
	if log == nil {
		log = logger.NewDefault("rediscache")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PermissionCache{client: client, ttl: ttl, log: log}
}

// Dial connects to Redis using the given configuration. It returns nil when
// no address is configured or the server is unreachable, so callers can treat
// the cache as absent rather than failing startup.
func Dial(cfg config.RedisConfig, log *logger.Logger) *PermissionCache {
	if log == nil {
		log = logger.NewDefault("rediscache")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable, permission caching disabled")
		_ = client.Close()
		return nil
	}

	log.WithField("addr", cfg.Addr).Info("permission cache connected")
	return New(client, time.Duration(cfg.PermissionTTLSeconds)*time.Second, log)
}

func permissionKey(rcID, username string) string {
	return "perm:" + rcID + ":" + strings.ToLower(username)
}

// Get returns the cached level for the user on the RC. The second return
// value reports whether the lookup was a hit; a cached negative result is a
// hit with AccessNone.
func (c *PermissionCache) Get(ctx context.Context, rcID, username string) (rc.AccessLevel, bool) {
	val, err := c.client.Get(ctx, permissionKey(rcID, username)).Result()
	if err == redis.Nil {
		metrics.RecordPermissionLookup("miss")
		return rc.AccessNone, false
	}
	if err != nil {
		c.log.WithError(err).Debug("permission cache get failed")
		metrics.RecordPermissionLookup("error")
		return rc.AccessNone, false
	}
	metrics.RecordPermissionLookup("hit")
	if val == noneValue {
		return rc.AccessNone, true
	}
	return rc.AccessLevel(val), true
}

// Put stores the resolved level with the configured TTL.
func (c *PermissionCache) Put(ctx context.Context, rcID, username string, level rc.AccessLevel) {
	val := string(level)
	if level == rc.AccessNone {
		val = noneValue
	}
	if err := c.client.Set(ctx, permissionKey(rcID, username), val, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("permission cache put failed")
	}
}

// InvalidateRC drops every cached entry for the RC. Called after grant
// mutations so revocations take effect immediately instead of after TTL.
func (c *PermissionCache) InvalidateRC(ctx context.Context, rcID string) {
	iter := c.client.Scan(ctx, 0, permissionKey(rcID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.WithError(err).Debug("permission cache invalidate failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.log.WithError(err).Debug("permission cache scan failed")
	}
}

// Close releases the underlying client.
func (c *PermissionCache) Close() error {
	return c.client.Close()
}
