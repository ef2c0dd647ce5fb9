package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/models"
)

// Redis stores roles as plain string values with a TTL
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, log: log}
}

// Open connects to url and pings it. An empty url, or a server that does not
// answer, yields Noop so startup never depends on the cache.
func Open(ctx context.Context, url string, ttl time.Duration, log *zap.Logger) (RoleCache, func() error) {
	if url == "" {
		return Noop{}, func() error { return nil }
	}

	client, err := dial(ctx, url)
	if err != nil {
		log.Warn("Redis unavailable, role cache disabled", zap.Error(err))
		return Noop{}, func() error { return nil }
	}
	log.Info("Role cache connected", zap.String("addr", client.Options().Addr))
	return NewRedis(client, ttl, log), client.Close
}

func dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, principalID string) (models.Role, bool) {
	val, err := r.client.Get(ctx, Key(principalID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("Role cache read failed", zap.String("principal", principalID), zap.Error(err))
		}
		return "", false
	}
	role, err := models.ParseRole(val)
	if err != nil {
		// Stale or foreign value; drop it and fall through to the store
		r.Delete(ctx, principalID)
		return "", false
	}
	return role, true
}

func (r *Redis) Set(ctx context.Context, principalID string, role models.Role) {
	if err := r.client.Set(ctx, Key(principalID), string(role), r.ttl).Err(); err != nil {
		r.log.Warn("Role cache write failed", zap.String("principal", principalID), zap.Error(err))
	}
}

func (r *Redis) Delete(ctx context.Context, principalID string) {
	if err := r.client.Del(ctx, Key(principalID)).Err(); err != nil {
		r.log.Warn("Role cache delete failed", zap.String("principal", principalID), zap.Error(err))
	}
}
