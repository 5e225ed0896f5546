package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/config"
)

const redisKeyPrefix = "storefront:"

// RedisStore keeps profile values under storefront:<profile>:<key>. Each write
// refreshes the TTL so idle profiles age out.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis connects using cfg and verifies the server answers PING.
func DialRedis(ctx context.Context, cfg config.StorageConfig) (*RedisStore, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.RedisAddr, "redis://") || strings.HasPrefix(cfg.RedisAddr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("localstore: parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("localstore: redis ping: %w", err)
	}
	return NewRedisStore(client, cfg.TTL), nil
}

func redisKey(profile, key string) string {
	return redisKeyPrefix + profile + ":" + strings.TrimSpace(key)
}

func (s *RedisStore) Get(ctx context.Context, profile, key string) ([]byte, bool, error) {
	if err := validProfile(profile); err != nil {
		return nil, false, err
	}
	raw, err := s.client.Get(ctx, redisKey(profile, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("localstore: redis get: %w", err)
	}
	return raw, true, nil
}

func (s *RedisStore) Put(ctx context.Context, profile, key string, value []byte) error {
	if err := validProfile(profile); err != nil {
		return err
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, redisKey(profile, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("localstore: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, profile, key string) error {
	if err := validProfile(profile); err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey(profile, key)).Err(); err != nil {
		return fmt.Errorf("localstore: redis del: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
