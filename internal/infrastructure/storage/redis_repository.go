package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "flatscanner:seen:"

// RedisRepository stores processed ids as redis keys, optionally expiring after ttl.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisRepository)(nil)

// OpenRedis connects to a redis:// URL.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*RedisRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisRepository(client, ttl), nil
}

// NewRedisRepository wraps an existing client.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisRepository{client: client, ttl: ttl}
}

// IsProcessed implements ports.SeenStore.
func (r *RedisRepository) IsProcessed(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed implements ports.SeenStore.
func (r *RedisRepository) MarkProcessed(ctx context.Context, id int64) error {
	if err := r.client.Set(ctx, redisKey(id), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// ClaimProcessed implements ports.SeenClaimer with SETNX.
func (r *RedisRepository) ClaimProcessed(ctx context.Context, id int64) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisKey(id), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Close closes the client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func redisKey(id int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, id)
}
