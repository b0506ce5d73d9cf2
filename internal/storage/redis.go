package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arxiv-daily/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared store behind the paper cache. Values are JSON.
// Keys come in families (one day, many file versions) of which only the
// newest member is kept.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis with the configured pool and verifies the connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// GetJSON decodes the value at key into dest. A missing key is a miss, not an error.
func (r *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// ReplaceInFamily stores value at key and deletes every other key under
// family in the same MULTI/EXEC block, so readers never see two versions.
func (r *RedisCache) ReplaceInFamily(ctx context.Context, family, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	members, err := r.familyMembers(ctx, family)
	if err != nil {
		return err
	}
	stale := members[:0]
	for _, m := range members {
		if m != key {
			stale = append(stale, m)
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		pipe.Set(ctx, key, data, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

// familyMembers walks the keyspace with SCAN for keys below family
func (r *RedisCache) familyMembers(ctx context.Context, family string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, family+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", family, err)
	}
	return keys, nil
}
