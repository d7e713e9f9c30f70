package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/huskiesio/api/internal/models"
)

// RedisStore handles Redis operations for staged registrations and
// rate-limit counters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// registrationKey returns the key for a staged registration.
func registrationKey(id string) string {
	return fmt.Sprintf("registration:%s", id)
}

// rateLimitKey returns the key for a rate-limit counter.
func rateLimitKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// PutRegistration stages a registration; the TTL bounds the
// verification-code entry window.
func (s *RedisStore) PutRegistration(ctx context.Context, reg *models.Registration, ttl time.Duration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, registrationKey(reg.ID), data, ttl).Err()
}

// GetRegistration retrieves a staged registration; (nil, nil) when absent
// or expired.
func (s *RedisStore) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	data, err := s.client.Get(ctx, registrationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	reg := &models.Registration{}
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// DeleteRegistration removes a staged registration.
func (s *RedisStore) DeleteRegistration(ctx context.Context, id string) error {
	return s.client.Del(ctx, registrationKey(id)).Err()
}

// Allow records one hit against the key and reports whether the key is
// still within limit for the window.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitKey(key)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(limit), nil
}
