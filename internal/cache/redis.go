// Package cache is a small string cache over Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is what callers need from a cache. *Redis implements it.
type Store interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// IsMiss reports whether err means the key was absent.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

type Redis struct {
	C *redis.Client
}

func New(addr string) *Redis {
	return &Redis{
		C: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.C.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.C.Close()
}

func (r *Redis) GetString(ctx context.Context, key string) (string, error) {
	return r.C.Get(ctx, key).Result()
}

func (r *Redis) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.C.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.C.Del(ctx, keys...).Err()
}
