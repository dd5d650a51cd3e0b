// Package cache provides the session KV store and the pub/sub fabric
// used for guild chat and event streams. A Redis backend is used when
// an address is configured; otherwise everything runs in-process.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kasogane/guildhall/config"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Cache is the KV surface used for sessions and rate bookkeeping.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

// NewCache returns a Cache backed by Redis if RedisAddr is set,
// otherwise an in-process cache.
func NewCache(cfg config.CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		return newRedisCache(cfg)
	}
	return newLocalCache(cfg.LocalGCInterval), nil
}

// NewPubSub returns a PubSub backed by Redis if RedisAddr is set,
// otherwise an in-process fan-out.
func NewPubSub(cfg config.CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		return newRedisPubSub(cfg)
	}
	return newLocalPubSub(cfg.LocalPubSubBuf), nil
}
