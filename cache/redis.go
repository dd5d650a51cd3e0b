package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kasogane/guildhall/config"
	goredis "github.com/redis/go-redis/v9"
)

// redisCache implements Cache backed by Redis.
type redisCache struct {
	client *goredis.Client
}

func newRedisClient(cfg config.CacheConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func newRedisCache(cfg config.CacheConfig) (*redisCache, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &redisCache{client: client}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *redisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// redisPubSub implements PubSub backed by Redis channels.
type redisPubSub struct {
	client *goredis.Client
}

func newRedisPubSub(cfg config.CacheConfig) (*redisPubSub, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &redisPubSub{client: client}, nil
}

func (r *redisPubSub) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, channel, message).Err()
}

func (r *redisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	ps := r.client.Subscribe(ctx, channels...)
	ch := make(chan *Message, 256)

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			ch <- &Message{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()

	cancel := func() {
		_ = ps.Close()
	}
	return ch, cancel, nil
}
