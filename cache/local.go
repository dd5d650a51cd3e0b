package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data     string
	expireAt time.Time
	noExpiry bool
}

func (e *entry) expired() bool {
	return !e.noExpiry && time.Now().After(e.expireAt)
}

// localCache is an in-process Cache with lazy and periodic expiry.
type localCache struct {
	mu     sync.Mutex
	kv     map[string]*entry
	stopGC chan struct{}
}

func newLocalCache(gcInterval time.Duration) *localCache {
	if gcInterval <= 0 {
		gcInterval = 30 * time.Second
	}
	c := &localCache{
		kv:     make(map[string]*entry),
		stopGC: make(chan struct{}),
	}
	go c.runGC(gcInterval)
	return c
}

// Close stops the background GC goroutine.
func (c *localCache) Close() {
	close(c.stopGC)
}

func (c *localCache) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for k, e := range c.kv {
				if e.expired() {
					delete(c.kv, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopGC:
			return
		}
	}
}

func (c *localCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.kv[key]
	if !ok || e.expired() {
		delete(c.kv, key)
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *localCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = newEntry(value, ttl)
	return nil
}

func (c *localCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.kv, k)
	}
	return nil
}

func (c *localCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.kv[key]
	if !ok {
		return false, nil
	}
	if e.expired() {
		delete(c.kv, key)
		return false, nil
	}
	return true, nil
}

func (c *localCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.kv[key]; ok && !e.expired() {
		return false, nil
	}
	c.kv[key] = newEntry(value, ttl)
	return true, nil
}

func (c *localCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.kv[key]
	if !ok || e.expired() {
		delete(c.kv, key)
		return ErrNotFound
	}
	c.kv[key] = newEntry(e.data, ttl)
	return nil
}

func newEntry(value string, ttl time.Duration) *entry {
	e := &entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	} else {
		e.noExpiry = true
	}
	return e
}

type subscriber struct {
	ch chan *Message
}

// localPubSub is an in-process fan-out pub/sub.
type localPubSub struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	bufSize     int
}

func newLocalPubSub(bufSize int) *localPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &localPubSub{
		subscribers: make(map[string][]*subscriber),
		bufSize:     bufSize,
	}
}

// Publish sends a message to all subscribers of the channel. Messages
// are dropped for subscribers with a full buffer. The read lock is held
// across the sends so a concurrent cancel cannot close a channel while
// it is being sent to; the sends never block, so holding it is safe.
func (ps *localPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &Message{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, s := range ps.subscribers[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a message channel for the given channels and a
// cancel function that closes it.
func (ps *localPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *Message, func(), error) {
	ch := make(chan *Message, ps.bufSize)
	subs := make([]*subscriber, len(channels))

	ps.mu.Lock()
	for i, c := range channels {
		s := &subscriber{ch: ch}
		ps.subscribers[c] = append(ps.subscribers[c], s)
		subs[i] = s
	}
	ps.mu.Unlock()

	cancel := func() {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		for i, c := range channels {
			list := ps.subscribers[c]
			for j, sub := range list {
				if sub == subs[i] {
					ps.subscribers[c] = append(list[:j], list[j+1:]...)
					break
				}
			}
		}
		close(ch)
	}

	return ch, cancel, nil
}
