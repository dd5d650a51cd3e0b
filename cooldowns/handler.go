// Package cooldowns tracks per-player, per-kind expiring timers.
// Entries expire lazily: an expired entry reads as absent but stays in
// memory until the periodic sweep evicts it.
package cooldowns

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cooldown kinds.
const (
	KindHome    = "Home"
	KindJoin    = "Join"
	KindRequest = "Request"
	KindChat    = "Chat"
)

// Entry is one persisted cooldown.
type Entry struct {
	Kind     string
	PlayerID string
	Expiry   time.Time
}

// Store persists cooldowns across restarts.
type Store interface {
	LoadCooldowns(ctx context.Context) ([]Entry, error)
	SaveCooldowns(ctx context.Context, entries []Entry) error
}

type key struct {
	kind     string
	playerID string
}

// Handler is the in-memory cooldown tracker.
type Handler struct {
	mu      sync.RWMutex
	entries map[key]time.Time

	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a cooldown Handler. store may be nil for a purely
// in-memory tracker.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{
		entries: make(map[key]time.Time),
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests use it to simulate expiry.
func (h *Handler) SetClock(now func() time.Time) {
	h.mu.Lock()
	h.now = now
	h.mu.Unlock()
}

// Set stores now+duration as the expiry for (kind, player).
func (h *Handler) Set(kind, playerID string, duration time.Duration) {
	h.mu.Lock()
	h.entries[key{kind, playerID}] = h.now().Add(duration)
	h.mu.Unlock()
}

// Has reports whether an unexpired entry exists. Expired entries are
// treated as absent but not evicted here.
func (h *Handler) Has(kind, playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	expiry, ok := h.entries[key{kind, playerID}]
	return ok && h.now().Before(expiry)
}

// Remaining returns the time left on the cooldown, or zero if absent or
// expired.
func (h *Handler) Remaining(kind, playerID string) time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	expiry, ok := h.entries[key{kind, playerID}]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(h.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clear drops the entry regardless of expiry.
func (h *Handler) Clear(kind, playerID string) {
	h.mu.Lock()
	delete(h.entries, key{kind, playerID})
	h.mu.Unlock()
}

// Sweep evicts expired entries and returns how many were removed.
// The scheduler runs it on the persistence cycle.
func (h *Handler) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	removed := 0
	for k, expiry := range h.entries {
		if !now.Before(expiry) {
			delete(h.entries, k)
			removed++
		}
	}
	return removed
}

// Save flushes unexpired entries to the store.
func (h *Handler) Save(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	h.mu.RLock()
	now := h.now()
	entries := make([]Entry, 0, len(h.entries))
	for k, expiry := range h.entries {
		if now.Before(expiry) {
			entries = append(entries, Entry{Kind: k.kind, PlayerID: k.playerID, Expiry: expiry})
		}
	}
	h.mu.RUnlock()
	return h.store.SaveCooldowns(ctx, entries)
}

// Load replaces the in-memory table with the store's unexpired entries.
func (h *Handler) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	entries, err := h.store.LoadCooldowns(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.entries = make(map[key]time.Time, len(entries))
	kept := 0
	for _, e := range entries {
		if now.Before(e.Expiry) {
			h.entries[key{e.Kind, e.PlayerID}] = e.Expiry
			kept++
		}
	}
	h.logger.Info("cooldowns loaded", zap.Int("entries", kept))
	return nil
}
