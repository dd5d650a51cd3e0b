package cooldowns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedHandler(store Store) (*Handler, *fakeClock) {
	h := NewHandler(store, zap.NewNop())
	clock := newFakeClock()
	h.SetClock(clock.Now)
	return h, clock
}

func TestSetHasExpiry(t *testing.T) {
	h, clock := newClockedHandler(nil)

	h.Set(KindJoin, "p1", 60*time.Second)
	assert.True(t, h.Has(KindJoin, "p1"))
	assert.Equal(t, 60*time.Second, h.Remaining(KindJoin, "p1"))

	// Just before expiry.
	clock.Advance(59 * time.Second)
	assert.True(t, h.Has(KindJoin, "p1"))

	// 61 seconds after the set, the cooldown reads as absent.
	clock.Advance(2 * time.Second)
	assert.False(t, h.Has(KindJoin, "p1"))
	assert.Equal(t, time.Duration(0), h.Remaining(KindJoin, "p1"))
}

func TestKindsAreIndependent(t *testing.T) {
	h, _ := newClockedHandler(nil)

	h.Set(KindJoin, "p1", time.Minute)
	assert.True(t, h.Has(KindJoin, "p1"))
	assert.False(t, h.Has(KindHome, "p1"))
	assert.False(t, h.Has(KindJoin, "p2"))
}

func TestClear(t *testing.T) {
	h, _ := newClockedHandler(nil)

	h.Set(KindChat, "p1", time.Minute)
	h.Clear(KindChat, "p1")
	assert.False(t, h.Has(KindChat, "p1"))
}

func TestSweep_EvictsOnlyExpired(t *testing.T) {
	h, clock := newClockedHandler(nil)

	h.Set(KindJoin, "p1", 30*time.Second)
	h.Set(KindJoin, "p2", 120*time.Second)

	clock.Advance(60 * time.Second)
	assert.Equal(t, 1, h.Sweep())
	assert.False(t, h.Has(KindJoin, "p1"))
	assert.True(t, h.Has(KindJoin, "p2"))
	assert.Equal(t, 0, h.Sweep())
}

// entryStore records saved entries in memory.
type entryStore struct {
	entries []Entry
}

func (s *entryStore) LoadCooldowns(context.Context) ([]Entry, error) {
	return append([]Entry(nil), s.entries...), nil
}

func (s *entryStore) SaveCooldowns(_ context.Context, entries []Entry) error {
	s.entries = append([]Entry(nil), entries...)
	return nil
}

func TestSaveLoad_DropsExpired(t *testing.T) {
	store := &entryStore{}
	h, clock := newClockedHandler(store)

	h.Set(KindJoin, "p1", 30*time.Second)
	h.Set(KindHome, "p2", 10*time.Minute)

	// p1 expires before the save; only p2 should be persisted.
	clock.Advance(time.Minute)
	require.NoError(t, h.Save(context.Background()))
	require.Len(t, store.entries, 1)
	assert.Equal(t, KindHome, store.entries[0].Kind)
	assert.Equal(t, "p2", store.entries[0].PlayerID)

	h2, clock2 := newClockedHandler(store)
	clock2.Advance(time.Minute)
	require.NoError(t, h2.Load(context.Background()))
	assert.True(t, h2.Has(KindHome, "p2"))
	assert.False(t, h2.Has(KindJoin, "p1"))

	// Past every expiry, a fresh load keeps nothing.
	clock2.Advance(time.Hour)
	h3, clock3 := newClockedHandler(store)
	clock3.Advance(2 * time.Hour)
	require.NoError(t, h3.Load(context.Background()))
	assert.False(t, h3.Has(KindHome, "p2"))
}
