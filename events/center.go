// Package events lets integrations observe and veto guild lifecycle
// transitions before they are applied.
package events

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrCancelled signals that a listener vetoed the transition.
var ErrCancelled = errors.New("event cancelled")

// Guild lifecycle event names.
const (
	GuildCreate  = "guild_create"
	GuildJoin    = "guild_join"
	GuildLeave   = "guild_leave"
	GuildRemove  = "guild_remove"
	GuildKick    = "guild_kick"
	GuildHomeSet = "guild_home_set"
)

// Event is the payload delivered to listeners. Events are dispatched
// before the transition is applied, so a listener returning ErrCancelled
// vetoes it. Detail carries event-specific data, such as the prospective
// home location for GuildHomeSet.
type Event struct {
	Name     string
	GuildID  string
	PlayerID string
	Detail   string
}

// ListenerFn handles one event. Returning ErrCancelled stops dispatch
// and vetoes the transition; any other error stops dispatch and is
// reported to the caller.
type ListenerFn func(ctx context.Context, ev Event) error

type listenerEntry struct {
	priority int
	name     string
	fn       ListenerFn
}

// Center manages lifecycle listener registrations.
type Center struct {
	mu        sync.RWMutex
	listeners map[string][]*listenerEntry
}

// NewCenter creates an empty listener Center.
func NewCenter() *Center {
	return &Center{listeners: make(map[string][]*listenerEntry)}
}

// Register adds a listener for the given event; lower priority runs
// first. name is used for Unregister.
func (c *Center) Register(event string, priority int, name string, fn ListenerFn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.listeners[event], &listenerEntry{priority: priority, name: name, fn: fn})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.listeners[event] = entries
}

// Unregister removes all listeners with the given name for the event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.listeners[event]
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	c.listeners[event] = entries[:n]
}

// Dispatch runs the event's listeners in priority order. The first
// ErrCancelled (or other error) stops the chain.
func (c *Center) Dispatch(ctx context.Context, ev Event) error {
	c.mu.RLock()
	entries := make([]*listenerEntry, len(c.listeners[ev.Name]))
	copy(entries, c.listeners[ev.Name])
	c.mu.RUnlock()

	for _, e := range entries {
		if err := e.fn(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
