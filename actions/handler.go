// Package actions implements the two-phase confirm protocol used by
// operations with irreversible or costly consequences (guild creation,
// deletion, leaving, tier upgrades). A player holds at most one pending
// action; registering another overwrites it.
package actions

import "sync"

// ConfirmAction carries the deferred behavior for one pending action.
type ConfirmAction struct {
	OnConfirm func()
	OnDecline func()
}

// Handler is a per-player single-slot registry of pending actions.
// Confirm, Decline and Add on the same slot are mutually exclusive, so a
// decline can never fire after its slot was overwritten.
type Handler struct {
	mu      sync.Mutex
	actions map[string]*ConfirmAction // player id → pending action
}

// NewHandler creates an empty action Handler.
func NewHandler() *Handler {
	return &Handler{actions: make(map[string]*ConfirmAction)}
}

// Add registers a pending action for the player, overwriting any prior
// one. Last registered wins; there is no queue and no timeout.
func (h *Handler) Add(playerID string, action *ConfirmAction) {
	h.mu.Lock()
	h.actions[playerID] = action
	h.mu.Unlock()
}

// Confirm invokes the stored confirm behavior, if any, and clears the
// slot. Confirming with no pending action is a no-op.
func (h *Handler) Confirm(playerID string) bool {
	h.mu.Lock()
	action, ok := h.actions[playerID]
	if ok {
		delete(h.actions, playerID)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	if action.OnConfirm != nil {
		action.OnConfirm()
	}
	return true
}

// Decline invokes the stored decline behavior, if any, and clears the slot.
func (h *Handler) Decline(playerID string) bool {
	h.mu.Lock()
	action, ok := h.actions[playerID]
	if ok {
		delete(h.actions, playerID)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	if action.OnDecline != nil {
		action.OnDecline()
	}
	return true
}

// Remove clears the player's slot without invoking anything.
func (h *Handler) Remove(playerID string) {
	h.mu.Lock()
	delete(h.actions, playerID)
	h.mu.Unlock()
}

// Has reports whether the player has a pending action.
func (h *Handler) Has(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.actions[playerID]
	return ok
}
