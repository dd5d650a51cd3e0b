package guild

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasogane/guildhall/config"
	"go.uber.org/zap"
)

// Store persists guild snapshots.
// LoadGuilds must return fully materialized snapshots; SaveGuilds must be
// idempotent and safe to call repeatedly with overlapping guild sets.
type Store interface {
	LoadGuilds(ctx context.Context) ([]Snapshot, error)
	SaveGuilds(ctx context.Context, snaps []Snapshot) error
}

// Handler is the single source of truth for all guilds. It owns the
// authoritative collection, indexes it by name and by member, and enforces
// the cross-guild invariants (capacity, name uniqueness, ally reciprocity,
// one guild per player) that no individual guild can enforce alone.
type Handler struct {
	mu       sync.RWMutex
	guilds   map[string]*Guild // guild id → guild
	byName   map[string]string // lowercased name → guild id
	byPlayer map[string]string // player id → guild id

	roles  *RoleTable
	store  Store
	cfg    config.GuildConfig
	logger *zap.Logger

	saveMu sync.Mutex // serializes overlapping async saves
}

// NewHandler creates an empty guild Handler.
func NewHandler(cfg config.GuildConfig, roles *RoleTable, store Store, logger *zap.Logger) *Handler {
	return &Handler{
		guilds:   make(map[string]*Guild),
		byName:   make(map[string]string),
		byPlayer: make(map[string]string),
		roles:    roles,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Roles returns the process-wide role table.
func (h *Handler) Roles() *RoleTable { return h.roles }

// ---- derived limits ----

// MaxMembers returns the tier-derived member cap for a guild.
func (h *Handler) MaxMembers(g *Guild) int {
	return h.cfg.BaseMembers + h.cfg.MembersPerTier*g.Tier()
}

// MaxVaults returns how many vaults the guild's tier unlocks.
func (h *Handler) MaxVaults(g *Guild) int {
	return h.cfg.VaultsPerTier * (g.Tier() + 1)
}

// TierCost returns the cost of upgrading to the next tier.
func (h *Handler) TierCost(g *Guild) int64 {
	return h.cfg.TierCostBase * int64(g.Tier()+1)
}

// CheckIfFull reports whether the guild is at its tier-derived cap.
func (h *Handler) CheckIfFull(g *Guild) bool {
	return g.MemberCount() >= h.MaxMembers(g)
}

// ---- lifecycle ----

// CreateGuild registers a new guild with founder as sole member at the
// master level. Fails if the name is taken case-insensitively or the
// founder already belongs to a guild.
func (h *Handler) CreateGuild(name, founderID string) (*Guild, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byPlayer[founderID]; ok {
		return nil, ErrAlreadyInGuild
	}
	key := strings.ToLower(name)
	if _, ok := h.byName[key]; ok {
		return nil, ErrNameTaken
	}

	g := New(uuid.NewString(), name, founderID)
	h.guilds[g.ID()] = g
	h.byName[key] = g.ID()
	h.byPlayer[founderID] = g.ID()

	h.logger.Info("guild created",
		zap.String("guild_id", g.ID()),
		zap.String("name", name),
		zap.String("founder", founderID))
	h.saveAsync()
	return g, nil
}

// RemoveGuild removes the guild from all indexes and orphans its members.
func (h *Handler) RemoveGuild(g *Guild) {
	h.mu.Lock()
	if _, ok := h.guilds[g.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.guilds, g.ID())
	delete(h.byName, strings.ToLower(g.Name()))
	for _, m := range g.Members() {
		delete(h.byPlayer, m.PlayerID)
	}
	// Drop dangling ally references so the symmetry invariant survives.
	for _, other := range h.guilds {
		other.removeAlly(g.ID())
		other.removePendingAlly(g.ID())
	}
	h.mu.Unlock()

	h.logger.Info("guild removed",
		zap.String("guild_id", g.ID()),
		zap.String("name", g.Name()))
	h.saveAsync()
}

// Rename changes the guild's name after re-checking uniqueness.
// All internal references stay keyed by the stable guild id.
func (h *Handler) Rename(g *Guild, newName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := strings.ToLower(newName)
	if existing, ok := h.byName[key]; ok && existing != g.ID() {
		return ErrNameTaken
	}
	delete(h.byName, strings.ToLower(g.Name()))
	h.byName[key] = g.ID()
	g.setName(newName)
	return nil
}

// ---- lookups (absent → nil, never an error) ----

// GuildByPlayer returns the guild the player belongs to, or nil.
func (h *Handler) GuildByPlayer(playerID string) *Guild {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byPlayer[playerID]
	if !ok {
		return nil
	}
	return h.guilds[id]
}

// GuildByName returns the guild with the given case-insensitive name, or nil.
func (h *Handler) GuildByName(name string) *Guild {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byName[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return h.guilds[id]
}

// GuildByID returns the guild with the given id, or nil.
func (h *Handler) GuildByID(id string) *Guild {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.guilds[id]
}

// GuildByCode returns the guild owning an active code with the given id,
// or nil. Used for redemption and for creation-time collision checks.
func (h *Handler) GuildByCode(code string) *Guild {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, g := range h.guilds {
		if g.HasCode(code) {
			return g
		}
	}
	return nil
}

// Guilds returns all guilds sorted by name.
func (h *Handler) Guilds() []*Guild {
	h.mu.RLock()
	out := make([]*Guild, 0, len(h.guilds))
	for _, g := range h.guilds {
		out = append(out, g)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name()) < strings.ToLower(out[j].Name())
	})
	return out
}

// Count returns the number of registered guilds.
func (h *Handler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.guilds)
}

// RoleOf returns the acting player's role within the guild.
func (h *Handler) RoleOf(g *Guild, playerID string) (Role, error) {
	m := g.GetMember(playerID)
	if m == nil {
		return Role{}, ErrNotInGuild
	}
	role, ok := h.roles.RoleByLevel(m.Level)
	if !ok {
		return Role{}, ErrRoleOutOfRange
	}
	return role, nil
}

// ---- membership ----

// Invite adds the player to the guild's invited set. Invites are
// guild-scoped and independent; a player may hold several.
func (h *Handler) Invite(g *Guild, playerID string) error {
	if g.GetMember(playerID) != nil {
		return ErrAlreadyInGuild
	}
	g.AddInvite(playerID)
	return nil
}

// AcceptInvite moves the player into membership at the lowest role level.
func (h *Handler) AcceptInvite(g *Guild, playerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byPlayer[playerID]; ok {
		return ErrAlreadyInGuild
	}
	if g.IsPrivate() && !g.CheckIfInvited(playerID) {
		return ErrNotInvited
	}
	if err := g.AddMember(playerID, h.roles.LowestLevel(), h.MaxMembers(g)); err != nil {
		return err
	}
	h.byPlayer[playerID] = g.ID()
	return nil
}

// DeclineInvite removes the player from the guild's invited set.
func (h *Handler) DeclineInvite(g *Guild, playerID string) error {
	if !g.CheckIfInvited(playerID) {
		return ErrNotInvited
	}
	g.RemoveInvite(playerID)
	return nil
}

// JoinByCode redeems an active invite code and joins the owning guild.
// The redemption counts against the code even for public guilds.
func (h *Handler) JoinByCode(playerID, code string) (*Guild, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byPlayer[playerID]; ok {
		return nil, ErrAlreadyInGuild
	}
	var g *Guild
	for _, cand := range h.guilds {
		if cand.HasCode(code) {
			g = cand
			break
		}
	}
	if g == nil {
		return nil, ErrCodeNotFound
	}
	if g.MemberCount() >= h.MaxMembers(g) {
		return nil, ErrGuildFull
	}
	if err := g.RedeemCode(code, playerID); err != nil {
		return nil, err
	}
	if err := g.AddMember(playerID, h.roles.LowestLevel(), h.MaxMembers(g)); err != nil {
		return nil, err
	}
	h.byPlayer[playerID] = g.ID()
	return g, nil
}

// Leave removes the player from their guild. A leaving master deletes the
// guild outright: master-less guilds are not a valid state, and succession
// happens only through the explicit transfer operation.
func (h *Handler) Leave(g *Guild, playerID string) (removedGuild bool, err error) {
	m := g.GetMember(playerID)
	if m == nil {
		return false, ErrNotInGuild
	}
	if m.Level == RoleMaster {
		h.RemoveGuild(g)
		return true, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := g.RemoveMember(playerID); err != nil {
		return false, err
	}
	delete(h.byPlayer, playerID)
	return false, nil
}

// Kick removes a non-master member. Role capability is the command
// layer's check; the master-cannot-be-kicked rule is structural and
// enforced here.
func (h *Handler) Kick(g *Guild, targetID string) error {
	m := g.GetMember(targetID)
	if m == nil {
		return ErrMemberNotFound
	}
	if m.Level == RoleMaster {
		return ErrKickMaster
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := g.RemoveMember(targetID); err != nil {
		return err
	}
	delete(h.byPlayer, targetID)
	return nil
}

// ---- hierarchy ----

// Promote raises the target one level of authority. Promoting into the
// master level is not possible; that requires Transfer.
func (h *Handler) Promote(g *Guild, targetID string) error {
	m := g.GetMember(targetID)
	if m == nil {
		return ErrMemberNotFound
	}
	newLevel := m.Level - 1
	if newLevel <= RoleMaster {
		return ErrNoPermission
	}
	if _, ok := h.roles.RoleByLevel(newLevel); !ok {
		return ErrRoleOutOfRange
	}
	return g.setLevel(targetID, newLevel)
}

// Demote lowers the target one level of authority. Demoting the lowest
// role further is a no-op boundary.
func (h *Handler) Demote(g *Guild, targetID string) error {
	m := g.GetMember(targetID)
	if m == nil {
		return ErrMemberNotFound
	}
	if m.Level == RoleMaster {
		return ErrMasterOnly
	}
	newLevel := m.Level + 1
	if _, ok := h.roles.RoleByLevel(newLevel); !ok {
		return nil
	}
	return g.setLevel(targetID, newLevel)
}

// Transfer exchanges leadership between the master and a member at the
// level directly below. The new master takes the master level; the old
// master takes the level below the target's former one. This is an
// exchange between two members, not a shift of the whole hierarchy.
func (h *Handler) Transfer(g *Guild, oldMasterID, newMasterID string) error {
	oldM := g.GetMember(oldMasterID)
	newM := g.GetMember(newMasterID)
	if oldM == nil || newM == nil {
		return ErrMemberNotFound
	}
	if oldM.Level != RoleMaster {
		return ErrMasterOnly
	}
	if newM.Level != RoleMaster+1 {
		return ErrTransferTarget
	}
	promotedLevel := newM.Level - 1
	demotedLevel := newM.Level + 1
	if _, ok := h.roles.RoleByLevel(demotedLevel); !ok {
		return ErrRoleOutOfRange
	}
	if err := g.setLevel(newMasterID, promotedLevel); err != nil {
		return err
	}
	return g.setLevel(oldMasterID, demotedLevel)
}

// ---- alliances ----
// The symmetry invariant (b ∈ a.allies ⇔ a ∈ b.allies) is maintained by
// mutating both guilds inside the handler's critical section.

// RequestAlly records a pending ally request from a on b.
func (h *Handler) RequestAlly(a, b *Guild) error {
	if a.ID() == b.ID() {
		return ErrAllySelf
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if a.IsAllied(b.ID()) {
		return nil // already allied, nothing to request
	}
	b.addPendingAlly(a.ID())
	return nil
}

// AcceptAlly has b accept a's pending request, allying both guilds.
func (h *Handler) AcceptAlly(b, a *Guild) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !b.HasPendingAlly(a.ID()) {
		return ErrNoPendingAlly
	}
	b.removePendingAlly(a.ID())
	a.addAlly(b.ID())
	b.addAlly(a.ID())
	return nil
}

// DeclineAlly drops a's pending request on b.
func (h *Handler) DeclineAlly(b, a *Guild) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !b.HasPendingAlly(a.ID()) {
		return ErrNoPendingAlly
	}
	b.removePendingAlly(a.ID())
	return nil
}

// RemoveAlly dissolves the alliance from both sides.
func (h *Handler) RemoveAlly(a, b *Guild) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !a.IsAllied(b.ID()) {
		return ErrNotAllied
	}
	a.removeAlly(b.ID())
	b.removeAlly(a.ID())
	return nil
}

// ---- upgrades ----

// Upgrade raises the guild's tier after validating the tier ceiling, the
// optional member-count gate, and the balance. The cost is withdrawn.
func (h *Handler) Upgrade(g *Guild) error {
	tier := g.Tier()
	if tier >= h.cfg.MaxTier {
		return ErrMaxTier
	}
	if h.cfg.MembersToRank != 0 && g.MemberCount() < h.cfg.MembersToRank {
		return ErrNotEnoughMembers
	}
	if err := g.TryWithdraw(h.TierCost(g)); err != nil {
		return err
	}
	g.UpdateTier(tier + 1)
	h.logger.Info("guild upgraded",
		zap.String("guild_id", g.ID()),
		zap.Int("tier", tier+1))
	return nil
}

// ---- persistence ----

// Snapshots copies every guild's state for the persistence collaborator.
// Entity locks are taken per guild; no lock is held during store I/O.
func (h *Handler) Snapshots() []Snapshot {
	guilds := h.Guilds()
	snaps := make([]Snapshot, len(guilds))
	for i, g := range guilds {
		snaps[i] = g.TakeSnapshot()
	}
	return snaps
}

// SaveData flushes all guilds to the store. Failures are reported to the
// caller; the scheduled cycle logs and retries them.
func (h *Handler) SaveData(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	return h.store.SaveGuilds(ctx, h.Snapshots())
}

// LoadData fully repopulates the indexes from the store, replacing any
// in-memory state. Used only at startup; a load failure is fatal to
// activation so the system never runs with partially loaded state.
func (h *Handler) LoadData(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	snaps, err := h.store.LoadGuilds(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.guilds = make(map[string]*Guild, len(snaps))
	h.byName = make(map[string]string, len(snaps))
	h.byPlayer = make(map[string]string)
	for _, snap := range snaps {
		g := Restore(snap)
		h.guilds[g.ID()] = g
		h.byName[strings.ToLower(g.Name())] = g.ID()
		for _, m := range snap.Members {
			h.byPlayer[m.PlayerID] = g.ID()
		}
	}
	h.logger.Info("guild data loaded", zap.Int("guilds", len(snaps)))
	return nil
}

// saveAsync persists registry-shape changes (create/remove) off the hot
// path. Overlapping calls are serialized; errors are logged and left for
// the next scheduled cycle to retry.
func (h *Handler) saveAsync() {
	if h.store == nil {
		return
	}
	go func() {
		h.saveMu.Lock()
		defer h.saveMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.store.SaveGuilds(ctx, h.Snapshots()); err != nil {
			h.logger.Error("guild save failed", zap.Error(err))
		}
	}()
}
