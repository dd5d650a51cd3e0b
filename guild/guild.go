package guild

import (
	"sort"
	"sync"
	"time"
)

// Status controls whether players can join without an invite.
type Status string

const (
	StatusPublic  Status = "Public"
	StatusPrivate Status = "Private"
)

// Member is one player's membership in a guild.
// It is owned exclusively by its Guild and destroyed on leave/kick.
type Member struct {
	PlayerID string
	Level    int
	JoinedAt time.Time
}

// Code is a bounded-use invite token owned by one guild.
type Code struct {
	ID        string
	Uses      int
	Creator   string
	Redeemers []string
}

func (c *Code) redeemedBy(playerID string) bool {
	for _, r := range c.Redeemers {
		if r == playerID {
			return true
		}
	}
	return false
}

// Guild holds one social group's full mutable state. All mutation goes
// through its methods under g.mu; the Handler composes these primitives
// and enforces the cross-guild invariants a single guild cannot see.
type Guild struct {
	mu sync.RWMutex

	id      string
	name    string
	prefix  string
	status  Status
	motd    string
	home    string
	tier    int
	balance int64

	members       []*Member
	invited       map[string]struct{}
	allies        map[string]struct{}
	pendingAllies map[string]struct{}
	codes         map[string]*Code
	vaults        []string

	createdAt time.Time
}

// New creates a guild with the founder as sole member at the master level.
func New(id, name, founderID string) *Guild {
	now := time.Now()
	return &Guild{
		id:            id,
		name:          name,
		status:        StatusPrivate,
		members:       []*Member{{PlayerID: founderID, Level: RoleMaster, JoinedAt: now}},
		invited:       make(map[string]struct{}),
		allies:        make(map[string]struct{}),
		pendingAllies: make(map[string]struct{}),
		codes:         make(map[string]*Code),
		createdAt:     now,
	}
}

// ---- identity & settings ----

// ID returns the immutable guild id.
func (g *Guild) ID() string { return g.id }

func (g *Guild) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// setName is called by the Handler only, which holds the name index.
func (g *Guild) setName(name string) {
	g.mu.Lock()
	g.name = name
	g.mu.Unlock()
}

func (g *Guild) Prefix() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.prefix
}

// UpdatePrefix assumes the caller already checked the role capability.
func (g *Guild) UpdatePrefix(prefix string) {
	g.mu.Lock()
	g.prefix = prefix
	g.mu.Unlock()
}

func (g *Guild) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

func (g *Guild) UpdateStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

func (g *Guild) IsPrivate() bool { return g.Status() == StatusPrivate }

// MOTD returns the message of the day; ok is false when none is set.
func (g *Guild) MOTD() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.motd, g.motd != ""
}

func (g *Guild) UpdateMOTD(motd string) {
	g.mu.Lock()
	g.motd = motd
	g.mu.Unlock()
}

// Home returns the serialized home location; ok is false when none is set.
func (g *Guild) Home() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.home, g.home != ""
}

func (g *Guild) UpdateHome(home string) {
	g.mu.Lock()
	g.home = home
	g.mu.Unlock()
}

func (g *Guild) Tier() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tier
}

func (g *Guild) UpdateTier(tier int) {
	g.mu.Lock()
	g.tier = tier
	g.mu.Unlock()
}

func (g *Guild) CreatedAt() time.Time { return g.createdAt }

// ---- balance ----

func (g *Guild) Balance() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balance
}

func (g *Guild) Deposit(amount int64) {
	g.mu.Lock()
	g.balance += amount
	g.mu.Unlock()
}

// TryWithdraw subtracts amount if the balance covers it.
func (g *Guild) TryWithdraw(amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balance < amount {
		return ErrInsufficientFunds
	}
	g.balance -= amount
	return nil
}

// ---- members ----

// AddMember appends a member at the given level. cap is the tier-derived
// member cap; the Handler checks it beforehand but the guild re-validates.
func (g *Guild) AddMember(playerID string, level int, cap int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.members) >= cap {
		return ErrGuildFull
	}
	for _, m := range g.members {
		if m.PlayerID == playerID {
			return ErrAlreadyInGuild
		}
	}
	g.members = append(g.members, &Member{PlayerID: playerID, Level: level, JoinedAt: time.Now()})
	delete(g.invited, playerID)
	return nil
}

// RemoveMember removes the member. It does not pick a successor when the
// master leaves; the Handler prevents master removal outside guild deletion.
func (g *Guild) RemoveMember(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m.PlayerID == playerID {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

// GetMember returns the member for playerID, or nil.
func (g *Guild) GetMember(playerID string) *Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, m := range g.members {
		if m.PlayerID == playerID {
			return m
		}
	}
	return nil
}

// Master returns the member at the master level, or nil during the
// atomic delete transition.
func (g *Guild) Master() *Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, m := range g.members {
		if m.Level == RoleMaster {
			return m
		}
	}
	return nil
}

// Members returns a copy of the member list in join order.
func (g *Guild) Members() []Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Member, len(g.members))
	for i, m := range g.members {
		out[i] = *m
	}
	return out
}

func (g *Guild) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// setLevel adjusts a member's role level. Handler-only; the handler
// validates the target level against the role table.
func (g *Guild) setLevel(playerID string, level int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m.PlayerID == playerID {
			m.Level = level
			return nil
		}
	}
	return ErrMemberNotFound
}

// ---- invites ----

func (g *Guild) AddInvite(playerID string) {
	g.mu.Lock()
	g.invited[playerID] = struct{}{}
	g.mu.Unlock()
}

func (g *Guild) RemoveInvite(playerID string) {
	g.mu.Lock()
	delete(g.invited, playerID)
	g.mu.Unlock()
}

func (g *Guild) CheckIfInvited(playerID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.invited[playerID]
	return ok
}

// Invited returns the invited player ids, sorted for stable output.
func (g *Guild) Invited() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.invited)
}

// ---- allies ----
// Handler-only: the symmetry invariant spans two guilds, so the Handler
// mutates both sides inside its own critical section.

func (g *Guild) addAlly(id string)    { g.mu.Lock(); g.allies[id] = struct{}{}; g.mu.Unlock() }
func (g *Guild) removeAlly(id string) { g.mu.Lock(); delete(g.allies, id); g.mu.Unlock() }

func (g *Guild) addPendingAlly(id string) {
	g.mu.Lock()
	g.pendingAllies[id] = struct{}{}
	g.mu.Unlock()
}

func (g *Guild) removePendingAlly(id string) {
	g.mu.Lock()
	delete(g.pendingAllies, id)
	g.mu.Unlock()
}

// IsAllied reports whether the guild with the given id is an ally.
func (g *Guild) IsAllied(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.allies[id]
	return ok
}

// HasPendingAlly reports whether an inbound ally request from id exists.
func (g *Guild) HasPendingAlly(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.pendingAllies[id]
	return ok
}

// Allies returns ally guild ids, sorted for stable output.
func (g *Guild) Allies() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.allies)
}

// PendingAllies returns inbound ally request guild ids, sorted.
func (g *Guild) PendingAllies() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.pendingAllies)
}

// ---- codes ----

// AddCode stores a new invite code. maxActive is the configured cap on
// simultaneously active codes.
func (g *Guild) AddCode(id string, uses int, creatorID string, maxActive int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) >= maxActive {
		return ErrMaxCodes
	}
	if _, ok := g.codes[id]; ok {
		return ErrCodeExists
	}
	g.codes[id] = &Code{ID: id, Uses: uses, Creator: creatorID}
	return nil
}

// RedeemCode decrements the code's uses and records the redeemer.
// The code is removed entirely once its uses reach zero.
func (g *Guild) RedeemCode(id, playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	code, ok := g.codes[id]
	if !ok {
		return ErrCodeNotFound
	}
	if code.redeemedBy(playerID) {
		return ErrCodeAlreadyRedeemed
	}
	if code.Uses <= 0 {
		return ErrCodeExhausted
	}
	code.Uses--
	code.Redeemers = append(code.Redeemers, playerID)
	if code.Uses == 0 {
		delete(g.codes, id)
	}
	return nil
}

// HasCode reports whether the guild owns an active code with the given id.
func (g *Guild) HasCode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.codes[id]
	return ok
}

// Codes returns copies of the active codes, sorted by id.
func (g *Guild) Codes() []Code {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Code, 0, len(g.codes))
	for _, c := range g.codes {
		cp := *c
		cp.Redeemers = append([]string(nil), c.Redeemers...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- vaults ----

// Vault returns the serialized container at the 1-based index.
func (g *Guild) Vault(idx int) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 1 || idx > len(g.vaults) {
		return "", ErrNoVault
	}
	return g.vaults[idx-1], nil
}

// SetVault stores the serialized container at the 1-based index, growing
// the vault list up to maxVaults as needed.
func (g *Guild) SetVault(idx int, data string, maxVaults int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx < 1 || idx > maxVaults {
		return ErrNoVault
	}
	for len(g.vaults) < idx {
		g.vaults = append(g.vaults, "")
	}
	g.vaults[idx-1] = data
	return nil
}

func (g *Guild) VaultCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vaults)
}

// ---- snapshots ----

// Snapshot is a deep copy of a guild's state, detached from its lock.
// The Handler hands snapshots to the persistence collaborator so that
// long-running I/O never holds an entity lock.
type Snapshot struct {
	ID            string
	Name          string
	Prefix        string
	Status        Status
	MOTD          string
	Home          string
	Tier          int
	Balance       int64
	Members       []Member
	Invited       []string
	Allies        []string
	PendingAllies []string
	Codes         []Code
	Vaults        []string
	CreatedAt     time.Time
}

// TakeSnapshot copies the guild state under its read lock.
func (g *Guild) TakeSnapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	snap := Snapshot{
		ID:            g.id,
		Name:          g.name,
		Prefix:        g.prefix,
		Status:        g.status,
		MOTD:          g.motd,
		Home:          g.home,
		Tier:          g.tier,
		Balance:       g.balance,
		Invited:       sortedKeys(g.invited),
		Allies:        sortedKeys(g.allies),
		PendingAllies: sortedKeys(g.pendingAllies),
		Vaults:        append([]string(nil), g.vaults...),
		CreatedAt:     g.createdAt,
	}
	snap.Members = make([]Member, len(g.members))
	for i, m := range g.members {
		snap.Members[i] = *m
	}
	for _, c := range g.codes {
		cp := *c
		cp.Redeemers = append([]string(nil), c.Redeemers...)
		snap.Codes = append(snap.Codes, cp)
	}
	sort.Slice(snap.Codes, func(i, j int) bool { return snap.Codes[i].ID < snap.Codes[j].ID })
	return snap
}

// Restore materializes a guild from a snapshot (load path).
func Restore(snap Snapshot) *Guild {
	g := &Guild{
		id:            snap.ID,
		name:          snap.Name,
		prefix:        snap.Prefix,
		status:        snap.Status,
		motd:          snap.MOTD,
		home:          snap.Home,
		tier:          snap.Tier,
		balance:       snap.Balance,
		invited:       make(map[string]struct{}, len(snap.Invited)),
		allies:        make(map[string]struct{}, len(snap.Allies)),
		pendingAllies: make(map[string]struct{}, len(snap.PendingAllies)),
		codes:         make(map[string]*Code, len(snap.Codes)),
		vaults:        append([]string(nil), snap.Vaults...),
		createdAt:     snap.CreatedAt,
	}
	if g.status == "" {
		g.status = StatusPrivate
	}
	g.members = make([]*Member, len(snap.Members))
	for i := range snap.Members {
		m := snap.Members[i]
		g.members[i] = &m
	}
	for i := range snap.Codes {
		c := snap.Codes[i]
		c.Redeemers = append([]string(nil), snap.Codes[i].Redeemers...)
		g.codes[c.ID] = &c
	}
	for _, p := range snap.Invited {
		g.invited[p] = struct{}{}
	}
	for _, a := range snap.Allies {
		g.allies[a] = struct{}{}
	}
	for _, a := range snap.PendingAllies {
		g.pendingAllies[a] = struct{}{}
	}
	return g
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
