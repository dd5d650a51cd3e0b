package guild

import (
	"context"
	"sync"
	"testing"

	"github.com/kasogane/guildhall/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCfg() config.GuildConfig {
	return config.GuildConfig{
		BaseMembers:    10,
		MembersPerTier: 10,
		MaxTier:        3,
		TierCostBase:   1000,
		VaultsPerTier:  1,
		CodeLength:     8,
		MaxActiveCodes: 5,
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(testCfg(), DefaultRoles(), nil, zap.NewNop())
}

// memStore keeps snapshots in memory for persistence tests.
type memStore struct {
	mu    sync.Mutex
	snaps []Snapshot
	saves int
}

func (s *memStore) LoadGuilds(context.Context) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snaps...), nil
}

func (s *memStore) SaveGuilds(_ context.Context, snaps []Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append([]Snapshot(nil), snaps...)
	s.saves++
	return nil
}

func TestCreateGuild_NameUniqueness(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.CreateGuild("Knights", "p1")
	require.NoError(t, err)

	// Case-insensitive collision.
	_, err = h.CreateGuild("knights", "p2")
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestCreateGuild_OneGuildPerPlayer(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.CreateGuild("Knights", "p1")
	require.NoError(t, err)

	_, err = h.CreateGuild("Wizards", "p1")
	assert.ErrorIs(t, err, ErrAlreadyInGuild)
}

func TestAcceptInvite_FullGuildRejectsEleventh(t *testing.T) {
	h := newTestHandler(t)
	g, err := h.CreateGuild("Knights", "p0")
	require.NoError(t, err)

	for i := 1; i < 10; i++ {
		player := string(rune('a' + i))
		g.AddInvite(player)
		require.NoError(t, h.AcceptInvite(g, player))
	}
	require.Equal(t, 10, g.MemberCount())

	g.AddInvite("p11")
	assert.ErrorIs(t, h.AcceptInvite(g, "p11"), ErrGuildFull)
	assert.Equal(t, 10, g.MemberCount())
}

func TestAcceptInvite_PrivateRequiresInvite(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")

	assert.ErrorIs(t, h.AcceptInvite(g, "p2"), ErrNotInvited)

	g.UpdateStatus(StatusPublic)
	require.NoError(t, h.AcceptInvite(g, "p2"))
	m := g.GetMember("p2")
	require.NotNil(t, m)
	assert.Equal(t, RoleMember, m.Level)
}

func TestAcceptInvite_MemberOfOtherGuild(t *testing.T) {
	h := newTestHandler(t)
	a, _ := h.CreateGuild("Knights", "p1")
	_, err := h.CreateGuild("Wizards", "p2")
	require.NoError(t, err)

	a.AddInvite("p2")
	assert.ErrorIs(t, h.AcceptInvite(a, "p2"), ErrAlreadyInGuild)
}

func TestLeave_MasterLeavingRemovesGuild(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))

	removed, err := h.Leave(g, "p1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, h.GuildByName("Knights"))
	assert.Nil(t, h.GuildByPlayer("p1"))
	// Orphaned members are free to join elsewhere.
	assert.Nil(t, h.GuildByPlayer("p2"))
}

func TestLeave_RegularMember(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))

	removed, err := h.Leave(g, "p2")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NotNil(t, h.GuildByName("Knights"))
	assert.Nil(t, h.GuildByPlayer("p2"))
}

func TestKick_MasterIsProtected(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))

	assert.ErrorIs(t, h.Kick(g, "p1"), ErrKickMaster)
	require.NoError(t, h.Kick(g, "p2"))
	assert.Nil(t, h.GuildByPlayer("p2"))
	assert.ErrorIs(t, h.Kick(g, "p2"), ErrMemberNotFound)
}

func TestPromoteDemote_Bounds(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))

	// Member → Veteran → Officer.
	require.NoError(t, h.Promote(g, "p2"))
	require.NoError(t, h.Promote(g, "p2"))
	assert.Equal(t, RoleOfficer, g.GetMember("p2").Level)

	// Officer → Master is not a promotion; it needs Transfer.
	assert.ErrorIs(t, h.Promote(g, "p2"), ErrNoPermission)

	// Demote back down; demoting past the lowest level is a no-op.
	require.NoError(t, h.Demote(g, "p2"))
	require.NoError(t, h.Demote(g, "p2"))
	assert.Equal(t, RoleMember, g.GetMember("p2").Level)
	require.NoError(t, h.Demote(g, "p2"))
	assert.Equal(t, RoleMember, g.GetMember("p2").Level)

	// The master cannot be demoted.
	assert.ErrorIs(t, h.Demote(g, "p1"), ErrMasterOnly)
}

func TestTransfer_ExchangesAdjacentLevels(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))

	// Target must hold the level directly below the master.
	assert.ErrorIs(t, h.Transfer(g, "p1", "p2"), ErrTransferTarget)

	require.NoError(t, h.Promote(g, "p2"))
	require.NoError(t, h.Promote(g, "p2"))
	require.Equal(t, RoleOfficer, g.GetMember("p2").Level)

	require.NoError(t, h.Transfer(g, "p1", "p2"))
	assert.Equal(t, RoleMaster, g.GetMember("p2").Level)
	assert.Equal(t, RoleVeteran, g.GetMember("p1").Level)
	assert.Equal(t, "p2", g.Master().PlayerID)

	// Old master no longer qualifies to transfer.
	assert.ErrorIs(t, h.Transfer(g, "p1", "p2"), ErrMasterOnly)
}

func TestExactlyOneMaster(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))
	require.NoError(t, h.Promote(g, "p2"))
	require.NoError(t, h.Promote(g, "p2"))
	require.NoError(t, h.Transfer(g, "p1", "p2"))

	masters := 0
	for _, m := range g.Members() {
		if m.Level == RoleMaster {
			masters++
		}
	}
	assert.Equal(t, 1, masters)
}

func TestRename_KeepsIdentityStable(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	_, err := h.CreateGuild("Wizards", "p2")
	require.NoError(t, err)

	assert.ErrorIs(t, h.Rename(g, "wizards"), ErrNameTaken)
	// Renaming to a different casing of its own name is allowed.
	require.NoError(t, h.Rename(g, "KNIGHTS"))
	require.NoError(t, h.Rename(g, "Paladins"))

	assert.Nil(t, h.GuildByName("Knights"))
	found := h.GuildByName("paladins")
	require.NotNil(t, found)
	assert.Equal(t, g.ID(), found.ID())
	// Membership is keyed by id, unaffected by the rename.
	assert.Equal(t, g.ID(), h.GuildByPlayer("p1").ID())
}

func TestJoinByCode(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")
	require.NoError(t, g.AddCode("JOINME", 2, "p1", 5))

	joined, err := h.JoinByCode("p2", "JOINME")
	require.NoError(t, err)
	assert.Equal(t, g.ID(), joined.ID())
	assert.Equal(t, g.ID(), h.GuildByPlayer("p2").ID())

	// Codes work even while the guild is private.
	assert.True(t, g.IsPrivate())

	_, err = h.JoinByCode("p2", "JOINME")
	assert.ErrorIs(t, err, ErrAlreadyInGuild)

	// Second redemption exhausts the code.
	_, err = h.JoinByCode("p3", "JOINME")
	require.NoError(t, err)
	_, err = h.JoinByCode("p4", "JOINME")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestAllySymmetry(t *testing.T) {
	h := newTestHandler(t)
	a, _ := h.CreateGuild("Knights", "p1")
	b, _ := h.CreateGuild("Wizards", "p2")

	assert.ErrorIs(t, h.RequestAlly(a, a), ErrAllySelf)
	assert.ErrorIs(t, h.AcceptAlly(b, a), ErrNoPendingAlly)

	require.NoError(t, h.RequestAlly(a, b))
	require.True(t, b.HasPendingAlly(a.ID()))

	require.NoError(t, h.AcceptAlly(b, a))
	assert.True(t, a.IsAllied(b.ID()))
	assert.True(t, b.IsAllied(a.ID()))
	assert.False(t, b.HasPendingAlly(a.ID()))

	// Requesting an existing ally is a quiet no-op.
	require.NoError(t, h.RequestAlly(a, b))
	assert.False(t, b.HasPendingAlly(a.ID()))

	require.NoError(t, h.RemoveAlly(a, b))
	assert.False(t, a.IsAllied(b.ID()))
	assert.False(t, b.IsAllied(a.ID()))
	assert.ErrorIs(t, h.RemoveAlly(a, b), ErrNotAllied)
}

func TestRemoveGuild_StripsDanglingAllyRefs(t *testing.T) {
	h := newTestHandler(t)
	a, _ := h.CreateGuild("Knights", "p1")
	b, _ := h.CreateGuild("Wizards", "p2")
	require.NoError(t, h.RequestAlly(a, b))
	require.NoError(t, h.AcceptAlly(b, a))

	h.RemoveGuild(a)
	assert.False(t, b.IsAllied(a.ID()))
	assert.Empty(t, b.Allies())
}

func TestUpgrade(t *testing.T) {
	h := newTestHandler(t)
	g, _ := h.CreateGuild("Knights", "p1")

	assert.ErrorIs(t, h.Upgrade(g), ErrInsufficientFunds)

	g.Deposit(1000)
	require.NoError(t, h.Upgrade(g))
	assert.Equal(t, 1, g.Tier())
	assert.Equal(t, int64(0), g.Balance())
	assert.Equal(t, 20, h.MaxMembers(g))
	assert.Equal(t, 2, h.MaxVaults(g))

	g.Deposit(10000)
	require.NoError(t, h.Upgrade(g))
	require.NoError(t, h.Upgrade(g))
	assert.Equal(t, 3, g.Tier())
	assert.ErrorIs(t, h.Upgrade(g), ErrMaxTier)
}

func TestSaveLoad_RebuildsIndexes(t *testing.T) {
	ms := &memStore{}
	h := NewHandler(testCfg(), DefaultRoles(), ms, zap.NewNop())

	g, err := h.CreateGuild("Knights", "p1")
	require.NoError(t, err)
	g.AddInvite("p2")
	require.NoError(t, h.AcceptInvite(g, "p2"))
	b, err := h.CreateGuild("Wizards", "p3")
	require.NoError(t, err)
	require.NoError(t, h.RequestAlly(g, b))
	require.NoError(t, h.AcceptAlly(b, g))
	require.NoError(t, h.SaveData(context.Background()))

	h2 := NewHandler(testCfg(), DefaultRoles(), ms, zap.NewNop())
	require.NoError(t, h2.LoadData(context.Background()))

	assert.Equal(t, 2, h2.Count())
	g2 := h2.GuildByName("knights")
	require.NotNil(t, g2)
	assert.Equal(t, g.ID(), g2.ID())
	assert.Equal(t, 2, g2.MemberCount())
	assert.Equal(t, g2.ID(), h2.GuildByPlayer("p2").ID())
	b2 := h2.GuildByID(b.ID())
	require.NotNil(t, b2)
	assert.True(t, g2.IsAllied(b2.ID()))
	assert.True(t, b2.IsAllied(g2.ID()))
}
