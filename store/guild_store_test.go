package store

import (
	"context"
	"testing"
	"time"

	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/guild"
	"github.com/kasogane/guildhall/model"
	"github.com/kasogane/guildhall/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleSnapshot(id, name string) guild.Snapshot {
	now := time.Now().Truncate(time.Second)
	return guild.Snapshot{
		ID:      id,
		Name:    name,
		Prefix:  "KN",
		Status:  guild.StatusPrivate,
		MOTD:    "welcome",
		Home:    "world:10:64:-3",
		Tier:    1,
		Balance: 2500,
		Members: []guild.Member{
			{PlayerID: "p1", Level: guild.RoleMaster, JoinedAt: now},
			{PlayerID: "p2", Level: guild.RoleMember, JoinedAt: now},
		},
		Invited:       []string{"p9"},
		Allies:        []string{"g2"},
		PendingAllies: []string{"g3"},
		Codes: []guild.Code{
			{ID: "ABCD1234", Uses: 3, Creator: "p1", Redeemers: []string{"p2"}},
		},
		Vaults:    []string{"vault-1", ""},
		CreatedAt: now,
	}
}

func TestGuildStore_SaveLoadRoundtrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := NewGuildStore(db, zap.NewNop())
	ctx := context.Background()

	snap := sampleSnapshot("g1", "Knights")
	require.NoError(t, s.SaveGuilds(ctx, []guild.Snapshot{snap}))

	loaded, err := s.LoadGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.Name, got.Name)
	assert.Equal(t, snap.Prefix, got.Prefix)
	assert.Equal(t, snap.Status, got.Status)
	assert.Equal(t, snap.MOTD, got.MOTD)
	assert.Equal(t, snap.Home, got.Home)
	assert.Equal(t, snap.Tier, got.Tier)
	assert.Equal(t, snap.Balance, got.Balance)
	assert.Equal(t, snap.Invited, got.Invited)
	assert.Equal(t, snap.Allies, got.Allies)
	assert.Equal(t, snap.PendingAllies, got.PendingAllies)
	assert.Equal(t, snap.Vaults, got.Vaults)
	require.Len(t, got.Members, 2)
	assert.Equal(t, "p1", got.Members[0].PlayerID)
	assert.Equal(t, guild.RoleMaster, got.Members[0].Level)
	require.Len(t, got.Codes, 1)
	assert.Equal(t, snap.Codes[0], got.Codes[0])
}

func TestGuildStore_SaveIsIdempotentUpsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := NewGuildStore(db, zap.NewNop())
	ctx := context.Background()

	snap := sampleSnapshot("g1", "Knights")
	require.NoError(t, s.SaveGuilds(ctx, []guild.Snapshot{snap}))

	snap.Balance = 9999
	snap.Members = snap.Members[:1]
	require.NoError(t, s.SaveGuilds(ctx, []guild.Snapshot{snap}))

	loaded, err := s.LoadGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(9999), loaded[0].Balance)
	assert.Len(t, loaded[0].Members, 1)

	var memberRows int64
	require.NoError(t, db.Model(&model.GuildMemberRecord{}).Count(&memberRows).Error)
	assert.Equal(t, int64(1), memberRows)
}

func TestGuildStore_PrunesRemovedGuilds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := NewGuildStore(db, zap.NewNop())
	ctx := context.Background()

	a := sampleSnapshot("g1", "Knights")
	b := sampleSnapshot("g2", "Wizards")
	require.NoError(t, s.SaveGuilds(ctx, []guild.Snapshot{a, b}))

	// g2 was deleted in memory; the next save carries only g1.
	require.NoError(t, s.SaveGuilds(ctx, []guild.Snapshot{a}))
	loaded, err := s.LoadGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "g1", loaded[0].ID)

	var codeRows int64
	require.NoError(t, db.Model(&model.GuildCodeRecord{}).Where("guild_id = ?", "g2").Count(&codeRows).Error)
	assert.Equal(t, int64(0), codeRows)

	// Empty set wipes everything.
	require.NoError(t, s.SaveGuilds(ctx, nil))
	loaded, err = s.LoadGuilds(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCooldownStore_Roundtrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := NewCooldownStore(db)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	entries := []cooldowns.Entry{
		{Kind: cooldowns.KindJoin, PlayerID: "p1", Expiry: expiry},
		{Kind: cooldowns.KindHome, PlayerID: "p1", Expiry: expiry},
	}
	require.NoError(t, s.SaveCooldowns(ctx, entries))

	loaded, err := s.LoadCooldowns(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	// A later save replaces the set.
	require.NoError(t, s.SaveCooldowns(ctx, entries[:1]))
	loaded, err = s.LoadCooldowns(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, cooldowns.KindJoin, loaded[0].Kind)
}
