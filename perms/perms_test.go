package perms

import (
	"context"
	"errors"
	"testing"

	"github.com/kasogane/guildhall/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordSyncer captures the transitions it is asked to apply.
type recordSyncer struct {
	added   []string
	removed []string
	fail    bool
}

func (s *recordSyncer) AddPerms(_ context.Context, playerID, guildID string, _ int) error {
	if s.fail {
		return errors.New("backend down")
	}
	s.added = append(s.added, playerID+"@"+guildID)
	return nil
}

func (s *recordSyncer) RemovePerms(_ context.Context, playerID, guildID string) error {
	if s.fail {
		return errors.New("backend down")
	}
	s.removed = append(s.removed, playerID+"@"+guildID)
	return nil
}

func TestRegisterListeners_AppliesAndRevokes(t *testing.T) {
	center := events.NewCenter()
	syncer := &recordSyncer{}
	RegisterListeners(center, syncer, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, center.Dispatch(ctx, events.Event{Name: events.GuildCreate, GuildID: "g1", PlayerID: "p1"}))
	require.NoError(t, center.Dispatch(ctx, events.Event{Name: events.GuildJoin, GuildID: "g1", PlayerID: "p2"}))
	require.NoError(t, center.Dispatch(ctx, events.Event{Name: events.GuildLeave, GuildID: "g1", PlayerID: "p2"}))
	require.NoError(t, center.Dispatch(ctx, events.Event{Name: events.GuildKick, GuildID: "g1", PlayerID: "p3"}))

	assert.Equal(t, []string{"p1@g1", "p2@g1"}, syncer.added)
	assert.Equal(t, []string{"p2@g1", "p3@g1"}, syncer.removed)
}

func TestRegisterListeners_FailureNeverVetoes(t *testing.T) {
	center := events.NewCenter()
	RegisterListeners(center, &recordSyncer{fail: true}, zap.NewNop())

	err := center.Dispatch(context.Background(), events.Event{Name: events.GuildJoin, GuildID: "g1", PlayerID: "p1"})
	assert.NoError(t, err)
}
