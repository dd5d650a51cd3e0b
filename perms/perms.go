// Package perms synchronizes guild membership with an external
// permission system. The default implementation only logs; deployments
// with a real permission backend provide their own Syncer.
package perms

import (
	"context"

	"github.com/kasogane/guildhall/events"
	"go.uber.org/zap"
)

// Syncer applies and revokes a player's guild-derived permissions.
type Syncer interface {
	AddPerms(ctx context.Context, playerID, guildID string, level int) error
	RemovePerms(ctx context.Context, playerID, guildID string) error
}

// LogSyncer is a Syncer that records the transitions it would apply.
type LogSyncer struct {
	logger *zap.Logger
}

func NewLogSyncer(logger *zap.Logger) *LogSyncer {
	return &LogSyncer{logger: logger}
}

func (s *LogSyncer) AddPerms(_ context.Context, playerID, guildID string, level int) error {
	s.logger.Debug("perms add",
		zap.String("player_id", playerID),
		zap.String("guild_id", guildID),
		zap.Int("level", level))
	return nil
}

func (s *LogSyncer) RemovePerms(_ context.Context, playerID, guildID string) error {
	s.logger.Debug("perms remove",
		zap.String("player_id", playerID),
		zap.String("guild_id", guildID))
	return nil
}

// RegisterListeners wires the syncer into guild lifecycle events.
// Permission failures never veto the transition itself.
func RegisterListeners(center *events.Center, syncer Syncer, logger *zap.Logger) {
	apply := func(ctx context.Context, ev events.Event) error {
		if err := syncer.AddPerms(ctx, ev.PlayerID, ev.GuildID, 0); err != nil {
			logger.Warn("perms sync failed", zap.String("event", ev.Name), zap.Error(err))
		}
		return nil
	}
	revoke := func(ctx context.Context, ev events.Event) error {
		if err := syncer.RemovePerms(ctx, ev.PlayerID, ev.GuildID); err != nil {
			logger.Warn("perms sync failed", zap.String("event", ev.Name), zap.Error(err))
		}
		return nil
	}

	center.Register(events.GuildCreate, 100, "perms", apply)
	center.Register(events.GuildJoin, 100, "perms", apply)
	center.Register(events.GuildLeave, 100, "perms", revoke)
	center.Register(events.GuildKick, 100, "perms", revoke)
}
