// Package claim manages territory claims tied to guild homes. The
// default provider only logs; a deployment with a land-claim backend
// supplies its own Provider.
package claim

import (
	"context"

	"github.com/kasogane/guildhall/events"
	"go.uber.org/zap"
)

// Provider creates and releases a guild's territory claim.
type Provider interface {
	CreateClaim(ctx context.Context, guildID, home string) error
	ReleaseClaim(ctx context.Context, guildID string) error
}

// LogProvider is a Provider that records the claims it would manage.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) CreateClaim(_ context.Context, guildID, home string) error {
	p.logger.Debug("claim create",
		zap.String("guild_id", guildID),
		zap.String("home", home))
	return nil
}

func (p *LogProvider) ReleaseClaim(_ context.Context, guildID string) error {
	p.logger.Debug("claim release", zap.String("guild_id", guildID))
	return nil
}

// RegisterListeners keeps the claim backend in step with guild homes.
// The GuildHomeSet event carries the prospective home in Detail; claim
// failures never veto the transition itself.
func RegisterListeners(center *events.Center, provider Provider, logger *zap.Logger) {
	center.Register(events.GuildHomeSet, 100, "claim", func(ctx context.Context, ev events.Event) error {
		if err := provider.CreateClaim(ctx, ev.GuildID, ev.Detail); err != nil {
			logger.Warn("claim create failed", zap.String("guild_id", ev.GuildID), zap.Error(err))
		}
		return nil
	})
	center.Register(events.GuildRemove, 100, "claim", func(ctx context.Context, ev events.Event) error {
		if err := provider.ReleaseClaim(ctx, ev.GuildID); err != nil {
			logger.Warn("claim release failed", zap.String("guild_id", ev.GuildID), zap.Error(err))
		}
		return nil
	})
}
