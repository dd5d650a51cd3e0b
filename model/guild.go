package model

import (
	"time"

	"gorm.io/datatypes"
)

// GuildRecord is the persisted form of one guild. Set-valued state
// (invites, allies, vaults) is stored as JSON columns; members and codes
// get their own tables so they can be pruned per guild on save.
type GuildRecord struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Name          string         `gorm:"uniqueIndex;size:48;not null" json:"name"`
	Prefix        string         `gorm:"size:16" json:"prefix"`
	Status        string         `gorm:"size:8;default:Private" json:"status"`
	MOTD          string         `gorm:"type:text" json:"motd"`
	Home          string         `gorm:"size:128" json:"home"`
	Tier          int            `gorm:"default:0" json:"tier"`
	Balance       int64          `gorm:"default:0" json:"balance"`
	Invited       datatypes.JSON `json:"invited"`
	Allies        datatypes.JSON `json:"allies"`
	PendingAllies datatypes.JSON `json:"pending_allies"`
	Vaults        datatypes.JSON `json:"vaults"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// GuildMemberRecord links a player to a guild with a role level.
// The unique index on PlayerID backs the one-guild-per-player invariant
// at the storage layer too.
type GuildMemberRecord struct {
	GuildID  string    `gorm:"primaryKey;size:36;index:idx_guild_member" json:"guild_id"`
	PlayerID string    `gorm:"primaryKey;size:36;uniqueIndex:idx_member_player" json:"player_id"`
	Level    int       `gorm:"default:3" json:"level"`
	JoinedAt time.Time `json:"joined_at"`
}

// GuildCodeRecord is one active invite code.
type GuildCodeRecord struct {
	GuildID   string         `gorm:"primaryKey;size:36;index:idx_guild_code" json:"guild_id"`
	Code      string         `gorm:"primaryKey;size:16" json:"code"`
	Uses      int            `gorm:"not null" json:"uses"`
	Creator   string         `gorm:"size:36" json:"creator"`
	Redeemers datatypes.JSON `json:"redeemers"`
}

// CooldownRecord is one persisted cooldown entry.
type CooldownRecord struct {
	Kind     string    `gorm:"primaryKey;size:16" json:"kind"`
	PlayerID string    `gorm:"primaryKey;size:36" json:"player_id"`
	Expiry   time.Time `gorm:"not null" json:"expiry"`
}
