package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records guild actions and admin interventions.
type AuditLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_audit_trace;size:36;not null" json:"trace_id"`
	PlayerID   string         `gorm:"index:idx_audit_player;size:36" json:"player_id"`
	GuildID    string         `gorm:"index:idx_audit_guild;size:36" json:"guild_id"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	Detail     datatypes.JSON `json:"detail"`
	Error      string         `gorm:"type:text" json:"error"`
	IP         string         `gorm:"size:45" json:"ip"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
