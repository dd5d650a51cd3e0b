package model

import "time"

// Account represents a player account.
type Account struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}

// Player is the in-game identity tied to an account. Guild membership is
// keyed by the player's stable uuid, never by name.
type Player struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID int64     `gorm:"uniqueIndex;not null" json:"account_id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
