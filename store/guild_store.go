// Package store maps the in-memory guild registry to its database
// records. Saves are full, idempotent upserts: the registry is the
// source of truth and rows for guilds that no longer exist are pruned.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kasogane/guildhall/guild"
	"github.com/kasogane/guildhall/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuildStore persists guild snapshots through GORM.
type GuildStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGuildStore(db *gorm.DB, logger *zap.Logger) *GuildStore {
	return &GuildStore{db: db, logger: logger}
}

// LoadGuilds reads every guild with its members and codes.
func (s *GuildStore) LoadGuilds(ctx context.Context) ([]guild.Snapshot, error) {
	var records []model.GuildRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}

	snaps := make([]guild.Snapshot, 0, len(records))
	for _, rec := range records {
		snap := guild.Snapshot{
			ID:        rec.ID,
			Name:      rec.Name,
			Prefix:    rec.Prefix,
			Status:    guild.Status(rec.Status),
			MOTD:      rec.MOTD,
			Home:      rec.Home,
			Tier:      rec.Tier,
			Balance:   rec.Balance,
			CreatedAt: rec.CreatedAt,
		}
		unmarshalList(rec.Invited, &snap.Invited, s.logger)
		unmarshalList(rec.Allies, &snap.Allies, s.logger)
		unmarshalList(rec.PendingAllies, &snap.PendingAllies, s.logger)
		unmarshalList(rec.Vaults, &snap.Vaults, s.logger)

		var members []model.GuildMemberRecord
		if err := s.db.WithContext(ctx).Where("guild_id = ?", rec.ID).Find(&members).Error; err != nil {
			return nil, err
		}
		for _, m := range members {
			snap.Members = append(snap.Members, guild.Member{
				PlayerID: m.PlayerID,
				Level:    m.Level,
				JoinedAt: m.JoinedAt,
			})
		}

		var codes []model.GuildCodeRecord
		if err := s.db.WithContext(ctx).Where("guild_id = ?", rec.ID).Find(&codes).Error; err != nil {
			return nil, err
		}
		for _, c := range codes {
			code := guild.Code{ID: c.Code, Uses: c.Uses, Creator: c.Creator}
			unmarshalList(c.Redeemers, &code.Redeemers, s.logger)
			snap.Codes = append(snap.Codes, code)
		}

		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// SaveGuilds upserts every snapshot and prunes rows for guilds absent
// from the set, all inside one transaction.
func (s *GuildStore) SaveGuilds(ctx context.Context, snaps []guild.Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(snaps))
		for _, snap := range snaps {
			ids = append(ids, snap.ID)
			if err := saveOne(tx, snap); err != nil {
				return err
			}
		}

		// Prune guilds removed since the last save.
		if len(ids) == 0 {
			if err := tx.Where("1 = 1").Delete(&model.GuildRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("1 = 1").Delete(&model.GuildMemberRecord{}).Error; err != nil {
				return err
			}
			return tx.Where("1 = 1").Delete(&model.GuildCodeRecord{}).Error
		}
		if err := tx.Where("id NOT IN ?", ids).Delete(&model.GuildRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("guild_id NOT IN ?", ids).Delete(&model.GuildMemberRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("guild_id NOT IN ?", ids).Delete(&model.GuildCodeRecord{}).Error
	})
}

func saveOne(tx *gorm.DB, snap guild.Snapshot) error {
	rec := model.GuildRecord{
		ID:            snap.ID,
		Name:          snap.Name,
		Prefix:        snap.Prefix,
		Status:        string(snap.Status),
		MOTD:          snap.MOTD,
		Home:          snap.Home,
		Tier:          snap.Tier,
		Balance:       snap.Balance,
		Invited:       marshalList(snap.Invited),
		Allies:        marshalList(snap.Allies),
		PendingAllies: marshalList(snap.PendingAllies),
		Vaults:        marshalList(snap.Vaults),
		CreatedAt:     snap.CreatedAt,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error; err != nil {
		return err
	}

	// Members and codes are replaced wholesale per guild.
	if err := tx.Where("guild_id = ?", snap.ID).Delete(&model.GuildMemberRecord{}).Error; err != nil {
		return err
	}
	for _, m := range snap.Members {
		joined := m.JoinedAt
		if joined.IsZero() {
			joined = time.Now()
		}
		mr := model.GuildMemberRecord{
			GuildID:  snap.ID,
			PlayerID: m.PlayerID,
			Level:    m.Level,
			JoinedAt: joined,
		}
		if err := tx.Create(&mr).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("guild_id = ?", snap.ID).Delete(&model.GuildCodeRecord{}).Error; err != nil {
		return err
	}
	for _, c := range snap.Codes {
		cr := model.GuildCodeRecord{
			GuildID:   snap.ID,
			Code:      c.ID,
			Uses:      c.Uses,
			Creator:   c.Creator,
			Redeemers: marshalList(c.Redeemers),
		}
		if err := tx.Create(&cr).Error; err != nil {
			return err
		}
	}
	return nil
}

func marshalList(list []string) []byte {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return data
}

func unmarshalList(data []byte, dst *[]string, logger *zap.Logger) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil && logger != nil {
		logger.Warn("store: bad json column", zap.Error(err))
	}
}
