package store

import (
	"context"

	"github.com/kasogane/guildhall/cooldowns"
	"github.com/kasogane/guildhall/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CooldownStore persists cooldown entries through GORM.
type CooldownStore struct {
	db *gorm.DB
}

func NewCooldownStore(db *gorm.DB) *CooldownStore {
	return &CooldownStore{db: db}
}

func (s *CooldownStore) LoadCooldowns(ctx context.Context) ([]cooldowns.Entry, error) {
	var records []model.CooldownRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}
	entries := make([]cooldowns.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, cooldowns.Entry{
			Kind:     rec.Kind,
			PlayerID: rec.PlayerID,
			Expiry:   rec.Expiry,
		})
	}
	return entries, nil
}

// SaveCooldowns replaces the stored set with the given entries.
func (s *CooldownStore) SaveCooldowns(ctx context.Context, entries []cooldowns.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.CooldownRecord{}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			rec := model.CooldownRecord{
				Kind:     e.Kind,
				PlayerID: e.PlayerID,
				Expiry:   e.Expiry,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
