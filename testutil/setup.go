package testutil

import (
	"testing"

	"github.com/kasogane/guildhall/cache"
	"github.com/kasogane/guildhall/config"
	dbadapter "github.com/kasogane/guildhall/db"
	"github.com/kasogane/guildhall/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: "file::memory:?cache=private",
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a local cache and pub/sub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := config.CacheConfig{} // empty RedisAddr → local implementations
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// GuildTestConfig returns a small-capacity guild config for tests.
func GuildTestConfig() config.GuildConfig {
	return config.GuildConfig{
		BaseMembers:      10,
		MembersPerTier:   10,
		MaxTier:          3,
		TierCostBase:     1000,
		VaultsPerTier:    1,
		CodeLength:       8,
		MaxActiveCodes:   5,
		JoinCooldownS:    60,
		HomeCooldownS:    60,
		RequestCooldownS: 300,
		ChatCooldownS:    3,
		SaveIntervalS:    300,
	}
}
