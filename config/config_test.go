package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 10, cfg.Guild.BaseMembers)
	assert.Equal(t, 3, cfg.Guild.MaxTier)
	assert.Equal(t, int64(1000), cfg.Guild.TierCostBase)
	assert.Equal(t, 60, cfg.Guild.JoinCooldownS)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTLH)
	assert.False(t, cfg.Hooks.PermsEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7000
  admin_key: supersecret
database:
  mode: mysql
  mysql_dsn: user:pass@tcp(localhost:3306)/guilds
guild:
  base_members: 5
  chat_cooldown_s: 10
hooks:
  perms_enabled: true
  claims_enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "supersecret", cfg.Server.AdminKey)
	assert.Equal(t, "mysql", cfg.Database.Mode)
	assert.Equal(t, 5, cfg.Guild.BaseMembers)
	assert.Equal(t, 10, cfg.Guild.ChatCooldownS)
	assert.True(t, cfg.Hooks.PermsEnabled)
	assert.True(t, cfg.Hooks.ClaimsEnabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
