package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Guild    GuildConfig    `mapstructure:"guild"`
	Security SecurityConfig `mapstructure:"security"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminAllowedIPs restricts /api/admin to these addresses. Empty allows all.
	AdminAllowedIPs []string `mapstructure:"admin_allowed_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// GuildConfig tunes guild capacity, tiers, codes and cooldowns.
type GuildConfig struct {
	BaseMembers    int   `mapstructure:"base_members"`     // member cap at tier 0
	MembersPerTier int   `mapstructure:"members_per_tier"` // cap gained per tier
	MaxTier        int   `mapstructure:"max_tier"`
	TierCostBase   int64 `mapstructure:"tier_cost_base"`    // cost of tier n = base * n
	MembersToRank  int   `mapstructure:"members_to_rankup"` // 0 disables the gate

	VaultsPerTier int `mapstructure:"vaults_per_tier"`

	CodeLength     int `mapstructure:"code_length"`
	MaxActiveCodes int `mapstructure:"max_active_codes"`

	JoinCooldownS    int `mapstructure:"join_cooldown_s"`
	HomeCooldownS    int `mapstructure:"home_cooldown_s"`
	RequestCooldownS int `mapstructure:"request_cooldown_s"`
	ChatCooldownS    int `mapstructure:"chat_cooldown_s"`

	SaveIntervalS int `mapstructure:"save_interval_s"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// HooksConfig toggles optional third-party integrations.
type HooksConfig struct {
	ClaimsEnabled bool `mapstructure:"claims_enabled"`
	PermsEnabled  bool `mapstructure:"perms_enabled"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/guilds.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("guild.base_members", 10)
	v.SetDefault("guild.members_per_tier", 10)
	v.SetDefault("guild.max_tier", 3)
	v.SetDefault("guild.tier_cost_base", 1000)
	v.SetDefault("guild.members_to_rankup", 0)
	v.SetDefault("guild.vaults_per_tier", 1)
	v.SetDefault("guild.code_length", 8)
	v.SetDefault("guild.max_active_codes", 5)
	v.SetDefault("guild.join_cooldown_s", 60)
	v.SetDefault("guild.home_cooldown_s", 60)
	v.SetDefault("guild.request_cooldown_s", 300)
	v.SetDefault("guild.chat_cooldown_s", 3)
	v.SetDefault("guild.save_interval_s", 300)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
