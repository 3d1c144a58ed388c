package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Blocker    BlockerConfig    `mapstructure:"blocker"`
	Import     ImportConfig     `mapstructure:"import"`
}

type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	DefaultLocale string `mapstructure:"default_locale"`
	AdminToken    string `mapstructure:"admin_token"` // empty disables /api/v1/admin
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, redis, database
	Capacity      int           `mapstructure:"capacity"`
	RedisURL      string        `mapstructure:"redis_url"`
	LocalSize     int           `mapstructure:"local_size"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type FetchConfig struct {
	MaxBytes   int64  `mapstructure:"max_bytes"`
	RetryCount int    `mapstructure:"retry_count"`
	UserAgent  string `mapstructure:"user_agent"`
}

type ModerationConfig struct {
	Driver      string        `mapstructure:"driver"` // log, onebot
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // calls per second, 0 disables
}

// ImportConfig controls bulk registration from local directories.
type ImportConfig struct {
	Dir       string `mapstructure:"dir"` // admin imports are confined to this root
	Workers   int    `mapstructure:"workers"`
	BatchSize int    `mapstructure:"batch_size"`
}

// BlockerConfig holds the operator-facing options of the image blocker.
type BlockerConfig struct {
	Similarity           int           `mapstructure:"similarity"`             // max edit distance, 0-14
	CacheTime            int           `mapstructure:"cache_time"`             // hours
	RecallFlag           bool          `mapstructure:"recall_flag"`            // delete matching messages
	MuteFlag             bool          `mapstructure:"mute_flag"`              // mute the sender
	MuteTime             int           `mapstructure:"mute_time"`              // minutes
	PageSize             int           `mapstructure:"page_size"`              // list page size
	HashBits             int           `mapstructure:"hash_bits"`              // 8 or 16
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`          // per candidate
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"` // per message
	FailClosed           bool          `mapstructure:"fail_closed"`            // hold messages when the store is down
}

// CacheTTL returns cache_time as a duration.
func (c *BlockerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTime) * time.Hour
}

// MuteDuration returns mute_time as a duration.
func (c *BlockerConfig) MuteDuration() time.Duration {
	return time.Duration(c.MuteTime) * time.Minute
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("cache.redis_url", "REDIS_URL")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("moderation.base_url", "ONEBOT_BASE_URL")
	v.BindEnv("moderation.access_token", "ONEBOT_ACCESS_TOKEN")
	v.BindEnv("server.admin_token", "ADMIN_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.default_locale", "en")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/imageguard.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.capacity", 10000)
	v.SetDefault("cache.local_size", 1000)
	v.SetDefault("cache.sweep_interval", time.Hour)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./data/image-blocker")
	v.SetDefault("storage.bucket", "image-blocker")

	v.SetDefault("fetch.max_bytes", 20<<20)
	v.SetDefault("fetch.retry_count", 1)
	v.SetDefault("fetch.user_agent", "imageguard/1.0")

	v.SetDefault("moderation.driver", "log")
	v.SetDefault("moderation.timeout", 10*time.Second)
	v.SetDefault("moderation.rate_limit", 5)

	v.SetDefault("blocker.similarity", 2)
	v.SetDefault("blocker.cache_time", 24*7)
	v.SetDefault("blocker.recall_flag", true)
	v.SetDefault("blocker.mute_flag", false)
	v.SetDefault("blocker.mute_time", 30)
	v.SetDefault("blocker.page_size", 5)
	v.SetDefault("blocker.hash_bits", 8)
	v.SetDefault("blocker.fetch_timeout", 10*time.Second)
	v.SetDefault("blocker.max_concurrent_fetches", 4)
	v.SetDefault("blocker.fail_closed", true)

	v.SetDefault("import.dir", "./data/import")
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.batch_size", 50)
}
