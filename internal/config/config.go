// Package config loads service configuration from defaults, an optional
// config file, .env files and LIVESCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/adeilh/go-livescore/ratelimit"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

const EnvPrefix = "LIVESCORE"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	MaxEntries     int           `mapstructure:"max_entries"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	CleanupHorizon time.Duration `mapstructure:"cleanup_horizon"`
}

type RateLimitConfig struct {
	SweepInterval time.Duration  `mapstructure:"sweep_interval"`
	Limits        map[string]int `mapstructure:"limits"`
	InboundRPS    float64        `mapstructure:"inbound_rps"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AdminConfig struct {
	KeyHash string `mapstructure:"key_hash"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are consulted.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("api.base_url", "https://v3.football.api-sports.io")
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("cache.max_entries", 100)
	v.SetDefault("cache.sweep_interval", 5*time.Minute)
	v.SetDefault("cache.cleanup_horizon", 24*time.Hour)

	v.SetDefault("ratelimit.sweep_interval", time.Minute)
	v.SetDefault("ratelimit.inbound_rps", 20)
	for category, limit := range ratelimit.DefaultLimits() {
		v.SetDefault("ratelimit.limits."+category, limit)
	}

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "livescore:")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("admin.key_hash", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// Validate rejects values the cache and limiter cannot run with.
func (c Config) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("%w: cache.max_entries must be positive, got %d", ErrInvalidConfig, c.Cache.MaxEntries)
	}
	if c.Cache.SweepInterval <= 0 || c.Cache.CleanupHorizon <= 0 {
		return fmt.Errorf("%w: cache sweep interval and cleanup horizon must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.SweepInterval <= 0 {
		return fmt.Errorf("%w: ratelimit.sweep_interval must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.InboundRPS < 0 {
		return fmt.Errorf("%w: ratelimit.inbound_rps must not be negative", ErrInvalidConfig)
	}
	for category, limit := range c.RateLimit.Limits {
		if limit <= 0 {
			return fmt.Errorf("%w: ratelimit.limits.%s must be positive, got %d", ErrInvalidConfig, category, limit)
		}
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	return nil
}

// Limits returns the configured limit table in limiter form.
func (c Config) Limits() ratelimit.Limits {
	return ratelimit.Limits(c.RateLimit.Limits).Clone()
}
