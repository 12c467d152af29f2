package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/schoolhealth/internal/cache"
	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/repository"
	"github.com/jwalitptl/schoolhealth/pkg/circuitbreaker"
	"github.com/jwalitptl/schoolhealth/pkg/messaging/redis"
)

// EnvPrefix namespaces the environment overrides, e.g. SCHOOLHEALTH_BACKEND_URL.
const EnvPrefix = "SCHOOLHEALTH"

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	// Timezone is used to interpret ?day= on the submissions list.
	Timezone string `mapstructure:"timezone"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type BackendConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type CacheConfig struct {
	// Driver is memory or redis.
	Driver          string        `mapstructure:"driver"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Prefix          string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Events  EventsConfig  `mapstructure:"events"`
	Confirm struct {
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"confirm"`
	RateLimit struct {
		Enabled           bool    `mapstructure:"enabled"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
	Security struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
		MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	} `mapstructure:"security"`
	Image struct {
		MaxDimension int `mapstructure:"max_dimension"`
	} `mapstructure:"image"`
	Log struct {
		Level   string `mapstructure:"level"`
		Console bool   `mapstructure:"console"`
	} `mapstructure:"log"`
	Monitoring struct {
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"monitoring"`
}

// envOverrides are read with envconfig after the file, so deployments can change the
// common knobs without shipping a config file.
type envOverrides struct {
	Port          int    `envconfig:"PORT"`
	BackendURL    string `envconfig:"BACKEND_URL"`
	CacheDriver   string `envconfig:"CACHE_DRIVER"`
	RedisURL      string `envconfig:"REDIS_URL"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	EventsEnabled *bool  `envconfig:"EVENTS_ENABLED"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.timezone", "Asia/Ho_Chi_Minh")

	v.SetDefault("backend.url", "http://localhost:8081")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.max_image_bytes", 10<<20)
	v.SetDefault("backend.breaker.max_requests", 1)
	v.SetDefault("backend.breaker.interval", time.Minute)
	v.SetDefault("backend.breaker.timeout", 30*time.Second)
	v.SetDefault("backend.breaker.consecutive_failures", 5)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.prefix", "schoolhealth")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.channel", "schoolhealth.actions")

	v.SetDefault("confirm.token_ttl", 2*time.Minute)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.max_body_bytes", 1<<20)
	v.SetDefault("security.max_upload_bytes", 10<<20)

	v.SetDefault("image.max_dimension", 1280)

	v.SetDefault("log.level", "info")
	v.SetDefault("monitoring.namespace", "schoolhealth")
}

// LoadConfig reads .env, then config.yml from the usual locations (or file when given),
// then SCHOOLHEALTH_* overrides. A missing config file is not an error.
func LoadConfig(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	cfg.apply(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) apply(env envOverrides) {
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.BackendURL != "" {
		c.Backend.URL = env.BackendURL
	}
	if env.CacheDriver != "" {
		c.Cache.Driver = env.CacheDriver
	}
	if env.RedisURL != "" {
		c.Redis.URL = env.RedisURL
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.EventsEnabled != nil {
		c.Events.Enabled = *env.EventsEnabled
	}
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.driver must be memory or redis, got %q", c.Cache.Driver)
	}
	if (c.Cache.Driver == "redis" || c.Events.Enabled) && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis is used")
	}
	return nil
}

// Location is the server timezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) BreakerSettings() circuitbreaker.Settings {
	return circuitbreaker.Settings{
		Name:                "backend",
		MaxRequests:         c.Backend.Breaker.MaxRequests,
		Interval:            c.Backend.Breaker.Interval,
		Timeout:             c.Backend.Breaker.Timeout,
		ConsecutiveFailures: c.Backend.Breaker.ConsecutiveFailures,
	}
}

func (c *Config) SnapshotConfig() repository.SnapshotConfig {
	return repository.SnapshotConfig{
		TTL:             c.Cache.TTL,
		CleanupInterval: c.Cache.CleanupInterval,
	}
}

func (c *Config) RedisStoreConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:          c.Redis.URL,
		Prefix:       c.Cache.Prefix,
		TTL:          c.Cache.TTL,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

func (c *Config) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.Redis.URL,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

func (c *Config) TokenConfig() confirm.TokenConfig {
	tc := confirm.DefaultTokenConfig()
	if c.Confirm.TokenTTL > 0 {
		tc.TTL = c.Confirm.TokenTTL
	}
	return tc
}
