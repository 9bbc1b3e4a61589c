package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"app_env"`
	LogLevel  string          `mapstructure:"log_level"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Vote      VoteConfig      `mapstructure:"vote"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	SessionSecret  string   `mapstructure:"session_secret"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	SecureCookies  bool     `mapstructure:"secure_cookies"`
	SiteURL        string   `mapstructure:"site_url"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type VoteConfig struct {
	// Timezone in which ISO weeks are evaluated.
	Timezone       string `mapstructure:"timezone"`
	IdentitySecret string `mapstructure:"identity_secret"`
}

type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// Location resolves Vote.Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Vote.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Vote.Timezone)
	if err != nil {
		slog.Warn("unknown vote timezone, using UTC", "timezone", c.Vote.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_secret", "secret_key_change_me")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.site_url", "http://localhost:8080")
	v.SetDefault("database.url", "host=localhost user=postgres password=postgres dbname=closetvote port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", 2*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "closetvote.votes")
	v.SetDefault("vote.timezone", "UTC")
	v.SetDefault("vote.identity_secret", "")
	v.SetDefault("ratelimit.window", 15*time.Minute)
	v.SetDefault("ratelimit.max", 100)
}

// Load reads .env (if present), an optional yaml file and the environment.
// Nested keys map to env vars with "_" separators, e.g. DATABASE_URL, REDIS_ADDR,
// KAFKA_BROKERS (comma separated), VOTE_IDENTITY_SECRET.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading env vars from system")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Server.TrustedProxies = splitList(cfg.Server.TrustedProxies)

	if cfg.Vote.IdentitySecret == "" {
		cfg.Vote.IdentitySecret = cfg.Server.SessionSecret
	}
	return &cfg, nil
}

// splitList flattens comma separated entries coming from a single env var.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
