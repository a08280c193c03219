// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"time"

	"github.com/Proton-105/pairpicker-bot/pkg/redis"
)

// Config holds runtime configuration for the pair picker bot.
type Config struct {
	AppEnv      string            `mapstructure:"app_env"`
	Bot         BotConfig         `mapstructure:"bot"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Redis       redis.Config      `mapstructure:"redis"`
	State       StateConfig       `mapstructure:"state"`
	Dialogue    DialogueConfig    `mapstructure:"dialogue"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Server      ServerConfig      `mapstructure:"server"`
}

// BotConfig configures the Bot API client.
type BotConfig struct {
	Token          string        `mapstructure:"token" validate:"required"`
	Mode           string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	WebhookListen  string        `mapstructure:"webhook_listen" validate:"required_if=Mode webhook"`
	WebhookURL     string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" validate:"gte=0"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Environment string  `mapstructure:"environment"`
}

// StateConfig selects the dialogue store and its housekeeping.
type StateConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=memory redis"`
	Lock            string        `mapstructure:"lock" validate:"oneof=local redis"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gte=0"`
	LockTTL         time.Duration `mapstructure:"lock_ttl" validate:"gte=0"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl" validate:"gte=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
	CollectInterval time.Duration `mapstructure:"collect_interval" validate:"gte=0"`
}

// DialogueConfig is the menu offered by the picker.
type DialogueConfig struct {
	Symbols         []string `mapstructure:"symbols" validate:"min=1,dive,required"`
	Intervals       []string `mapstructure:"intervals" validate:"min=1,dive,required"`
	SubmitLabel     string   `mapstructure:"submit_label" validate:"required"`
	DefaultLanguage string   `mapstructure:"default_language" validate:"required"`
	AllowRestart    bool     `mapstructure:"allow_restart"`
	UnhandledHint   bool     `mapstructure:"unhandled_hint"`
	LocalesDir      string   `mapstructure:"locales_dir"`
}

type RateLimitConfig struct {
	Enabled         bool       `mapstructure:"enabled"`
	Backend         string     `mapstructure:"backend" validate:"oneof=memory redis"`
	PerConversation RuleConfig `mapstructure:"per_conversation"`
	Whitelist       []int64    `mapstructure:"whitelist"`
}

// RuleConfig allows Limit updates per Window.
type RuleConfig struct {
	Limit  int           `mapstructure:"limit" validate:"gte=0"`
	Window time.Duration `mapstructure:"window" validate:"gte=0"`
}

type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

var (
	errRedisRequired = errors.New("redis.enabled must be true when a redis backend is selected")
	errRateLimitRule = errors.New("ratelimit.per_conversation needs a positive limit and window")
)

// Validate checks rules spanning several sections.
func (c *Config) Validate() error {
	usesRedis := c.State.Backend == "redis" || c.State.Lock == "redis" ||
		(c.RateLimit.Enabled && c.RateLimit.Backend == "redis")
	if usesRedis && !c.Redis.Enabled {
		return errRedisRequired
	}

	if c.RateLimit.Enabled && (c.RateLimit.PerConversation.Limit <= 0 || c.RateLimit.PerConversation.Window <= 0) {
		return errRateLimitRule
	}

	return nil
}
