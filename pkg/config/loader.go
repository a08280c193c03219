package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultEnv       = "development"
	defaultConfigDir = "./configs"
)

var defaults = map[string]any{
	"bot.token":           "",
	"bot.mode":            "polling",
	"bot.poll_timeout":    10 * time.Second,
	"bot.webhook_listen":  "",
	"bot.webhook_url":     "",
	"bot.handler_timeout": 15 * time.Second,

	"logger.level":        "info",
	"logger.format":       "text",
	"logger.file":         "",
	"logger.max_size_mb":  10,
	"logger.max_backups":  5,
	"logger.max_age_days": 7,
	"logger.compress":     true,

	"sentry.enabled":     false,
	"sentry.dsn":         "",
	"sentry.sample_rate": 1.0,
	"sentry.environment": "",

	"redis.enabled":           false,
	"redis.addr":              "localhost:6379",
	"redis.password":          "",
	"redis.db":                0,
	"redis.pool_size":         10,
	"redis.min_idle_conns":    2,
	"redis.pool_timeout":      4 * time.Second,
	"redis.idle_timeout":      5 * time.Minute,
	"redis.max_retries":       3,
	"redis.min_retry_backoff": 8 * time.Millisecond,
	"redis.max_retry_backoff": 512 * time.Millisecond,

	"state.backend":          "memory",
	"state.lock":             "local",
	"state.ttl":              time.Duration(0),
	"state.lock_ttl":         5 * time.Second,
	"state.idle_ttl":         time.Duration(0),
	"state.cleanup_interval": 10 * time.Minute,
	"state.collect_interval": 30 * time.Second,

	"dialogue.symbols":          []string{"BTCUSDT", "ETHUSDT"},
	"dialogue.intervals":        []string{"1h", "4h", "1d"},
	"dialogue.submit_label":     "Submit",
	"dialogue.default_language": "en",
	"dialogue.allow_restart":    false,
	"dialogue.unhandled_hint":   false,
	"dialogue.locales_dir":      "",

	"ratelimit.enabled":                 false,
	"ratelimit.backend":                 "memory",
	"ratelimit.per_conversation.limit":  30,
	"ratelimit.per_conversation.window": time.Minute,
	"ratelimit.whitelist":               []int64{},

	"idempotency.enabled": true,
	"idempotency.ttl":     10 * time.Minute,

	"server.addr":             ":8080",
	"server.shutdown_timeout": 10 * time.Second,
}

// Load reads .env files, then configs/<APP_ENV>.yaml and environment variables,
// validates the result and returns it together with the viper instance for Watch.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read env file", slog.Any("error", err))
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = defaultEnv
	}

	return LoadFrom(defaultConfigDir, env)
}

// LoadFrom loads <dir>/<env>.yaml. A missing file leaves defaults and environment in effect.
func LoadFrom(dir, env string) (*Config, *viper.Viper, error) {
	v := newViper()
	v.Set("app_env", env)

	path := filepath.Join(dir, env+".yaml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("stat config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Watch reloads the config file on change and passes every valid revision to onChange.
// Invalid revisions are logged and skipped.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || v.ConfigFileUsed() == "" || onChange == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			log.Error("ignoring invalid config revision", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config reloaded", slog.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
