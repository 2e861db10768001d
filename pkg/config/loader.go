// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the optional YAML file of the current
// APP_ENV and from environment variables, validates it, and returns the
// resulting Config.
func Load() (*Config, *viper.Viper, error) {
	for _, file := range []string{".env.local", ".env"} {
		// missing env files are fine, the process environment may be complete
		_ = godotenv.Load(file)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = fmt.Sprintf("./configs/%s.yaml", env)
	}

	return LoadWithPath(env, path)
}

// LoadWithPath loads configuration for env from path. A missing file is not
// an error; defaults and environment variables still apply.
func LoadWithPath(env, path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("stat config: %w", err)
		}
	}

	if env != "" {
		v.Set("app_env", env)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Watch reloads the configuration file on change and hands every valid
// result to onChange. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || onChange == nil || v.ConfigFileUsed() == "" {
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
			log.Warn("ignoring invalid config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config reloaded", slog.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
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

	return &cfg, nil
}

// bindLegacyEnv keeps the TELEGRAM_TOKEN and WEBHOOK_TEMPLATE variable names working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"bot.token":            {"TELEGRAM_TOKEN", "BOT_TOKEN"},
		"webhook.url_template": {"WEBHOOK_TEMPLATE", "WEBHOOK_URL_TEMPLATE"},
	}

	for key, envs := range bindings {
		input := append([]string{key}, envs...)
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")

	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.poll_timeout", 10*time.Second)
	v.SetDefault("bot.webhook_public_url", "")
	v.SetDefault("bot.webhook_secret", "")
	v.SetDefault("bot.send_timeout", 10*time.Second)
	v.SetDefault("bot.send_rate_per_sec", 25)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<10)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.timeout", 3*time.Second)
	v.SetDefault("storage.breaker.enabled", true)
	v.SetDefault("storage.breaker.error_threshold", 0.5)
	v.SetDefault("storage.breaker.min_requests", 10)
	v.SetDefault("storage.breaker.open_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pydt")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("sqlite.path", "pydt.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.idle_timeout", 5*time.Minute)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", 8*time.Millisecond)
	v.SetDefault("redis.max_retry_backoff", 512*time.Millisecond)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.per_user.limit", 5)
	v.SetDefault("rate_limit.per_user.window", "1m")
	v.SetDefault("rate_limit.whitelist", []int64{})
	v.SetDefault("rate_limit.cleanup_schedule", "@every 5m")

	v.SetDefault("registration.strict_persist", false)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)
}
