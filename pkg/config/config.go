package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the PYDT notification bot.
type Config struct {
	AppEnv       string             `mapstructure:"app_env"`
	Bot          BotConfig          `mapstructure:"bot"`
	Server       ServerConfig       `mapstructure:"server"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Database     DatabaseConfig     `mapstructure:"database"`
	SQLite       SQLiteConfig       `mapstructure:"sqlite"`
	Redis        RedisConfig        `mapstructure:"redis"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

// BotConfig configures the Telegram side.
type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	Mode        string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	// PublicURL is where Telegram delivers updates in webhook mode.
	PublicURL      string        `mapstructure:"webhook_public_url" validate:"required_if=Mode webhook"`
	Secret         string        `mapstructure:"webhook_secret"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" validate:"gt=0"`
	SendRatePerSec int           `mapstructure:"send_rate_per_sec" validate:"gt=0"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// WebhookConfig configures the per-user PYDT webhook URL.
type WebhookConfig struct {
	// URLTemplate is concatenated with the user's token.
	URLTemplate string `mapstructure:"url_template" validate:"required"`
}

// StorageConfig selects the registration store backend.
type StorageConfig struct {
	Driver  string        `mapstructure:"driver" validate:"oneof=memory redis postgres sqlite"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker placed in front of the store.
type BreakerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ErrorThreshold float64       `mapstructure:"error_threshold" validate:"gte=0,lte=1"`
	MinRequests    int           `mapstructure:"min_requests" validate:"gte=0"`
	OpenTimeout    time.Duration `mapstructure:"open_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns PostgreSQL DSN based on config values.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig defines connection parameters for the Redis client.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// RateLimitRule is a limit of calls within a window expressed as a Go duration string.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gt=0"`
	Window string `mapstructure:"window" validate:"required"`
}

// RateLimitConfig configures the command throttle.
type RateLimitConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=memory redis adaptive"`
	PerUser         RateLimitRule `mapstructure:"per_user"`
	Whitelist       []int64       `mapstructure:"whitelist"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// RegistrationConfig controls registration reply policy.
type RegistrationConfig struct {
	// StrictPersist makes a failed save produce a "please retry" reply
	// instead of the optimistic success text.
	StrictPersist bool `mapstructure:"strict_persist"`
}

// LoggerConfig configures the slog handler.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}
