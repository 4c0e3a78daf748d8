package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/kelseyhightower/envconfig"
)

// ストアドライバ
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres" validate:"required|in:postgres,memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Neynar
	NeynarAPIKey           string        `envconfig:"NEYNAR_API_KEY" validate:"required"`
	NeynarBaseURL          string        `envconfig:"NEYNAR_BASE_URL" default:"https://api.neynar.com/v2/farcaster" validate:"required"`
	NeynarRatePerSec       float64       `envconfig:"NEYNAR_RATE_PER_SEC" default:"5"`
	NeynarResolveReactions bool          `envconfig:"NEYNAR_RESOLVE_REACTIONS" default:"false"`
	NeynarReactionTimeout  time.Duration `envconfig:"NEYNAR_REACTION_TIMEOUT" default:"60s"`

	// Trigger
	CronSecret        string `envconfig:"CRON_SECRET"`
	TriggerRatePerMin int    `envconfig:"TRIGGER_RATE_PER_MIN" default:"6" validate:"min:1"`

	// Channels
	ChannelDirectoryURL string `envconfig:"CHANNEL_DIRECTORY_URL"`
	MaxChannels         int    `envconfig:"MAX_CHANNELS" default:"8" validate:"min:1|max:20"`

	// Fetch
	CastLimit          int           `envconfig:"CAST_LIMIT" default:"100" validate:"min:1|max:100"`
	FetchTimeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	FetchMaxConcurrent int           `envconfig:"FETCH_MAX_CONCURRENT" default:"4" validate:"min:1"`
	OutboundGuard      bool          `envconfig:"OUTBOUND_GUARD" default:"true"`

	// Snapshot
	RetentionDays     int           `envconfig:"RETENTION_DAYS" default:"7" validate:"min:1"`
	SnapshotInterval  time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"1h"`
	SampleDataEnabled bool          `envconfig:"SAMPLE_DATA_ENABLED" default:"false"`

	// Cache
	CacheSizeMB int           `envconfig:"CACHE_SIZE_MB" default:"8" validate:"min:0"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"60s"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080" validate:"required"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"in:debug,info,warn,error"`
}

// ConfigError は設定の読み込み・検証に失敗した場合のエラー。
// 外部呼び出しを行う前に起動を中断するために使用する。
type ConfigError struct {
	Field string
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load は環境変数からConfigを読み込み、検証する。
// 必須環境変数が未設定、または値が不正な場合は*ConfigErrorを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate はタグで宣言したルールと項目間の制約を検証する。
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		field, msg := firstError(v.Errors)
		return &ConfigError{Field: field, Err: errors.New(msg)}
	}

	if c.StoreDriver == StoreDriverPostgres && c.DatabaseURL == "" {
		return &ConfigError{Field: "DATABASE_URL", Err: errors.New("required when STORE_DRIVER=postgres")}
	}
	if err := validateEndpoint(c.NeynarBaseURL); err != nil {
		return &ConfigError{Field: "NEYNAR_BASE_URL", Err: err}
	}
	if c.ChannelDirectoryURL != "" {
		if err := validateEndpoint(c.ChannelDirectoryURL); err != nil {
			return &ConfigError{Field: "CHANNEL_DIRECTORY_URL", Err: err}
		}
	}
	if c.FetchTimeout <= 0 {
		return &ConfigError{Field: "FETCH_TIMEOUT", Err: errors.New("must be positive")}
	}
	if c.NeynarResolveReactions && c.NeynarReactionTimeout <= 0 {
		return &ConfigError{Field: "NEYNAR_REACTION_TIMEOUT", Err: errors.New("must be positive when reactions are resolved")}
	}
	if c.SnapshotInterval <= 0 {
		return &ConfigError{Field: "SNAPSHOT_INTERVAL", Err: errors.New("must be positive")}
	}
	if c.CacheSizeMB > 0 && c.CacheTTL <= 0 {
		return &ConfigError{Field: "CACHE_TTL", Err: errors.New("must be positive when the cache is enabled")}
	}
	if c.NeynarRatePerSec < 0 {
		return &ConfigError{Field: "NEYNAR_RATE_PER_SEC", Err: errors.New("must not be negative")}
	}
	return nil
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SecretConfigured はトリガー用の共有シークレットが設定されているかを返す。
func (c *Config) SecretConfigured() bool {
	return c.CronSecret != ""
}

func firstError(errs validate.Errors) (string, string) {
	for field, ms := range errs {
		return field, ms.One()
	}
	return "", errs.One()
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
