// Package config provides configuration loading, validation, and management
// for ion. Values come from defaults, an optional YAML file and ION_*
// environment variables, in increasing order of precedence.
package config

import (
	"time"

	"github.com/edgard/ion/internal/protocol"
	"github.com/edgard/ion/internal/session"
)

// Session backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendConfig = "config"
)

// Config is the complete application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"         yaml:"log"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"    yaml:"dispatch"`
	Session     SessionConfig     `mapstructure:"session"     yaml:"session"`
	Database    DatabaseConfig    `mapstructure:"database"    yaml:"database"`
	SecretStore SecretStoreConfig `mapstructure:"secretstore" yaml:"secretstore"`
	Telegram    TelegramConfig    `mapstructure:"telegram"    yaml:"telegram"`
	Control     ControlConfig     `mapstructure:"control"     yaml:"control"`
	Gemini      GeminiConfig      `mapstructure:"gemini"      yaml:"gemini"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"   yaml:"scheduler"`
}

// LogConfig selects verbosity and output format. JSON output is the
// structured production format; text is meant for development consoles.
type LogConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"        validate:"oneof=debug info warn error"`
	JSON       bool   `mapstructure:"json"         yaml:"json"`
	File       string `mapstructure:"file"         yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"  validate:"min=1,max=1024"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"  validate:"min=0,max=100"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0,max=365"`
}

// DispatchConfig holds the command prefixes placed before literal triggers.
type DispatchConfig struct {
	Prefixes []string `mapstructure:"prefixes" yaml:"prefixes"`
}

// SessionConfig selects where credentials are stored. The inline fields are
// only used by the "config" backend.
type SessionConfig struct {
	Backend       string `mapstructure:"backend"        yaml:"backend"        validate:"oneof=sqlite badger config"`
	AccountID     int64  `mapstructure:"account_id"     yaml:"account_id"     validate:"min=0"`
	AccountSecret string `mapstructure:"account_secret" yaml:"account_secret"`
	Token         string `mapstructure:"token"          yaml:"token"`
}

// Inline returns the credentials given directly in configuration.
func (c SessionConfig) Inline() session.Session {
	return session.Session{
		AccountID:     c.AccountID,
		AccountSecret: c.AccountSecret,
		Token:         c.Token,
	}
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// SecretStoreConfig configures the encrypted Badger store.
type SecretStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// EncryptionKey is 32 bytes, hex or base64. Empty opens the store unencrypted.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
}

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	ServerURL   string        `mapstructure:"server_url"   yaml:"server_url"   validate:"omitempty,url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout" validate:"min=1s,max=5m"`
	Retry       RetryConfig   `mapstructure:"retry"        yaml:"retry"`
}

// RetryConfig bounds connection retries.
type RetryConfig struct {
	Attempts uint          `mapstructure:"attempts"  yaml:"attempts"  validate:"min=1,max=100"`
	Delay    time.Duration `mapstructure:"delay"     yaml:"delay"     validate:"min=0,max=1m"`
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"min=0,max=10m"`
}

// Policy converts the configuration into a protocol retry policy.
func (c RetryConfig) Policy() protocol.RetryPolicy {
	return protocol.RetryPolicy{
		Attempts: c.Attempts,
		Delay:    c.Delay,
		MaxDelay: c.MaxDelay,
	}
}

// ControlConfig configures the control socket server.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr"    yaml:"addr"    validate:"required_if=Enabled true"`
}

// GeminiConfig configures the optional "ask" module. An empty API key
// leaves the module out.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"             yaml:"api_key"`
	ModelName         string  `mapstructure:"model"               yaml:"model"               validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         yaml:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"  yaml:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries"         yaml:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds" validate:"min=0,max=60"`
}

// SchedulerConfig lists scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" yaml:"tasks" validate:"dive"`
}

// TaskConfig is a single task's schedule. Schedules are cron expressions
// with a leading seconds field.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"  yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule" validate:"required_if=Enabled true"`
}
