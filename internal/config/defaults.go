package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultLogLevel      = "info"
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 28

	DefaultPrefix = "."

	DefaultSessionBackend = BackendSQLite
	DefaultDBPath         = "ion.db"
	DefaultSecretStoreDir = "ion.secrets"

	DefaultPollTimeout   = 30 * time.Second
	DefaultRetryAttempts = 15
	DefaultRetryDelay    = time.Second
	DefaultRetryMaxDelay = 30 * time.Second

	DefaultControlAddr = "127.0.0.1:8743"

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 1.0
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2

	TaskStatusHeartbeat = "status_heartbeat"
	TaskSQLMaintenance  = "sql_maintenance"
)

// EnvProduction is the ION_ENV value that switches logs to JSON by default.
const EnvProduction = "production"

func defaults() map[string]any {
	return map[string]any{
		"log.level":        DefaultLogLevel,
		"log.json":         os.Getenv("ION_ENV") == EnvProduction,
		"log.file":         "",
		"log.max_size_mb":  DefaultLogMaxSizeMB,
		"log.max_backups":  DefaultLogMaxBackups,
		"log.max_age_days": DefaultLogMaxAgeDays,

		"dispatch.prefixes": []string{DefaultPrefix},

		"session.backend":        DefaultSessionBackend,
		"session.account_id":     0,
		"session.account_secret": "",
		"session.token":          "",

		"database.path": DefaultDBPath,

		"secretstore.path":           DefaultSecretStoreDir,
		"secretstore.encryption_key": "",

		"telegram.server_url":      "",
		"telegram.poll_timeout":    DefaultPollTimeout,
		"telegram.retry.attempts":  DefaultRetryAttempts,
		"telegram.retry.delay":     DefaultRetryDelay,
		"telegram.retry.max_delay": DefaultRetryMaxDelay,

		"control.enabled": true,
		"control.addr":    DefaultControlAddr,

		"gemini.api_key":             "",
		"gemini.model":               DefaultGeminiModel,
		"gemini.temperature":         DefaultGeminiTemperature,
		"gemini.system_instruction":  "Answer briefly. You are replying inside a chat.",
		"gemini.max_retries":         DefaultGeminiMaxRetries,
		"gemini.retry_delay_seconds": DefaultGeminiRetryDelay,

		"scheduler.tasks": map[string]any{
			TaskStatusHeartbeat: map[string]any{"enabled": true, "schedule": "*/30 * * * * *"},
			TaskSQLMaintenance:  map[string]any{"enabled": true, "schedule": "0 0 4 * * *"},
		},
	}
}
