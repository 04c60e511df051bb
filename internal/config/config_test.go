package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/ion/internal/config"
	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/protocol"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"."}, cfg.Dispatch.Prefixes)
	assert.Equal(t, config.BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, config.DefaultDBPath, cfg.Database.Path)
	assert.Equal(t, protocol.DefaultRetryPolicy(), cfg.Telegram.Retry.Policy())
	assert.True(t, cfg.Control.Enabled)
	assert.Equal(t, config.DefaultControlAddr, cfg.Control.Addr)
	assert.Empty(t, cfg.Gemini.APIKey)

	require.Contains(t, cfg.Scheduler.Tasks, config.TaskStatusHeartbeat)
	assert.True(t, cfg.Scheduler.Tasks[config.TaskStatusHeartbeat].Enabled)
	assert.Equal(t, "0 0 4 * * *", cfg.Scheduler.Tasks[config.TaskSQLMaintenance].Schedule)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  json: true
dispatch:
  prefixes: ["!", "/"]
session:
  backend: config
  account_id: 123
  account_secret: abc
  token: from-file
telegram:
  retry:
    attempts: 3
`)
	t.Setenv("ION_SESSION_TOKEN", "from-env")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []string{"!", "/"}, cfg.Dispatch.Prefixes)
	assert.Equal(t, config.BackendConfig, cfg.Session.Backend)
	assert.Equal(t, int64(123), cfg.Session.Inline().AccountID)
	assert.Equal(t, "abc", cfg.Session.Inline().AccountSecret)
	assert.Equal(t, "from-env", cfg.Session.Inline().Token)
	assert.Equal(t, uint(3), cfg.Telegram.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Telegram.Retry.Delay, "unset nested keys keep defaults")
}

func TestLoadConfig_EmptyPrefixes(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  prefixes: []
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Dispatch.Prefixes)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad log level", body: "log:\n  level: loud\n"},
		{name: "unknown backend", body: "session:\n  backend: etcd\n"},
		{name: "zero retry attempts", body: "telegram:\n  retry:\n    attempts: 0\n"},
		{name: "control enabled without addr", body: "control:\n  enabled: true\n  addr: \"\"\n"},
		{name: "badger without path", body: "session:\n  backend: badger\nsecretstore:\n  path: \"\"\n"},
		{name: "enabled task without schedule", body: "scheduler:\n  tasks:\n    status_heartbeat:\n      enabled: true\n      schedule: \"\"\n"},
		{name: "malformed yaml", body: "log: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, errs.CodeConfig, errs.Code(err))
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	cfg.Dispatch.Prefixes = []string{".", "!"}
	cfg.Telegram.Retry.Attempts = 7
	cfg.Session.Backend = config.BackendConfig
	cfg.Session.AccountID = 99

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
