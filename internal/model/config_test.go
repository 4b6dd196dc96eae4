package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, def.API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, SessionBackendKeyring, cfg.Storage.SessionBackend)
	assert.Equal(t, 50, cfg.Display.PageSize)
	assert.Equal(t, 300, cfg.Sync.IntervalSec)
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://mail.example.com
storage:
  path: /tmp/state.db
  session_backend: sqlite
sync:
  interval_sec: 0
display:
  page_size: 25
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://mail.example.com", cfg.API.BaseURL)
	assert.Equal(t, "/tmp/state.db", cfg.Storage.Path)
	assert.Equal(t, SessionBackendSQLite, cfg.Storage.SessionBackend)
	assert.Equal(t, 0, cfg.Sync.IntervalSec)
	assert.Equal(t, 25, cfg.Display.PageSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, ".", cfg.Display.ExportDir)
}

func TestLoadConfig_EnvOverridesBaseURL(t *testing.T) {
	t.Setenv("MAILCLIENT_API_URL", "http://10.0.0.5:9000")
	path := writeConfig(t, "api:\n  base_url: http://ignored\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.API.BaseURL)
}

func TestLoadConfig_ClampsPageSize(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "display:\n  page_size: 500\n"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Display.PageSize)

	cfg, err = LoadConfig(writeConfig(t, "display:\n  page_size: -1\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Display.PageSize)
}

func TestLoadConfig_RejectsUnknownSessionBackend(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "storage:\n  session_backend: cookie\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_backend")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "api: [unterminated\n"))
	require.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.API.BaseURL = "http://backend:8000"
	cfg.Storage.SessionBackend = SessionBackendSQLite
	cfg.Display.PageSize = 20

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API, loaded.API)
	assert.Equal(t, cfg.Storage, loaded.Storage)
	assert.Equal(t, cfg.Display, loaded.Display)
}
