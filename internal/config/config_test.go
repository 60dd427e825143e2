package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 5000, cfg.Database.BusyTimeoutMs)
	assert.Equal(t, "WAL", cfg.Database.JournalMode)
	assert.Equal(t, "NORMAL", cfg.Database.Synchronous)
	assert.True(t, cfg.Database.ForeignKeys)
	assert.False(t, cfg.Database.NFCCollation)
	assert.Nil(t, cfg.Backup)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDecodeOverrides(t *testing.T) {
	cfg, err := Decode([]byte(`
database:
  path: /tmp/app.db
  busy_timeout_ms: 250
  journal_mode: DELETE
  foreign_keys: false
  nfc_collation: true
backup:
  bucket: snapshots
  prefix: nightly/
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/app.db", cfg.Database.Path)
	assert.Equal(t, 250, cfg.Database.BusyTimeoutMs)
	assert.Equal(t, "DELETE", cfg.Database.JournalMode)
	assert.Equal(t, "NORMAL", cfg.Database.Synchronous)
	assert.False(t, cfg.Database.ForeignKeys)
	assert.True(t, cfg.Database.NFCCollation)
	require.NotNil(t, cfg.Backup)
	assert.Equal(t, "snapshots", cfg.Backup.Bucket)
	assert.Equal(t, "nightly/", cfg.Backup.Prefix)
	assert.Equal(t, "", cfg.Backup.Region)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestDecodeRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":     "database:\n  bogus: 1\n",
		"bad journal mode":  "database:\n  journal_mode: sideways\n",
		"negative timeout":  "database:\n  busy_timeout_ms: -1\n",
		"empty path":        "database:\n  path: \"\"\n",
		"backup w/o bucket": "backup:\n  prefix: x\n",
		"bad log level":     "log:\n  level: loud\n",
		"not yaml mapping":  "- a\n- b\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestConnOptions(t *testing.T) {
	cfg := Default()
	cfg.Database.BusyTimeoutMs = 1500

	opts := cfg.ConnOptions(nil)
	assert.Equal(t, 1500*time.Millisecond, opts.BusyTimeout)
	assert.Equal(t, "WAL", opts.JournalMode)
	assert.Equal(t, "NORMAL", opts.Synchronous)
	assert.True(t, opts.ForeignKeys)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lvsqlite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
