package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, time.Minute, cfg.Archive.Interval)
	assert.Equal(t, time.Minute, cfg.Archive.MinRest, "min_rest defaults to the interval")
	assert.Equal(t, 5*time.Second, cfg.Console.PollInterval)
	assert.Equal(t, 800*time.Millisecond, cfg.Console.SendDelay)
	assert.Equal(t, 3*time.Second, cfg.Console.ToastTTL)
	assert.Equal(t, "webhook", cfg.Delivery.Kind)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
archive:
  interval: 10m
  min_rest: 30m
delivery:
  kind: smtp
smtp:
  addr: mail.example.com:587
  from: Support <support@example.com>
console:
  send_delay: 2s
`), 0o600))
	t.Setenv("REPLYDESK_LOG_LEVEL", "debug")
	t.Setenv("REPLYDESK_CONSOLE_LEDGER", "redis")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Archive.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Archive.MinRest)
	assert.Equal(t, "smtp", cfg.Delivery.Kind)
	assert.Equal(t, "Support <support@example.com>", cfg.SMTP.From)
	assert.Equal(t, 2*time.Second, cfg.Console.SendDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Console.Ledger)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"store driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"delivery kind", func(c *Config) { c.Delivery.Kind = "fax" }, "delivery.kind"},
		{"smtp from", func(c *Config) { c.Delivery.Kind = "smtp" }, "smtp.from"},
		{"gmail from", func(c *Config) { c.Delivery.Kind = "gmail" }, "gmail.from"},
		{"ledger", func(c *Config) { c.Console.Ledger = "disk" }, "console.ledger"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"poll interval", func(c *Config) { c.Console.PollInterval = 0 }, "poll_interval"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	assert.NoError(t, base.Validate())
}
