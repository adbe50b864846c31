package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
roles:
  secretary: "ou_sekdep"
  treasurer: "ou_bendahara"
lark:
  app_id: cli_test
  app_secret: secret
poller:
  interval: 15s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ou_sekdep", cfg.Roles.Secretary)
	assert.Equal(t, "ou_bendahara", cfg.Roles.Treasurer)
	assert.Equal(t, 15*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 3, cfg.Poller.CASRetries)
	assert.Equal(t, time.Minute, cfg.Poller.SettleGrace)
	assert.Equal(t, 15*time.Second, cfg.Transport.SendTimeout)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "Requests", cfg.Spreadsheet.Sheet)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SEKDEP_NUMBER", "111")
	t.Setenv("BENDAHARA_NUMBER", "222")
	t.Setenv("AUTH_TOKEN", "s3cret")
	t.Setenv("POLL_INTERVAL", "2m")
	t.Setenv("LARK_APP_ID", "cli_env")
	t.Setenv("LARK_APP_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "111", cfg.Roles.Secretary)
	assert.Equal(t, "222", cfg.Roles.Treasurer)
	assert.Equal(t, "s3cret", cfg.Admin.AuthToken)
	assert.Equal(t, 2*time.Minute, cfg.Poller.Interval)
	assert.Equal(t, "cli_env", cfg.Lark.AppID)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Roles:       RolesConfig{Secretary: "1", Treasurer: "2"},
			Lark:        LarkConfig{AppID: "cli_x", AppSecret: "s"},
			Session:     SessionConfig{Backend: "memory"},
			Spreadsheet: SpreadsheetConfig{Path: "requests.xlsx"},
			Database:    DatabaseConfig{Path: "bot.db"},
			Poller:      PollerConfig{Interval: time.Minute, CASRetries: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secretary", func(c *Config) { c.Roles.Secretary = "" }, "roles.secretary"},
		{"same actor for both roles", func(c *Config) { c.Roles.Treasurer = "1" }, "must be different"},
		{"lark without credentials", func(c *Config) { c.Lark.AppSecret = "" }, "lark.app_id"},
		{"unknown session backend", func(c *Config) { c.Session.Backend = "disk" }, "session.backend"},
		{"zero interval", func(c *Config) { c.Poller.Interval = 0 }, "poller.interval"},
		{"zero retries", func(c *Config) { c.Poller.CASRetries = 0 }, "poller.cas_retries"},
		{"negative settle grace", func(c *Config) { c.Poller.SettleGrace = -time.Second }, "poller.settle_grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
