package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "skin2_session", cfg.Server.CookieName)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, 60*time.Second, cfg.Chat.ReplyTimeout)
	assert.False(t, cfg.Chat.StrictOrdering)
	assert.Zero(t, cfg.Chat.SessionIdleTTL)
	assert.Equal(t, "static", cfg.Model.Type)
	assert.Equal(t, "data.db", cfg.Data.HospitalDB)
	assert.Equal(t, "data_skin.db", cfg.Data.SkinDB)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"no cookie name", func(c *Config) { c.Server.CookieName = "" }, "cookie_name"},
		{"zero history", func(c *Config) { c.Chat.HistoryLimit = 0 }, "history_limit"},
		{"odd history", func(c *Config) { c.Chat.HistoryLimit = 7 }, "even"},
		{"negative timeout", func(c *Config) { c.Chat.ReplyTimeout = -time.Second }, "reply_timeout"},
		{"negative ttl", func(c *Config) { c.Chat.SessionIdleTTL = -time.Second }, "session_idle_ttl"},
		{"unknown model", func(c *Config) { c.Model.Type = "gemini" }, "invalid model type"},
		{"openai without key", func(c *Config) { c.Model.Type = "openai" }, "api_key"},
		{"anthropic without name", func(c *Config) {
			c.Model.Type = "anthropic"
			c.Model.APIKey = "sk-ant-x"
			c.Model.Name = ""
		}, "model name"},
		{"no hospital db", func(c *Config) { c.Data.HospitalDB = "" }, "hospital_db"},
		{"no skin db", func(c *Config) { c.Data.SkinDB = "" }, "skin_db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigStringMasksAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.APIKey = "sk-very-secret"

	out := cfg.String()
	assert.NotContains(t, out, "sk-very-secret")
	assert.Contains(t, out, "****")
	assert.Equal(t, "sk-very-secret", cfg.Model.APIKey)
}

func TestConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8081
	assert.Equal(t, "127.0.0.1:8081", cfg.Addr())
}
