package config

import (
	"testing"

	apperrors "vibebot/backend/pkg/errors"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.LavalinkHost)
	assert.Equal(t, 2333, cfg.LavalinkPort)
	assert.Equal(t, "ytsearch", cfg.SearchProvider)
	assert.Equal(t, BackendJSON, cfg.SettingsBackend)
	assert.Equal(t, 300, cfg.DefaultIdleTimeoutSecs)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "http://localhost:2333", cfg.LavalinkBaseURL())
	assert.Equal(t, "ws://localhost:2333/v4/websocket", cfg.LavalinkWebsocketURL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("LAVALINK_SECURE", "true")
	t.Setenv("LAVALINK_HOST", "node.example")
	t.Setenv("LAVALINK_PORT", "443")
	t.Setenv("SETTINGS_BACKEND", "SQLite")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.SettingsBackend)
	assert.Equal(t, "https://node.example:443", cfg.LavalinkBaseURL())
	assert.Equal(t, "wss://node.example:443/v4/websocket", cfg.LavalinkWebsocketURL())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DiscordBotToken:        "token",
			LavalinkHost:           "localhost",
			LavalinkPort:           2333,
			SettingsBackend:        BackendJSON,
			SettingsPath:           "data.json",
			DefaultIdleTimeoutSecs: 300,
			SurfaceEditsPerSecond:  1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing token", func(c *Config) { c.DiscordBotToken = "" }, true},
		{"bad backend", func(c *Config) { c.SettingsBackend = "redis" }, true},
		{"idle timeout too short", func(c *Config) { c.DefaultIdleTimeoutSecs = 5 }, true},
		{"idle timeout too long", func(c *Config) { c.DefaultIdleTimeoutSecs = 3601 }, true},
		{"bad port", func(c *Config) { c.LavalinkPort = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("SURFACE_IMAGE_URL", "https://example.com/banner.png")
	t.Setenv("INVITE_LINK", "https://discord.com/oauth2/authorize?client_id=1")

	cfg := Read(viper.New())
	assert.Empty(t, cfg.DiscordBotToken)
	assert.Equal(t, "https://example.com/banner.png", cfg.SurfaceImageURL)
	assert.Equal(t, "https://discord.com/oauth2/authorize?client_id=1", cfg.InviteLink)

	_, err := Load(viper.New())
	assert.Error(t, err)
}
