package config

import (
	"fmt"
	"strings"

	apperrors "vibebot/backend/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// BackendJSON stores guild settings in a single JSON file
	BackendJSON = "json"
	// BackendSQLite stores guild settings in a SQLite database
	BackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// App
	Env      string
	LogLevel string
	HTTPAddr string

	// Discord
	DiscordBotToken string

	// Lavalink
	LavalinkHost     string
	LavalinkPort     int
	LavalinkPassword string
	LavalinkSecure   bool
	LavalinkNodeName string
	SearchProvider   string // default search prefix for free-text queries, e.g. ytsearch

	// Recommendations
	LastFMAPIKey string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string

	// Settings storage
	SettingsBackend string
	SettingsPath    string

	// Playback
	DefaultIdleTimeoutSecs int
	ArtworkCacheSize       int
	SurfaceEditsPerSecond  float64
	SurfaceImageURL        string // banner of the idle now-playing message
	InviteLink             string // /invite target, generated from the bot id when empty
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("discord_bot_token", "")
	v.SetDefault("lavalink_host", "localhost")
	v.SetDefault("lavalink_port", 2333)
	v.SetDefault("lavalink_password", "youshallnotpass")
	v.SetDefault("lavalink_secure", false)
	v.SetDefault("lavalink_node_name", "music-node")
	v.SetDefault("search_provider", "ytsearch")
	v.SetDefault("lastfm_api_key", "")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", "openrouter/anthropic/claude-3.5-sonnet")
	v.SetDefault("settings_backend", BackendJSON)
	v.SetDefault("settings_path", "data/music_data.json")
	v.SetDefault("default_idle_timeout_secs", 300)
	v.SetDefault("artwork_cache_size", 512)
	v.SetDefault("surface_edits_per_second", 1.0)
	v.SetDefault("surface_image_url", "")
	v.SetDefault("invite_link", "")
}

// Load reads configuration from environment variables and validates it.
// v may carry flag bindings from the CLI; nil uses a fresh instance.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Read(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Read resolves every key without validating. Offline tooling that needs
// no Discord token uses it directly.
func Read(v *viper.Viper) *Config {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Env:                    v.GetString("env"),
		LogLevel:               v.GetString("log_level"),
		HTTPAddr:               v.GetString("http_addr"),
		DiscordBotToken:        v.GetString("discord_bot_token"),
		LavalinkHost:           v.GetString("lavalink_host"),
		LavalinkPort:           v.GetInt("lavalink_port"),
		LavalinkPassword:       v.GetString("lavalink_password"),
		LavalinkSecure:         v.GetBool("lavalink_secure"),
		LavalinkNodeName:       v.GetString("lavalink_node_name"),
		SearchProvider:         v.GetString("search_provider"),
		LastFMAPIKey:           v.GetString("lastfm_api_key"),
		LLMBaseURL:             v.GetString("llm_base_url"),
		LLMAPIKey:              v.GetString("llm_api_key"),
		LLMModel:               v.GetString("llm_model"),
		SettingsBackend:        strings.ToLower(v.GetString("settings_backend")),
		SettingsPath:           v.GetString("settings_path"),
		DefaultIdleTimeoutSecs: v.GetInt("default_idle_timeout_secs"),
		ArtworkCacheSize:       v.GetInt("artwork_cache_size"),
		SurfaceEditsPerSecond:  v.GetFloat64("surface_edits_per_second"),
		SurfaceImageURL:        v.GetString("surface_image_url"),
		InviteLink:             v.GetString("invite_link"),
	}
	return cfg
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.DiscordBotToken == "" {
		return apperrors.NewConfigMissingRequired("DISCORD_BOT_TOKEN")
	}
	if c.LavalinkHost == "" {
		return apperrors.NewConfigMissingRequired("LAVALINK_HOST")
	}
	if c.LavalinkPort <= 0 || c.LavalinkPort > 65535 {
		return apperrors.NewConfigValidationFailed("LAVALINK_PORT", "must be a valid port")
	}
	if c.SettingsBackend != BackendJSON && c.SettingsBackend != BackendSQLite {
		return apperrors.NewConfigValidationFailed("SETTINGS_BACKEND", "must be json or sqlite")
	}
	if c.SettingsPath == "" {
		return apperrors.NewConfigMissingRequired("SETTINGS_PATH")
	}
	if c.DefaultIdleTimeoutSecs < 10 || c.DefaultIdleTimeoutSecs > 3600 {
		return apperrors.NewConfigValidationFailed("DEFAULT_IDLE_TIMEOUT_SECS", "must be between 10 and 3600")
	}
	if c.SurfaceEditsPerSecond <= 0 {
		return apperrors.NewConfigValidationFailed("SURFACE_EDITS_PER_SECOND", "must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LavalinkBaseURL returns the REST base URL of the configured node
func (c *Config) LavalinkBaseURL() string {
	scheme := "http"
	if c.LavalinkSecure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.LavalinkHost, c.LavalinkPort)
}

// LavalinkWebsocketURL returns the event stream URL of the configured node
func (c *Config) LavalinkWebsocketURL() string {
	scheme := "ws"
	if c.LavalinkSecure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, c.LavalinkHost, c.LavalinkPort)
}
