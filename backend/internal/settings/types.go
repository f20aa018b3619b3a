// Package settings holds the durable per-guild music configuration.
package settings

import (
	"sort"
	"time"
)

const (
	// MinVolume and MaxVolume bound every stored or applied volume
	MinVolume = 0
	MaxVolume = 200

	// MinIdleTimeoutSecs and MaxIdleTimeoutSecs bound the auto-disconnect timer
	MinIdleTimeoutSecs = 10
	MaxIdleTimeoutSecs = 3600

	// MaxPlaylists is the number of saved playlists a guild may keep
	MaxPlaylists = 10

	// DefaultVolume is applied when a guild never configured one
	DefaultVolume = 100
)

// LoopMode is the persisted loop default
type LoopMode string

const (
	LoopNone  LoopMode = "none"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

// Valid reports whether m is a known loop mode
func (m LoopMode) Valid() bool {
	switch m {
	case LoopNone, LoopTrack, LoopQueue:
		return true
	}
	return false
}

// Playlist is a saved playlist shortcut rendered as a button on the now-playing message
type Playlist struct {
	URL           string `json:"url"`
	ButtonLabel   string `json:"button_label,omitempty"`
	Emoji         string `json:"emoji,omitempty"`
	ShuffleOnPlay bool   `json:"shuffle_on_play,omitempty"`
}

// NamedPlaylist pairs a playlist with its name for ordered listings
type NamedPlaylist struct {
	Name string
	Playlist
}

// GuildConfig is the durable configuration of one guild
type GuildConfig struct {
	GuildID             string              `json:"guild_id"`
	MusicChannelID      string              `json:"music_channel_id,omitempty"`
	NowPlayingMessageID string              `json:"now_playing_message_id,omitempty"`
	WebhookID           string              `json:"webhook_id,omitempty"`
	WebhookToken        string              `json:"webhook_token,omitempty"`
	DefaultVolume       int                 `json:"default_volume"`
	DefaultAutoplay     bool                `json:"default_autoplay"`
	DefaultLoopMode     LoopMode            `json:"default_loop_mode"`
	AutoDisconnect      bool                `json:"auto_disconnect"`
	IdleTimeoutSecs     int                 `json:"idle_timeout_secs"`
	Playlists           map[string]Playlist `json:"playlists,omitempty"`
	JoinRoleID          string              `json:"join_role_id,omitempty"` // assigned to new members
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewGuildConfig returns the defaults for a guild that never stored settings
func NewGuildConfig(guildID string, idleTimeoutSecs int) *GuildConfig {
	return &GuildConfig{
		GuildID:         guildID,
		DefaultVolume:   DefaultVolume,
		DefaultLoopMode: LoopNone,
		AutoDisconnect:  true,
		IdleTimeoutSecs: ClampIdleTimeout(idleTimeoutSecs),
		Playlists:       make(map[string]Playlist),
	}
}

// Clone returns a deep copy so callers never share the playlists map
func (c *GuildConfig) Clone() *GuildConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Playlists = make(map[string]Playlist, len(c.Playlists))
	for name, pl := range c.Playlists {
		out.Playlists[name] = pl
	}
	return &out
}

// HasSurface reports whether a now-playing message binding is stored
func (c *GuildConfig) HasSurface() bool {
	return c.MusicChannelID != "" && c.NowPlayingMessageID != ""
}

// SortedPlaylists returns the playlists ordered by name
func (c *GuildConfig) SortedPlaylists() []NamedPlaylist {
	out := make([]NamedPlaylist, 0, len(c.Playlists))
	for name, pl := range c.Playlists {
		out = append(out, NamedPlaylist{Name: name, Playlist: pl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// normalize clamps ranges and fills zero values after load or mutation
func (c *GuildConfig) normalize() {
	c.DefaultVolume = ClampVolume(c.DefaultVolume)
	c.IdleTimeoutSecs = ClampIdleTimeout(c.IdleTimeoutSecs)
	if !c.DefaultLoopMode.Valid() {
		c.DefaultLoopMode = LoopNone
	}
	if c.Playlists == nil {
		c.Playlists = make(map[string]Playlist)
	}
}

// ClampVolume bounds v to [MinVolume, MaxVolume]
func ClampVolume(v int) int {
	if v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}

// ClampIdleTimeout bounds secs to [MinIdleTimeoutSecs, MaxIdleTimeoutSecs]
func ClampIdleTimeout(secs int) int {
	if secs < MinIdleTimeoutSecs {
		return MinIdleTimeoutSecs
	}
	if secs > MaxIdleTimeoutSecs {
		return MaxIdleTimeoutSecs
	}
	return secs
}
