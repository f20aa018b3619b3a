package music

import (
	"context"
	"time"

	"vibebot/backend/internal/settings"
)

// LoadType is the shape of a node search result
type LoadType string

const (
	LoadTrack    LoadType = "track"
	LoadPlaylist LoadType = "playlist"
	LoadSearch   LoadType = "search"
	LoadEmpty    LoadType = "empty"
	LoadError    LoadType = "error"
)

// LoadResult is what the node returns for a query or URL
type LoadResult struct {
	Type         LoadType
	Tracks       []Track
	PlaylistName string
	Error        string
}

// VoiceServer is the voice handshake forwarded to the node
type VoiceServer struct {
	Token     string
	Endpoint  string
	SessionID string
}

// PlayOptions accompany a play command. Nonce is echoed back on the
// node events of that play so stale events can be told apart.
type PlayOptions struct {
	Volume int
	Paused bool
	Nonce  uint64
}

// Node is the streaming node that resolves and plays tracks
type Node interface {
	Available() bool
	LoadTracks(ctx context.Context, identifier string) (*LoadResult, error)
	Play(ctx context.Context, guildID string, track Track, opts PlayOptions) error
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string, paused bool) error
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	UpdateVoice(ctx context.Context, guildID string, voice VoiceServer) error
	Destroy(ctx context.Context, guildID string) error
}

// VoiceGateway joins and leaves voice channels on the chat platform
type VoiceGateway interface {
	// CheckJoin reports ErrPermissionDenied or ErrChannelFull before a join
	CheckJoin(guildID, channelID string) error
	Join(guildID, channelID string) error
	Leave(guildID string) error
}

// Recommender returns a search query for a track similar to the seed,
// or "" when it has nothing to offer.
type Recommender interface {
	Recommend(ctx context.Context, title, artist string) (string, error)
}

// Searcher resolves a free-text query into the best matching track
type Searcher interface {
	SearchOne(ctx context.Context, query, requesterID string) (Track, error)
}

// Notifier reflects session changes on the now-playing surface.
// Implementations must not block on network I/O.
type Notifier interface {
	Refresh(guildID string)
	RefreshControls(guildID string)
	Notice(guildID, message string)
}

// ConfigSource provides the per-guild defaults
type ConfigSource interface {
	Get(guildID string) *settings.GuildConfig
}

// Observer receives counters for the metrics layer
type Observer interface {
	SessionsActive(n int)
	NodeEvent(kind string)
	Autoplay(result string)
	IdleDisconnect()
}

type nopNotifier struct{}

func (nopNotifier) Refresh(string) {}
func (nopNotifier) RefreshControls(string) {}
func (nopNotifier) Notice(string, string) {}

type nopObserver struct{}

func (nopObserver) SessionsActive(int) {}
func (nopObserver) NodeEvent(string) {}
func (nopObserver) Autoplay(string) {}
func (nopObserver) IdleDisconnect() {}

// NodeEventType enumerates the push events of the streaming node
type NodeEventType string

const (
	NodeConnected    NodeEventType = "node_connected"
	NodeDisconnected NodeEventType = "node_disconnected"
	TrackStarted     NodeEventType = "track_started"
	TrackEnded       NodeEventType = "track_ended"
	TrackException   NodeEventType = "track_exception"
	TrackStuck       NodeEventType = "track_stuck"
	PlayerUpdate     NodeEventType = "player_update"
	VoiceClosed      NodeEventType = "voice_closed"
)

// EndReason tells why a track ended
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// MayStartNext reports whether the queue should advance after this reason
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed
}

// NodeEvent is a push notification from the streaming node
type NodeEvent struct {
	Type     NodeEventType
	GuildID  string
	Encoded  string
	Nonce    uint64
	Reason   EndReason
	Message  string
	Position time.Duration
}
