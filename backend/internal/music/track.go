package music

import (
	"fmt"
	"time"

	"vibebot/backend/internal/settings"
)

// AutoplayRequester marks tracks enqueued by autoplay instead of a user
const AutoplayRequester = "autoplay"

// Track is a resolved, playable track. It is immutable once resolved
// apart from the requester annotation applied before enqueue.
type Track struct {
	Encoded     string // opaque node handle
	Identifier  string
	Title       string
	Author      string
	URI         string
	Duration    time.Duration
	IsStream    bool
	IsSeekable  bool
	SourceName  string
	ArtworkURL  string
	RequesterID string
}

// WithRequester returns a copy of t annotated with the requesting user
func (t Track) WithRequester(userID string) Track {
	t.RequesterID = userID
	return t
}

// DurationText formats the length as M:SS or H:MM:SS, or LIVE for streams
func (t Track) DurationText() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration formats a duration as M:SS or H:MM:SS
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// ConnectionState is the voice connection lifecycle of a session
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// LoopMode controls what happens when the current track ends
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "none"
	}
}

// Next cycles None -> Track -> Queue -> None
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopNone:
		return LoopTrack
	case LoopTrack:
		return LoopQueue
	default:
		return LoopNone
	}
}

// LoopModeFromSetting converts the persisted default
func LoopModeFromSetting(m settings.LoopMode) LoopMode {
	switch m {
	case settings.LoopTrack:
		return LoopTrack
	case settings.LoopQueue:
		return LoopQueue
	default:
		return LoopNone
	}
}

// Setting converts m to its persisted form
func (m LoopMode) Setting() settings.LoopMode {
	switch m {
	case LoopTrack:
		return settings.LoopTrack
	case LoopQueue:
		return settings.LoopQueue
	default:
		return settings.LoopNone
	}
}
