package lavalink

import (
	"encoding/json"
	"time"

	"vibebot/backend/internal/music"
)

// Wire types of the Lavalink v4 protocol

type trackInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	ISRC       *string `json:"isrc"`
	SourceName string  `json:"sourceName"`
}

type wireTrack struct {
	Encoded  string          `json:"encoded"`
	Info     trackInfo       `json:"info"`
	UserData json.RawMessage `json:"userData,omitempty"`
}

type userData struct {
	Nonce uint64 `json:"nonce"`
}

func (t *wireTrack) nonce() uint64 {
	if t == nil || len(t.UserData) == 0 {
		return 0
	}
	var ud userData
	if err := json.Unmarshal(t.UserData, &ud); err != nil {
		return 0
	}
	return ud.Nonce
}

func (t wireTrack) toTrack() music.Track {
	out := music.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		Duration:   time.Duration(t.Info.Length) * time.Millisecond,
		IsStream:   t.Info.IsStream,
		IsSeekable: t.Info.IsSeekable,
		SourceName: t.Info.SourceName,
	}
	if t.Info.URI != nil {
		out.URI = *t.Info.URI
	}
	if t.Info.ArtworkURL != nil {
		out.ArtworkURL = *t.Info.ArtworkURL
	}
	if out.IsStream {
		out.Duration = 0
	}
	return out
}

type loadResponse struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []wireTrack `json:"tracks"`
}

type exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type errorResponse struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

type playerTrack struct {
	Encoded  *string   `json:"encoded"`
	UserData *userData `json:"userData,omitempty"`
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type updatePlayer struct {
	Track    *playerTrack `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Voice    *voiceState  `json:"voice,omitempty"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// message is any websocket frame; fields are filled per op and event type
type message struct {
	Op string `json:"op"`

	// ready
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`

	// playerUpdate and event
	GuildID string       `json:"guildId"`
	State   *playerState `json:"state"`

	// event
	Type        string     `json:"type"`
	Track       *wireTrack `json:"track"`
	Reason      string     `json:"reason"`
	Exception   *exception `json:"exception"`
	ThresholdMs int64      `json:"thresholdMs"`
	Code        int        `json:"code"`
	ByRemote    bool       `json:"byRemote"`

	// stats
	Players        int   `json:"players"`
	PlayingPlayers int   `json:"playingPlayers"`
	Uptime         int64 `json:"uptime"`
}

// Stats is the last stats frame reported by the node
type Stats struct {
	Players        int
	PlayingPlayers int
	Uptime         time.Duration
}
