package httpapi

import "vibebot/backend/internal/music"

type trackView struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	URI         string `json:"uri"`
	Source      string `json:"source"`
	DurationMs  int64  `json:"duration_ms"`
	IsStream    bool   `json:"is_stream"`
	RequesterID string `json:"requester_id,omitempty"`
}

type sessionView struct {
	GuildID    string      `json:"guild_id"`
	State      string      `json:"state"`
	ChannelID  string      `json:"channel_id,omitempty"`
	Current    *trackView  `json:"current,omitempty"`
	Queue      []trackView `json:"queue"`
	Paused     bool        `json:"paused"`
	Volume     int         `json:"volume"`
	Loop       string      `json:"loop"`
	Autoplay   bool        `json:"autoplay"`
	Shuffle    bool        `json:"shuffle"`
	PositionMs int64       `json:"position_ms"`
}

func newTrackView(t music.Track) trackView {
	return trackView{
		Title:       t.Title,
		Author:      t.Author,
		URI:         t.URI,
		Source:      t.SourceName,
		DurationMs:  t.Duration.Milliseconds(),
		IsStream:    t.IsStream,
		RequesterID: t.RequesterID,
	}
}

func newSessionView(snap music.Snapshot) sessionView {
	v := sessionView{
		GuildID:    snap.GuildID,
		State:      snap.State.String(),
		ChannelID:  snap.ChannelID,
		Queue:      make([]trackView, 0, len(snap.Queue)),
		Paused:     snap.Paused,
		Volume:     snap.Volume,
		Loop:       snap.Loop.String(),
		Autoplay:   snap.Autoplay,
		Shuffle:    snap.Shuffle,
		PositionMs: snap.Position.Milliseconds(),
	}
	if snap.Current != nil {
		cur := newTrackView(*snap.Current)
		v.Current = &cur
	}
	for _, t := range snap.Queue {
		v.Queue = append(v.Queue, newTrackView(t))
	}
	return v
}
