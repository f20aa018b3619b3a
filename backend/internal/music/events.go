package music

import (
	"fmt"

	"go.uber.org/zap"
)

// HandleNodeEvent routes a streaming node event. Events for guilds
// without a session are dropped.
func (r *Registry) HandleNodeEvent(ev NodeEvent) {
	r.d.observer.NodeEvent(string(ev.Type))

	switch ev.Type {
	case NodeConnected:
		r.d.logger.Info("Streaming node connected")
		for _, s := range r.Sessions() {
			s.resume()
		}
		return
	case NodeDisconnected:
		r.d.logger.Warn("Streaming node disconnected", zap.String("reason", ev.Message))
		return
	}

	s, ok := r.Get(ev.GuildID)
	if !ok {
		r.d.logger.Debug("Dropping node event for unknown guild",
			zap.String("guild_id", ev.GuildID),
			zap.String("type", string(ev.Type)))
		return
	}
	s.HandleNodeEvent(ev)
}

// HandleVoiceState forwards the bot's voice state to the guild's session
func (r *Registry) HandleVoiceState(guildID, sessionID, channelID string) {
	if s, ok := r.Get(guildID); ok {
		s.HandleVoiceState(sessionID, channelID)
	}
}

// HandleVoiceServer forwards a voice server update to the guild's session
func (r *Registry) HandleVoiceServer(guildID, token, endpoint string) {
	if s, ok := r.Get(guildID); ok {
		s.HandleVoiceServer(token, endpoint)
	}
}

// HandleNodeEvent applies an event addressed to this guild
func (s *Session) HandleNodeEvent(ev NodeEvent) {
	switch ev.Type {
	case TrackStarted:
		s.onTrackStart(ev)
	case TrackEnded:
		s.onTrackEnd(ev)
	case TrackStuck:
		s.logger.Warn("Track stuck", zap.String("encoded", ev.Encoded))
		ev.Reason = EndLoadFailed
		s.onTrackEnd(ev)
	case TrackException:
		s.logger.Warn("Track exception", zap.String("message", ev.Message))
		s.d.notifier.Notice(s.guildID, fmt.Sprintf("Playback failed: %s", ev.Message))
	case PlayerUpdate:
		s.onPlayerUpdate(ev)
	case VoiceClosed:
		s.logger.Info("Node voice socket closed", zap.String("reason", ev.Message))
	}
}

// matchesLocked reports whether ev belongs to the current play
func (s *Session) matchesLocked(ev NodeEvent) bool {
	if s.current == nil {
		return false
	}
	if ev.Nonce != 0 {
		return ev.Nonce == s.gen
	}
	return ev.Encoded == s.current.Encoded
}

func (s *Session) onTrackStart(ev NodeEvent) {
	s.mu.Lock()
	if !s.matchesLocked(ev) {
		s.mu.Unlock()
		return
	}
	s.position = 0
	s.positionAt = s.d.clock.Now()
	title := s.current.Title
	s.mu.Unlock()

	s.logger.Debug("Track started", zap.String("title", title))
	s.d.idle.Stop(s)
	s.d.notifier.Refresh(s.guildID)
}

func (s *Session) onTrackEnd(ev NodeEvent) {
	if !ev.Reason.MayStartNext() {
		return
	}

	s.mu.Lock()
	if !s.matchesLocked(ev) {
		s.mu.Unlock()
		s.logger.Debug("Ignoring end of a track that is no longer current")
		return
	}
	next, gen := s.advanceLocked(ev.Reason == EndFinished)
	s.mu.Unlock()

	if next != nil {
		s.play(*next, gen)
	} else {
		s.onQueueEmptied(gen)
	}
	s.d.notifier.Refresh(s.guildID)
}

func (s *Session) onPlayerUpdate(ev NodeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.position = ev.Position
	s.positionAt = s.d.clock.Now()
}
