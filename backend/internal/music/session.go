package music

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"go.uber.org/zap"
)

// connection is one voice connection attempt. It is torn down at most once.
type connection struct {
	channelID string
	sessionID string
	token     string
	endpoint  string

	ready     chan struct{}
	done      chan struct{}
	destroyed bool
}

func newConnection(channelID string) *connection {
	return &connection{
		channelID: channelID,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (c *connection) voiceServer() (VoiceServer, bool) {
	if c.sessionID == "" || c.token == "" || c.endpoint == "" {
		return VoiceServer{}, false
	}
	return VoiceServer{Token: c.token, Endpoint: c.endpoint, SessionID: c.sessionID}, true
}

// EnqueueResult describes where enqueued tracks landed
type EnqueueResult struct {
	Position int // 1-indexed queue position of the first track, 0 when it started playing
	Count    int
	Started  bool
	First    Track
}

// Snapshot is an immutable view of a session
type Snapshot struct {
	GuildID   string
	State     ConnectionState
	ChannelID string
	Current   *Track
	Previous  *Track
	Queue     []Track
	Paused    bool
	Volume    int
	Loop      LoopMode
	Autoplay  bool
	Shuffle   bool
	Position  time.Duration
}

// Playing reports whether a track is playing or paused
func (s Snapshot) Playing() bool {
	return s.Current != nil
}

// QueueDuration sums the current and queued non-stream tracks
func (s Snapshot) QueueDuration() time.Duration {
	var total time.Duration
	if s.Current != nil && !s.Current.IsStream {
		total += s.Current.Duration
	}
	for _, t := range s.Queue {
		if !t.IsStream {
			total += t.Duration
		}
	}
	return total
}

// Session is the playback state of one guild. State is mutated under mu;
// node I/O runs outside it under ioMu and is skipped once the playback
// generation it was issued for is stale.
type Session struct {
	guildID string
	d       *deps
	logger  *zap.Logger

	mu         sync.Mutex
	state      ConnectionState
	channelID  string
	conn       *connection
	queue      Queue
	current    *Track
	previous   *Track
	paused     bool
	volume     int
	loop       LoopMode
	autoplay   bool
	shuffle    bool
	destroyed  bool
	gen        uint64
	position   time.Duration
	positionAt time.Time
	history    *history
	rng        *rand.Rand

	ioMu sync.Mutex
}

func newSession(guildID string, d *deps) *Session {
	cfg := d.config.Get(guildID)
	return &Session{
		guildID:  guildID,
		d:        d,
		logger:   d.logger.With(zap.String("guild_id", guildID)),
		volume:   settings.ClampVolume(cfg.DefaultVolume),
		loop:     LoopModeFromSetting(cfg.DefaultLoopMode),
		autoplay: cfg.DefaultAutoplay,
		history:  newHistory(d.historySize),
		rng:      rand.New(rand.NewSource(d.clock.Now().UnixNano())),
	}
}

// GuildID returns the guild this session belongs to
func (s *Session) GuildID() string {
	return s.guildID
}

// State returns the connection state and bound voice channel
func (s *Session) State() (ConnectionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.channelID
}

// IsPlaying reports whether a track is playing or paused
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Snapshot copies the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GuildID:   s.guildID,
		State:     s.state,
		ChannelID: s.channelID,
		Queue:     s.queue.Tracks(),
		Paused:    s.paused,
		Volume:    s.volume,
		Loop:      s.loop,
		Autoplay:  s.autoplay,
		Shuffle:   s.shuffle,
		Position:  s.positionLocked(),
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	if s.previous != nil {
		prev := *s.previous
		snap.Previous = &prev
	}
	return snap
}

func (s *Session) checkAliveLocked() error {
	if s.destroyed {
		return apperrors.ErrSessionDestroyed
	}
	return nil
}

func (s *Session) checkConnectedLocked() error {
	if err := s.checkAliveLocked(); err != nil {
		return err
	}
	if s.state != Connected {
		return apperrors.ErrNotConnected
	}
	return nil
}

func (s *Session) checkPlayingLocked() error {
	if err := s.checkConnectedLocked(); err != nil {
		return err
	}
	if s.current == nil {
		return apperrors.ErrNothingPlaying
	}
	return nil
}

// RequestJoin connects to a voice channel and waits for the voice
// handshake to reach the node. Guild defaults are applied on success.
func (s *Session) RequestJoin(ctx context.Context, channelID string) error {
	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != Disconnected {
		s.mu.Unlock()
		return apperrors.ErrAlreadyConnected
	}
	s.mu.Unlock()

	if !s.d.node.Available() {
		return apperrors.ErrNoNode
	}
	if err := s.d.voice.CheckJoin(s.guildID, channelID); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != Disconnected {
		s.mu.Unlock()
		return apperrors.ErrAlreadyConnected
	}
	conn := newConnection(channelID)
	s.conn = conn
	s.state = Connecting
	s.channelID = channelID
	s.mu.Unlock()

	s.logger.Info("Joining voice channel", zap.String("channel_id", channelID))

	if err := s.d.voice.Join(s.guildID, channelID); err != nil {
		s.teardown("join failed")
		return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to join voice channel", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.d.joinTimeout)
	defer cancel()

	select {
	case <-conn.ready:
	case <-conn.done:
		return apperrors.ErrNotConnected
	case <-waitCtx.Done():
		if err := s.d.voice.Leave(s.guildID); err != nil {
			s.logger.Warn("Failed to leave voice after join timeout", zap.Error(err))
		}
		s.teardown("join timeout")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.ErrJoinTimeout
	}

	cfg := s.d.config.Get(s.guildID)

	s.mu.Lock()
	if s.conn != conn || s.state != Connected {
		s.mu.Unlock()
		return apperrors.ErrNotConnected
	}
	s.volume = settings.ClampVolume(cfg.DefaultVolume)
	s.autoplay = cfg.DefaultAutoplay
	s.loop = LoopModeFromSetting(cfg.DefaultLoopMode)
	s.mu.Unlock()

	s.logger.Info("Voice connection ready",
		zap.String("channel_id", channelID),
		zap.Int("volume", cfg.DefaultVolume))

	s.syncVolume()
	s.d.notifier.RefreshControls(s.guildID)
	return nil
}

// WaitConnected blocks while another caller's join is in progress. It
// returns nil once the voice connection is ready and ErrNotConnected when
// that join failed or none is running.
func (s *Session) WaitConnected(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	state, conn := s.state, s.conn
	s.mu.Unlock()

	switch {
	case state == Connected:
		return nil
	case state == Disconnected || conn == nil:
		return apperrors.ErrNotConnected
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.d.joinTimeout)
	defer cancel()

	select {
	case <-conn.ready:
		return nil
	case <-conn.done:
		return apperrors.ErrNotConnected
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.ErrJoinTimeout
	}
}

// HandleVoiceState applies the bot's own voice state. An empty channel
// means the bot left voice for whatever reason.
func (s *Session) HandleVoiceState(sessionID, channelID string) {
	if channelID == "" {
		s.ExternalDisconnect()
		return
	}

	s.mu.Lock()
	conn := s.conn
	if conn == nil || conn.destroyed {
		s.mu.Unlock()
		return
	}
	conn.sessionID = sessionID
	moved := s.state == Connected && s.channelID != channelID
	conn.channelID = channelID
	s.channelID = channelID
	vs, ok := conn.voiceServer()
	s.mu.Unlock()

	if moved {
		s.logger.Info("Moved to another voice channel", zap.String("channel_id", channelID))
		s.d.notifier.RefreshControls(s.guildID)
	}
	if ok {
		s.pushVoice(conn, vs)
	}
}

// HandleVoiceServer applies a voice server update
func (s *Session) HandleVoiceServer(token, endpoint string) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || conn.destroyed {
		s.mu.Unlock()
		return
	}
	conn.token = token
	conn.endpoint = endpoint
	vs, ok := conn.voiceServer()
	s.mu.Unlock()

	if ok {
		s.pushVoice(conn, vs)
	}
}

func (s *Session) pushVoice(conn *connection, vs VoiceServer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.d.commandTimeout)
	defer cancel()

	if err := s.d.node.UpdateVoice(ctx, s.guildID, vs); err != nil {
		s.logger.Warn("Failed to forward voice server to node", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn && !conn.destroyed && s.state == Connecting {
		s.state = Connected
		close(conn.ready)
	}
}

// ExternalDisconnect resets the connection after the platform reported
// the bot left voice. It reports whether anything was torn down.
func (s *Session) ExternalDisconnect() bool {
	return s.teardown("voice disconnected")
}

// RequestLeave disconnects from voice
func (s *Session) RequestLeave(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return apperrors.ErrNotConnected
	}
	s.mu.Unlock()

	if err := s.d.voice.Leave(s.guildID); err != nil {
		s.logger.Warn("Failed to leave voice channel", zap.Error(err))
	}
	s.teardown("leave requested")
	return nil
}

// teardown resets every connection-related field once per connection
func (s *Session) teardown(reason string) bool {
	return s.teardownIf(reason, nil)
}

// teardownIf tears down only when cond, evaluated under the state lock,
// still holds. A nil cond always holds.
func (s *Session) teardownIf(reason string, cond func() bool) bool {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || conn.destroyed || (cond != nil && !cond()) {
		s.mu.Unlock()
		return false
	}
	conn.destroyed = true
	close(conn.done)

	s.conn = nil
	s.state = Disconnected
	s.channelID = ""
	if s.current != nil {
		s.previous = s.current
	}
	s.current = nil
	s.paused = false
	s.position = 0
	s.positionAt = time.Time{}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info("Voice connection closed", zap.String("reason", reason))

	s.d.idle.Stop(s)
	s.command(gen, "destroy", func(ctx context.Context) error {
		return s.d.node.Destroy(ctx, s.guildID)
	})
	s.d.notifier.Refresh(s.guildID)
	return true
}

// destroy ends the session for good, e.g. when the bot leaves the guild
func (s *Session) destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.queue.Clear()
	connected := s.state != Disconnected
	s.mu.Unlock()

	if connected {
		if err := s.d.voice.Leave(s.guildID); err != nil {
			s.logger.Warn("Failed to leave voice channel", zap.Error(err))
		}
	}
	s.teardown("session removed")
	s.d.idle.Stop(s)
}

// Enqueue appends tracks and starts the head when nothing is playing
func (s *Session) Enqueue(tracks []Track, requesterID string) (EnqueueResult, error) {
	if len(tracks) == 0 {
		return EnqueueResult{}, apperrors.ErrNoResults
	}

	annotated := make([]Track, len(tracks))
	for i, t := range tracks {
		annotated[i] = t.WithRequester(requesterID)
	}

	s.mu.Lock()
	if err := s.checkConnectedLocked(); err != nil {
		s.mu.Unlock()
		return EnqueueResult{}, err
	}
	result := EnqueueResult{
		Position: s.queue.Len() + 1,
		Count:    len(annotated),
		First:    annotated[0],
	}
	s.queue.Add(annotated...)

	var next *Track
	var gen uint64
	if s.current == nil {
		next, gen = s.advanceLocked(false)
		result.Started = true
		result.Position = 0
	}
	s.mu.Unlock()

	if next != nil {
		s.d.idle.Stop(s)
		s.play(*next, gen)
	}
	s.d.notifier.Refresh(s.guildID)
	return result, nil
}

// advanceLocked moves to the next track. natural is true when the
// current track finished on its own, which is the only case where
// LoopTrack replays it.
func (s *Session) advanceLocked(natural bool) (*Track, uint64) {
	prev := s.current
	if prev != nil {
		s.previous = prev
		s.history.add(*prev)
	}

	var next *Track
	if prev != nil && natural && s.loop == LoopTrack {
		t := *prev
		next = &t
	} else {
		if prev != nil && s.loop == LoopQueue {
			s.queue.Add(*prev)
		}
		var t Track
		var ok bool
		if s.shuffle {
			t, ok = s.queue.PopRandom(s.rng)
		} else {
			t, ok = s.queue.PopFront()
		}
		if ok {
			next = &t
		}
	}

	s.current = next
	s.paused = false
	s.position = 0
	s.positionAt = time.Time{}
	s.gen++
	return next, s.gen
}

// startLocked makes target current without touching the queue
func (s *Session) startLocked(target Track) uint64 {
	s.current = &target
	s.paused = false
	s.position = 0
	s.positionAt = time.Time{}
	s.gen++
	return s.gen
}

// Skip ends the current track and advances regardless of LoopTrack
func (s *Session) Skip() (Track, error) {
	s.mu.Lock()
	if err := s.checkPlayingLocked(); err != nil {
		s.mu.Unlock()
		return Track{}, err
	}
	skipped := *s.current
	next, gen := s.advanceLocked(false)
	s.mu.Unlock()

	s.logger.Debug("Skipped track", zap.String("title", skipped.Title))

	if next != nil {
		s.play(*next, gen)
	} else {
		s.stopPlayer(gen)
		s.onQueueEmptied(gen)
	}
	s.d.notifier.Refresh(s.guildID)
	return skipped, nil
}

// Previous plays the last finished track and pushes the current one
// back to the head of the queue.
func (s *Session) Previous() (Track, error) {
	s.mu.Lock()
	if err := s.checkConnectedLocked(); err != nil {
		s.mu.Unlock()
		return Track{}, err
	}
	if s.previous == nil {
		s.mu.Unlock()
		return Track{}, apperrors.ErrNoPreviousTrack
	}
	target := *s.previous
	s.previous = nil
	if s.current != nil {
		s.queue.PushFront(*s.current)
	}
	gen := s.startLocked(target)
	s.mu.Unlock()

	s.d.idle.Stop(s)
	s.play(target, gen)
	s.d.notifier.Refresh(s.guildID)
	return target, nil
}

// Jump plays the track at the 1-indexed position. Under LoopQueue the
// skipped tracks and the current one rotate to the tail; otherwise the
// skipped tracks are dropped.
func (s *Session) Jump(position int) (Track, error) {
	s.mu.Lock()
	if err := s.checkConnectedLocked(); err != nil {
		s.mu.Unlock()
		return Track{}, err
	}
	skipped, target, tail, err := s.queue.Split(position)
	if err != nil {
		s.mu.Unlock()
		return Track{}, err
	}

	rest := tail
	if s.loop == LoopQueue {
		if s.current != nil {
			rest = append(rest, *s.current)
		}
		rest = append(rest, skipped...)
	}
	s.queue.Replace(rest)

	if s.current != nil {
		s.previous = s.current
		s.history.add(*s.current)
	}
	gen := s.startLocked(target)
	s.mu.Unlock()

	s.d.idle.Stop(s)
	s.play(target, gen)
	s.d.notifier.Refresh(s.guildID)
	return target, nil
}

// Remove deletes the queued track at the 1-indexed position
func (s *Session) Remove(position int) (Track, error) {
	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return Track{}, err
	}
	t, err := s.queue.Remove(position)
	s.mu.Unlock()
	if err != nil {
		return Track{}, err
	}

	s.d.notifier.Refresh(s.guildID)
	return t, nil
}

// Move relocates a queued track, both positions 1-indexed
func (s *Session) Move(from, to int) (Track, error) {
	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return Track{}, err
	}
	t, err := s.queue.Move(from, to)
	s.mu.Unlock()
	if err != nil {
		return Track{}, err
	}

	s.d.notifier.Refresh(s.guildID)
	return t, nil
}

// ShuffleRemaining permutes the queue once and returns its length
func (s *Session) ShuffleRemaining() (int, error) {
	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.queue.Shuffle(s.rng)
	n := s.queue.Len()
	s.mu.Unlock()

	s.d.notifier.Refresh(s.guildID)
	return n, nil
}

// Clear drops the queue and returns how many tracks were removed
func (s *Session) Clear() (int, error) {
	s.mu.Lock()
	if err := s.checkAliveLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	n := s.queue.Clear()
	s.mu.Unlock()

	s.d.notifier.Refresh(s.guildID)
	return n, nil
}

// Stop clears the queue and the current track but stays connected
func (s *Session) Stop() error {
	s.mu.Lock()
	if err := s.checkConnectedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue.Clear()
	if s.current != nil {
		s.previous = s.current
	}
	gen := s.clearCurrentLocked()
	s.mu.Unlock()

	s.stopPlayer(gen)
	s.d.idle.Start(s)
	s.d.notifier.Refresh(s.guildID)
	return nil
}

func (s *Session) clearCurrentLocked() uint64 {
	s.current = nil
	s.paused = false
	s.position = 0
	s.positionAt = time.Time{}
	s.gen++
	return s.gen
}

// TogglePause flips pause and returns the new paused state
func (s *Session) TogglePause() (bool, error) {
	s.mu.Lock()
	if err := s.checkPlayingLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	if s.paused {
		s.positionAt = s.d.clock.Now()
	} else {
		s.position = s.positionLocked()
		s.positionAt = s.d.clock.Now()
	}
	s.paused = !s.paused
	paused := s.paused
	s.mu.Unlock()

	s.syncPause()
	s.d.notifier.RefreshControls(s.guildID)
	return paused, nil
}

// SetVolume sets an absolute volume. Out-of-range requests clamp to the
// bound, and a request past a bound the volume already sits on returns
// ErrAlreadyAtLimit.
func (s *Session) SetVolume(volume int) (int, error) {
	s.mu.Lock()
	v, err := s.setVolumeLocked(volume)
	s.mu.Unlock()
	if err != nil {
		return v, err
	}

	s.syncVolume()
	s.d.notifier.Refresh(s.guildID)
	return v, nil
}

// AdjustVolume moves the volume by delta
func (s *Session) AdjustVolume(delta int) (int, error) {
	s.mu.Lock()
	v, err := s.setVolumeLocked(s.volume + delta)
	s.mu.Unlock()
	if err != nil {
		return v, err
	}

	s.syncVolume()
	s.d.notifier.Refresh(s.guildID)
	return v, nil
}

func (s *Session) setVolumeLocked(requested int) (int, error) {
	if err := s.checkConnectedLocked(); err != nil {
		return s.volume, err
	}
	target := settings.ClampVolume(requested)
	if target == s.volume && requested != s.volume {
		return s.volume, apperrors.ErrAlreadyAtLimit
	}
	s.volume = target
	return target, nil
}

// CycleLoop advances the loop mode and returns it
func (s *Session) CycleLoop() LoopMode {
	s.mu.Lock()
	s.loop = s.loop.Next()
	mode := s.loop
	s.mu.Unlock()

	s.d.notifier.RefreshControls(s.guildID)
	return mode
}

// SetLoop sets the loop mode
func (s *Session) SetLoop(mode LoopMode) {
	s.mu.Lock()
	s.loop = mode
	s.mu.Unlock()

	s.d.notifier.RefreshControls(s.guildID)
}

// ToggleAutoplay flips autoplay and returns the new value
func (s *Session) ToggleAutoplay() bool {
	s.mu.Lock()
	s.autoplay = !s.autoplay
	on := s.autoplay
	s.mu.Unlock()

	s.d.notifier.RefreshControls(s.guildID)
	return on
}

// ToggleShuffle flips random draw order and returns the new value
func (s *Session) ToggleShuffle() bool {
	s.mu.Lock()
	s.shuffle = !s.shuffle
	on := s.shuffle
	s.mu.Unlock()

	s.d.notifier.RefreshControls(s.guildID)
	return on
}

// Seek moves to an absolute position, clamped to the track length
func (s *Session) Seek(position time.Duration) (time.Duration, error) {
	return s.seek(func(time.Duration) time.Duration { return position })
}

// FastForward seeks forward by d
func (s *Session) FastForward(d time.Duration) (time.Duration, error) {
	return s.seek(func(cur time.Duration) time.Duration { return cur + d })
}

// Rewind seeks backward by d
func (s *Session) Rewind(d time.Duration) (time.Duration, error) {
	return s.seek(func(cur time.Duration) time.Duration { return cur - d })
}

func (s *Session) seek(target func(current time.Duration) time.Duration) (time.Duration, error) {
	s.mu.Lock()
	if err := s.checkPlayingLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if s.current.IsStream || !s.current.IsSeekable {
		s.mu.Unlock()
		return 0, apperrors.ErrNotSeekable
	}

	pos := target(s.positionLocked())
	if pos < 0 {
		pos = 0
	}
	if pos > s.current.Duration {
		pos = s.current.Duration
	}
	s.position = pos
	s.positionAt = s.d.clock.Now()
	gen := s.gen
	s.mu.Unlock()

	s.command(gen, "seek", func(ctx context.Context) error {
		return s.d.node.Seek(ctx, s.guildID, pos)
	})
	s.d.notifier.Refresh(s.guildID)
	return pos, nil
}

// positionLocked estimates the playback position from the last report
func (s *Session) positionLocked() time.Duration {
	if s.current == nil {
		return 0
	}
	pos := s.position
	if !s.paused && !s.positionAt.IsZero() {
		pos += s.d.clock.Now().Sub(s.positionAt)
	}
	if !s.current.IsStream && pos > s.current.Duration {
		pos = s.current.Duration
	}
	return pos
}

// command runs a node call unless the playback generation moved past gen
func (s *Session) command(gen uint64, name string, fn func(ctx context.Context) error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		s.logger.Debug("Skipping stale node command", zap.String("command", name))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.d.commandTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Warn("Node command failed", zap.String("command", name), zap.Error(err))
	}
}

func (s *Session) play(track Track, gen uint64) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	stale := s.gen != gen
	opts := PlayOptions{Volume: s.volume, Paused: s.paused, Nonce: gen}
	s.mu.Unlock()
	if stale {
		s.logger.Debug("Skipping stale play", zap.String("title", track.Title))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.d.commandTimeout)
	defer cancel()
	if err := s.d.node.Play(ctx, s.guildID, track, opts); err != nil {
		s.logger.Warn("Failed to start track", zap.String("title", track.Title), zap.Error(err))
		s.d.notifier.Notice(s.guildID, fmt.Sprintf("Could not play **%s**.", track.Title))
	}
}

func (s *Session) stopPlayer(gen uint64) {
	s.command(gen, "stop", func(ctx context.Context) error {
		return s.d.node.Stop(ctx, s.guildID)
	})
}

// syncVolume sends the latest volume, so concurrent changes converge
func (s *Session) syncVolume() {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	connected := s.state == Connected
	volume := s.volume
	s.mu.Unlock()
	if !connected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.d.commandTimeout)
	defer cancel()
	if err := s.d.node.SetVolume(ctx, s.guildID, volume); err != nil {
		s.logger.Warn("Failed to set volume", zap.Int("volume", volume), zap.Error(err))
	}
}

func (s *Session) syncPause() {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	playing := s.current != nil
	paused := s.paused
	s.mu.Unlock()
	if !playing {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.d.commandTimeout)
	defer cancel()
	if err := s.d.node.Pause(ctx, s.guildID, paused); err != nil {
		s.logger.Warn("Failed to pause", zap.Bool("paused", paused), zap.Error(err))
	}
}

// resume re-sends the voice handshake and the current track after the
// node lost its players.
func (s *Session) resume() {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || conn.destroyed || s.state != Connected {
		s.mu.Unlock()
		return
	}
	vs, ok := conn.voiceServer()
	var cur *Track
	if s.current != nil {
		t := *s.current
		cur = &t
	}
	gen := s.gen
	s.mu.Unlock()

	if !ok {
		return
	}
	s.pushVoice(conn, vs)
	if cur != nil {
		s.logger.Info("Resuming track on node", zap.String("title", cur.Title))
		s.play(*cur, gen)
	}
}

// idleExpired disconnects when the session is still not playing
func (s *Session) idleExpired() bool {
	s.mu.Lock()
	idle := s.current == nil && s.state == Connected && !s.destroyed
	gen := s.gen
	s.mu.Unlock()
	if !idle {
		return false
	}
	return s.leaveIdle(gen)
}

// leaveIdle leaves voice unless playback started after gen was read
func (s *Session) leaveIdle(gen uint64) bool {
	left := s.teardownIf("idle timeout", func() bool {
		return s.gen == gen && s.current == nil && s.state == Connected
	})
	if !left {
		s.logger.Debug("Playback resumed before the idle disconnect")
		return false
	}

	s.logger.Info("Disconnected after inactivity")
	if err := s.d.voice.Leave(s.guildID); err != nil {
		s.logger.Warn("Failed to leave voice channel", zap.Error(err))
	}
	s.d.observer.IdleDisconnect()
	s.d.notifier.Notice(s.guildID, "I left the voice channel after being idle for a while.")
	return true
}
