package music

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func track(id string) Track {
	return Track{
		Encoded:    "enc-" + id,
		Identifier: id,
		Title:      "Track " + id,
		Author:     "Artist " + id,
		URI:        "https://example.com/watch?v=" + id,
		Duration:   3 * time.Minute,
		IsSeekable: true,
		SourceName: "youtube",
	}
}

func tracks(ids ...string) []Track {
	out := make([]Track, len(ids))
	for i, id := range ids {
		out[i] = track(id)
	}
	return out
}

func ids(ts []Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Identifier
	}
	return out
}

type fakeNode struct {
	mu           sync.Mutex
	unavailable  bool
	played       []Track
	nonces       []uint64
	stops        int
	destroys     int
	voiceUpdates int
	volumes      []int
	pauses       []bool
	seeks        []time.Duration
}

func (n *fakeNode) Available() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.unavailable
}

func (n *fakeNode) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	return &LoadResult{Type: LoadEmpty}, nil
}

func (n *fakeNode) Play(ctx context.Context, guildID string, t Track, opts PlayOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.played = append(n.played, t)
	n.nonces = append(n.nonces, opts.Nonce)
	return nil
}

func (n *fakeNode) Stop(ctx context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	return nil
}

func (n *fakeNode) Pause(ctx context.Context, guildID string, paused bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pauses = append(n.pauses, paused)
	return nil
}

func (n *fakeNode) Seek(ctx context.Context, guildID string, position time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seeks = append(n.seeks, position)
	return nil
}

func (n *fakeNode) SetVolume(ctx context.Context, guildID string, volume int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volumes = append(n.volumes, volume)
	return nil
}

func (n *fakeNode) UpdateVoice(ctx context.Context, guildID string, voice VoiceServer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.voiceUpdates++
	return nil
}

func (n *fakeNode) Destroy(ctx context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destroys++
	return nil
}

func (n *fakeNode) playedIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ids(n.played)
}

func (n *fakeNode) lastNonce() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.nonces) == 0 {
		return 0
	}
	return n.nonces[len(n.nonces)-1]
}

type fakeVoice struct {
	mu       sync.Mutex
	checkErr error
	joinErr  error
	joins    []string
	leaves   int
	onJoin   func(guildID, channelID string)
}

func (v *fakeVoice) CheckJoin(guildID, channelID string) error {
	return v.checkErr
}

func (v *fakeVoice) Join(guildID, channelID string) error {
	v.mu.Lock()
	v.joins = append(v.joins, channelID)
	onJoin := v.onJoin
	err := v.joinErr
	v.mu.Unlock()

	if err == nil && onJoin != nil {
		onJoin(guildID, channelID)
	}
	return err
}

func (v *fakeVoice) Leave(guildID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leaves++
	return nil
}

type fakeConfig struct {
	mu      sync.Mutex
	configs map[string]*settings.GuildConfig
}

func (c *fakeConfig) Get(guildID string) *settings.GuildConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.configs[guildID]; ok {
		return cfg.Clone()
	}
	return settings.NewGuildConfig(guildID, 300)
}

func (c *fakeConfig) set(guildID string, fn func(cfg *settings.GuildConfig)) {
	cfg := c.Get(guildID)
	fn(cfg)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[guildID] = cfg
}

type fakeNotifier struct {
	mu       sync.Mutex
	refresh  int
	controls int
	notices  []string
}

func (n *fakeNotifier) Refresh(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refresh++
}

func (n *fakeNotifier) RefreshControls(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.controls++
}

func (n *fakeNotifier) Notice(guildID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, message)
}

func (n *fakeNotifier) refreshes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.refresh
}

type fakeRecommender struct {
	mu      sync.Mutex
	queries []string
	err     error
	calls   int
}

func (r *fakeRecommender) Recommend(ctx context.Context, title, artist string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	if r.calls >= len(r.queries) {
		return "", nil
	}
	q := r.queries[r.calls]
	r.calls++
	return q, nil
}

type fakeSearcher struct {
	results map[string]Track
}

func (s *fakeSearcher) SearchOne(ctx context.Context, query, requesterID string) (Track, error) {
	t, ok := s.results[query]
	if !ok {
		return Track{}, apperrors.ErrNoResults
	}
	return t.WithRequester(requesterID), nil
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.clock.cancelled++
	return true
}

type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	timers    []*fakeTimer
	cancelled int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires every due timer
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) cancellations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

type harness struct {
	reg      *Registry
	node     *fakeNode
	voice    *fakeVoice
	config   *fakeConfig
	notifier *fakeNotifier
	clock    *fakeClock
	rec      *fakeRecommender
	search   *fakeSearcher
}

func newHarness(t *testing.T, tweaks ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		node:     &fakeNode{},
		voice:    &fakeVoice{},
		config:   &fakeConfig{configs: make(map[string]*settings.GuildConfig)},
		notifier: &fakeNotifier{},
		clock:    newFakeClock(),
		rec:      &fakeRecommender{},
		search:   &fakeSearcher{results: make(map[string]Track)},
	}
	opts := Options{
		Node:        h.node,
		Voice:       h.voice,
		Config:      h.config,
		Searcher:    h.search,
		Recommender: h.rec,
		Notifier:    h.notifier,
		Clock:       h.clock,
		Logger:      zap.NewNop(),
		JoinTimeout: time.Second,
		Async:       func(f func()) { f() },
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	h.reg = NewRegistry(opts)
	h.voice.onJoin = func(guildID, channelID string) {
		h.reg.HandleVoiceState(guildID, "voice-session", channelID)
		h.reg.HandleVoiceServer(guildID, "token", "eu-west.discord.media")
	}
	return h
}

func (h *harness) connect(t *testing.T, guildID string) *Session {
	t.Helper()
	s := h.reg.GetOrCreate(guildID)
	require.NoError(t, s.RequestJoin(context.Background(), "voice-1"))
	return s
}

func (h *harness) playing(t *testing.T, guildID string, queued ...string) *Session {
	t.Helper()
	s := h.connect(t, guildID)
	_, err := s.Enqueue(tracks(queued...), "user-1")
	require.NoError(t, err)
	return s
}

func (h *harness) finish(s *Session) {
	h.reg.HandleNodeEvent(NodeEvent{
		Type:    TrackEnded,
		GuildID: s.GuildID(),
		Nonce:   h.node.lastNonce(),
		Reason:  EndFinished,
	})
}

func guildName(i int) string {
	return fmt.Sprintf("guild-%d", i)
}
