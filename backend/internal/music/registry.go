package music

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultJoinTimeout    = 10 * time.Second
	defaultCommandTimeout = 10 * time.Second
	defaultHistorySize    = 100
	defaultAutoplayTries  = 3
)

// Options wires the collaborators shared by every session
type Options struct {
	Node        Node
	Voice       VoiceGateway
	Config      ConfigSource
	Searcher    Searcher
	Recommender Recommender
	Notifier    Notifier
	Observer    Observer
	Clock       Clock
	Logger      *zap.Logger

	JoinTimeout    time.Duration
	CommandTimeout time.Duration
	HistorySize    int

	// Async runs background work such as autoplay lookups. Defaults to a goroutine.
	Async func(func())
}

type deps struct {
	node        Node
	voice       VoiceGateway
	config      ConfigSource
	searcher    Searcher
	recommender Recommender
	notifier    Notifier
	observer    Observer
	clock       Clock
	logger      *zap.Logger
	idle        *IdleSupervisor

	joinTimeout    time.Duration
	commandTimeout time.Duration
	historySize    int
	autoplayTries  int
	async          func(func())
}

// Registry maps guild ids to sessions. At most one session exists per guild.
type Registry struct {
	d *deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) *Registry {
	d := &deps{
		node:           opts.Node,
		voice:          opts.Voice,
		config:         opts.Config,
		searcher:       opts.Searcher,
		recommender:    opts.Recommender,
		notifier:       opts.Notifier,
		observer:       opts.Observer,
		clock:          opts.Clock,
		logger:         opts.Logger,
		joinTimeout:    opts.JoinTimeout,
		commandTimeout: opts.CommandTimeout,
		historySize:    opts.HistorySize,
		autoplayTries:  defaultAutoplayTries,
		async:          opts.Async,
	}
	if d.notifier == nil {
		d.notifier = nopNotifier{}
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	if d.clock == nil {
		d.clock = SystemClock()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.joinTimeout <= 0 {
		d.joinTimeout = defaultJoinTimeout
	}
	if d.commandTimeout <= 0 {
		d.commandTimeout = defaultCommandTimeout
	}
	if d.historySize <= 0 {
		d.historySize = defaultHistorySize
	}
	if d.async == nil {
		d.async = func(f func()) { go f() }
	}
	d.idle = NewIdleSupervisor(d.clock, d.config, d.logger)

	return &Registry{
		d:        d,
		sessions: make(map[string]*Session),
	}
}

// SetNotifier swaps the notifier. It must be called before any session exists.
func (r *Registry) SetNotifier(n Notifier) {
	r.d.notifier = n
}

// GetOrCreate returns the guild's session, creating it with the guild defaults
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		r.mu.Unlock()
		return s
	}
	s = newSession(guildID, r.d)
	r.sessions[guildID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.d.logger.Debug("Created session", zap.String("guild_id", guildID))
	r.d.observer.SessionsActive(n)
	return s
}

// Get returns the guild's session if one exists
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Remove destroys the guild's session: the idle timer is cancelled, the
// voice connection closed and the queue dropped.
func (r *Registry) Remove(guildID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.destroy()
	r.d.observer.SessionsActive(n)
	r.d.logger.Info("Removed session", zap.String("guild_id", guildID))
	return true
}

// Sessions returns every session ordered by guild id
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].guildID < out[j].guildID })
	return out
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Idle exposes the idle supervisor
func (r *Registry) Idle() *IdleSupervisor {
	return r.d.idle
}

// NodeAvailable reports whether the streaming node can take commands
func (r *Registry) NodeAvailable() bool {
	return r.d.node.Available()
}

// Shutdown removes every session
func (r *Registry) Shutdown() {
	for _, s := range r.Sessions() {
		r.Remove(s.guildID)
	}
}
