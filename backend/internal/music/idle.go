package music

import (
	"sync"
	"time"

	"vibebot/backend/internal/settings"

	"go.uber.org/zap"
)

type idleEntry struct {
	timer Timer
}

// IdleSupervisor disconnects sessions that stay idle for the guild's
// idle timeout. Each guild has at most one pending timer.
type IdleSupervisor struct {
	clock  Clock
	config ConfigSource
	logger *zap.Logger

	mu     sync.Mutex
	timers map[string]*idleEntry
}

// NewIdleSupervisor creates a supervisor with no pending timers
func NewIdleSupervisor(clock Clock, config ConfigSource, logger *zap.Logger) *IdleSupervisor {
	return &IdleSupervisor{
		clock:  clock,
		config: config,
		logger: logger,
		timers: make(map[string]*idleEntry),
	}
}

// Start replaces any pending timer for the session. Nothing is armed
// when the guild disabled auto-disconnect.
func (i *IdleSupervisor) Start(s *Session) {
	cfg := i.config.Get(s.guildID)

	i.mu.Lock()
	defer i.mu.Unlock()

	if old, ok := i.timers[s.guildID]; ok {
		old.timer.Stop()
		delete(i.timers, s.guildID)
	}
	if !cfg.AutoDisconnect {
		return
	}

	timeout := time.Duration(settings.ClampIdleTimeout(cfg.IdleTimeoutSecs)) * time.Second
	entry := &idleEntry{}
	entry.timer = i.clock.AfterFunc(timeout, func() { i.expire(s, entry) })
	i.timers[s.guildID] = entry

	i.logger.Debug("Idle timer armed",
		zap.String("guild_id", s.guildID),
		zap.Duration("timeout", timeout))
}

// Stop cancels the pending timer and reports whether one was pending
func (i *IdleSupervisor) Stop(s *Session) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry, ok := i.timers[s.guildID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(i.timers, s.guildID)
	return true
}

// Pending reports whether the guild has an armed timer
func (i *IdleSupervisor) Pending(guildID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.timers[guildID]
	return ok
}

func (i *IdleSupervisor) expire(s *Session, entry *idleEntry) {
	i.mu.Lock()
	if i.timers[s.guildID] != entry {
		i.mu.Unlock()
		return
	}
	delete(i.timers, s.guildID)
	i.mu.Unlock()

	if !s.idleExpired() {
		i.logger.Debug("Idle timer expired while playing", zap.String("guild_id", s.guildID))
	}
}
