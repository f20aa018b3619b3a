package settings

import (
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "vibebot/backend/pkg/errors"

	"go.uber.org/zap"
)

// Manager serves guild configs from memory and persists every mutation.
// Mutations of one guild are serialized; different guilds never block each other.
type Manager struct {
	store       Store
	logger      *zap.Logger
	idleDefault int

	mu      sync.RWMutex
	configs map[string]*GuildConfig
	locks   map[string]*sync.Mutex
}

// NewManager loads every guild from store. Load errors are returned as-is
// since a corrupt store must not silently default to empty.
func NewManager(store Store, idleDefault int, logger *zap.Logger) (*Manager, error) {
	configs, err := store.Load()
	if err != nil {
		return nil, err
	}
	for id, cfg := range configs {
		if cfg == nil {
			delete(configs, id)
			continue
		}
		cfg.GuildID = id
		cfg.normalize()
	}

	logger.Info("Music data loaded", zap.Int("guilds", len(configs)))

	return &Manager{
		store:       store,
		logger:      logger,
		idleDefault: idleDefault,
		configs:     configs,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[guildID] = lock
	}
	return lock
}

// Get returns a copy of the guild config, or the defaults when none is stored
func (m *Manager) Get(guildID string) *GuildConfig {
	m.mu.RLock()
	cfg, ok := m.configs[guildID]
	m.mu.RUnlock()

	if !ok {
		return NewGuildConfig(guildID, m.idleDefault)
	}
	return cfg.Clone()
}

// Update runs fn on a copy of the guild config under the guild lock and
// persists the result. The stored config is unchanged when fn fails.
func (m *Manager) Update(guildID string, fn func(cfg *GuildConfig) error) (*GuildConfig, error) {
	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	cfg := m.Get(guildID)
	if err := fn(cfg); err != nil {
		return nil, err
	}
	cfg.GuildID = guildID
	cfg.normalize()

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := m.store.Save(guildID, cfg); err != nil {
		m.logger.Error("Failed to save music data", zap.String("guild_id", guildID), zap.Error(err))
		return nil, fmt.Errorf("save settings: %w", err)
	}

	m.mu.Lock()
	m.configs[guildID] = cfg
	m.mu.Unlock()

	m.logger.Info("Music data updated", zap.String("guild_id", guildID))
	return cfg.Clone(), nil
}

// Delete drops a guild, e.g. when the bot is removed from it
func (m *Manager) Delete(guildID string) error {
	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	_, existed := m.configs[guildID]
	delete(m.configs, guildID)
	m.mu.Unlock()

	if !existed {
		return nil
	}
	if err := m.store.Save(guildID, nil); err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	m.logger.Info("Music data removed", zap.String("guild_id", guildID))
	return nil
}

// Prune removes every stored guild not in active and returns the removed ids
func (m *Manager) Prune(active []string) []string {
	keep := make(map[string]struct{}, len(active))
	for _, id := range active {
		keep[id] = struct{}{}
	}

	m.mu.RLock()
	var stale []string
	for id := range m.configs {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := make([]string, 0, len(stale))
	for _, id := range stale {
		if err := m.Delete(id); err != nil {
			m.logger.Warn("Failed to prune music data", zap.String("guild_id", id), zap.Error(err))
			continue
		}
		removed = append(removed, id)
	}

	m.logger.Info("Music data cleaned for guilds where the bot is no longer in", zap.Int("removed", len(removed)))
	return removed
}

// Snapshot returns copies of every stored guild config
func (m *Manager) Snapshot() map[string]*GuildConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*GuildConfig, len(m.configs))
	for id, cfg := range m.configs {
		out[id] = cfg.Clone()
	}
	return out
}

// AddPlaylist stores a named playlist shortcut
func (m *Manager) AddPlaylist(guildID, name string, pl Playlist) error {
	name = strings.TrimSpace(name)
	if name == "" || pl.URL == "" {
		return apperrors.NewBaseError(apperrors.ErrorTypeInput, "playlist name and url are required", nil)
	}

	_, err := m.Update(guildID, func(cfg *GuildConfig) error {
		if _, exists := cfg.Playlists[name]; exists {
			return apperrors.ErrPlaylistExists
		}
		if len(cfg.Playlists) >= MaxPlaylists {
			return apperrors.ErrPlaylistLimit
		}
		if pl.ButtonLabel == "" {
			pl.ButtonLabel = name
		}
		cfg.Playlists[name] = pl
		return nil
	})
	return err
}

// RemovePlaylist deletes a named playlist shortcut
func (m *Manager) RemovePlaylist(guildID, name string) error {
	_, err := m.Update(guildID, func(cfg *GuildConfig) error {
		if _, exists := cfg.Playlists[name]; !exists {
			return apperrors.ErrPlaylistNotFound
		}
		delete(cfg.Playlists, name)
		return nil
	})
	return err
}

// Playlist looks up one playlist by name
func (m *Manager) Playlist(guildID, name string) (Playlist, bool) {
	pl, ok := m.Get(guildID).Playlists[name]
	return pl, ok
}
