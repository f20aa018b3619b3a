package settings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable key-value contract behind the Manager.
// Save with a nil config deletes the guild.
type Store interface {
	Load() (map[string]*GuildConfig, error)
	Save(guildID string, cfg *GuildConfig) error
	Close() error
}

// JSONStore keeps every guild in one JSON document, rewritten atomically on each save
type JSONStore struct {
	path string
	mu   sync.Mutex
	data map[string]*GuildConfig
}

// NewJSONStore creates a store backed by the file at path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{
		path: path,
		data: make(map[string]*GuildConfig),
	}
}

// Load reads the document. A missing file is an empty configuration set.
func (s *JSONStore) Load() (map[string]*GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.data = make(map[string]*GuildConfig)
		return map[string]*GuildConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	data := make(map[string]*GuildConfig)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode settings %s: %w", s.path, err)
		}
	}

	for id, cfg := range data {
		// "<guild>": null carries no settings; the next flush drops it
		if cfg == nil {
			delete(data, id)
		}
	}

	s.data = data
	out := make(map[string]*GuildConfig, len(data))
	for id, cfg := range data {
		out[id] = cfg.Clone()
	}
	return out, nil
}

// Save updates one guild and rewrites the document
func (s *JSONStore) Save(guildID string, cfg *GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg == nil {
		delete(s.data, guildID)
	} else {
		s.data[guildID] = cfg.Clone()
	}
	return s.flush()
}

func (s *JSONStore) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".music_data-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Close is a no-op for the file store
func (s *JSONStore) Close() error {
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS guild_settings (
	guild_id   TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);`

// SQLiteStore keeps one row per guild with the config encoded as JSON
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create settings dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite settings: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads every guild row
func (s *SQLiteStore) Load() (map[string]*GuildConfig, error) {
	rows, err := s.db.Query(`SELECT guild_id, data FROM guild_settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*GuildConfig)
	for rows.Next() {
		var guildID, data string
		if err := rows.Scan(&guildID, &data); err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		var cfg GuildConfig
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("decode settings for guild %s: %w", guildID, err)
		}
		out[guildID] = &cfg
	}
	return out, rows.Err()
}

// Save upserts or deletes one guild row
func (s *SQLiteStore) Save(guildID string, cfg *GuildConfig) error {
	if cfg == nil {
		_, err := s.db.Exec(`DELETE FROM guild_settings WHERE guild_id = ?`, guildID)
		if err != nil {
			return fmt.Errorf("delete settings for guild %s: %w", guildID, err)
		}
		return nil
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings for guild %s: %w", guildID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO guild_settings (guild_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		guildID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save settings for guild %s: %w", guildID, err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
