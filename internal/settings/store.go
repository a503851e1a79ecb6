package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Repository persists the full guild id to settings map.
type Repository interface {
	LoadSettings(ctx context.Context) (map[string]GuildSettings, error)
	SaveSettings(ctx context.Context, all map[string]GuildSettings) error
}

// Store is a write-through cache over Repository. Every change rewrites the
// whole map.
type Store struct {
	repo Repository

	mu     sync.RWMutex
	guilds map[string]GuildSettings
}

func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		guilds: make(map[string]GuildSettings),
	}
}

func (s *Store) Load(ctx context.Context) error {
	all, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load guild settings: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds = make(map[string]GuildSettings, len(all))
	for id, gs := range all {
		s.guilds[id] = gs.Normalize()
	}
	slog.Info("guild settings loaded", "guilds", len(s.guilds))
	return nil
}

// Get returns the guild's settings or the defaults when none are stored.
func (s *Store) Get(guildID string) GuildSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gs, ok := s.guilds[guildID]; ok {
		return gs
	}
	return Default()
}

// Update applies fn to a copy of the guild's settings and persists the result.
// The cache is left untouched when saving fails.
func (s *Store) Update(ctx context.Context, guildID string, fn func(*GuildSettings)) (GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.guilds[guildID]
	if !ok {
		current = Default()
	}
	fn(&current)
	current = current.Normalize()

	next := make(map[string]GuildSettings, len(s.guilds)+1)
	for id, gs := range s.guilds {
		next[id] = gs
	}
	next[guildID] = current
	if err := s.repo.SaveSettings(ctx, next); err != nil {
		return GuildSettings{}, fmt.Errorf("save guild settings: %w", err)
	}
	s.guilds = next
	return current, nil
}
