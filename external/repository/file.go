package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/settings"
)

// FileRepository keeps guild settings in one JSON object and appends
// exchanges to a JSON lines log.
type FileRepository struct {
	settingsPath string
	logPath      string

	mu    sync.Mutex
	logMu sync.Mutex
}

func NewFileRepository(settingsPath, logPath string) repository.Repository {
	return &FileRepository{settingsPath: settingsPath, logPath: logPath}
}

func (r *FileRepository) LoadSettings(_ context.Context) (map[string]settings.GuildSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.settingsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]settings.GuildSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return decodeSettings(b)
}

// decodeSettings unmarshals every guild onto the defaults so missing fields
// keep their documented values.
func decodeSettings(b []byte) (map[string]settings.GuildSettings, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	out := make(map[string]settings.GuildSettings, len(raw))
	for guildID, msg := range raw {
		gs := settings.Default()
		if err := json.Unmarshal(msg, &gs); err != nil {
			return nil, fmt.Errorf("decode settings for guild %s: %w", guildID, err)
		}
		out[guildID] = gs
	}
	return out, nil
}

func (r *FileRepository) SaveSettings(_ context.Context, all map[string]settings.GuildSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(r.settingsPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.settingsPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.settingsPath); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

type exchangeRecord struct {
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Transcript  string `json:"transcript"`
	Prompt      string `json:"prompt"`
	Reply       string `json:"reply"`
	SpokenAt    string `json:"spoken_at"`
}

func (r *FileRepository) InsertExchange(_ context.Context, ex repository.Exchange) error {
	if r.logPath == "" {
		return nil
	}
	line, err := json.Marshal(exchangeRecord{
		GuildID:     ex.GuildID,
		ChannelID:   ex.ChannelID,
		UserID:      ex.UserID,
		DisplayName: ex.DisplayName,
		Transcript:  ex.Transcript,
		Prompt:      ex.Prompt,
		Reply:       ex.Reply,
		SpokenAt:    ex.SpokenAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("encode exchange: %w", err)
	}

	r.logMu.Lock()
	defer r.logMu.Unlock()
	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open conversation log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append conversation log: %w", err)
	}
	return nil
}

func (r *FileRepository) Close() {}
