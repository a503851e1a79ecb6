// Package thinking plays an interruptible filler sound while a reply is being
// generated.
package thinking

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/settings"
)

const trackTitle = "thinking"

type SettingsReader interface {
	Get(guildID string) settings.GuildSettings
}

// Sources are local filler files. The Ogg file wins when both exist.
type Sources struct {
	OggPath string
	MP3Path string
}

func (s Sources) resolve() (string, bool) {
	for _, path := range []string{s.OggPath, s.MP3Path} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Controller owns the per-guild "thinking active" flag.
type Controller struct {
	guildID    string
	player     *playback.Player
	transcoder audio.Transcoder
	settings   SettingsReader
	sources    Sources

	mu     sync.Mutex
	active bool
	gen    uint64
}

func NewController(guildID string, player *playback.Player, transcoder audio.Transcoder, store SettingsReader, sources Sources) *Controller {
	return &Controller{
		guildID:    guildID,
		player:     player,
		transcoder: transcoder,
		settings:   store,
		sources:    sources,
	}
}

// Start dispatches the filler straight to the player. Every skip is logged and
// nothing is returned, the reply path never waits on it.
func (c *Controller) Start(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !c.settings.Get(c.guildID).Trigger.Enabled {
		slog.Debug("thinking sound disabled", "guild_id", c.guildID)
		return
	}
	path, ok := c.sources.resolve()
	if !ok {
		slog.Warn("thinking sound missing; place thinking.ogg or thinking.mp3 next to the bot", "guild_id", c.guildID, "ogg_path", c.sources.OggPath, "mp3_path", c.sources.MP3Path)
		return
	}
	c.mu.Lock()
	c.active = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	// Never cut queued speech or media.
	started := c.player.PlayIfIdle(trackTitle, func(pctx context.Context) (io.ReadCloser, error) {
		rc, err := c.transcoder.DecodeFile(pctx, path)
		if err != nil {
			c.release(gen)
			return nil, err
		}
		return &fillerStream{ReadCloser: rc, release: func() { c.release(gen) }}, nil
	})
	if !started {
		c.release(gen)
		slog.Debug("player busy; skipping thinking sound", "guild_id", c.guildID)
		return
	}
	slog.Info("thinking sound started", "guild_id", c.guildID, "path", path)
}

// Interrupt force-stops the filler if it is still flagged active.
func (c *Controller) Interrupt() bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	c.active = false
	c.mu.Unlock()

	c.player.StopIf(trackTitle)
	slog.Info("thinking sound interrupted", "guild_id", c.guildID)
	return true
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// release clears the flag set by the start with the same generation.
func (c *Controller) release(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.active = false
	}
}

type fillerStream struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (f *fillerStream) Close() error {
	err := f.ReadCloser.Close()
	f.once.Do(f.release)
	return err
}
