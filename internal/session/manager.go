// Package session keeps one voice session per guild and wires voice capture,
// replies, media playback and the slash command surface together.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/capture"
	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/discord"
	"github.com/foxseedlab/kotodama/internal/history"
	"github.com/foxseedlab/kotodama/internal/llm"
	"github.com/foxseedlab/kotodama/internal/media"
	"github.com/foxseedlab/kotodama/internal/observe"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/settings"
	"github.com/foxseedlab/kotodama/internal/thinking"
	"github.com/foxseedlab/kotodama/internal/transcriber"
	"github.com/foxseedlab/kotodama/internal/tts"
	"github.com/foxseedlab/kotodama/internal/wakeword"
	"github.com/foxseedlab/kotodama/internal/webhook"
)

const (
	stopReasonLeaveCommand = "leave command"
	stopReasonBotRemoved   = "bot disconnected from voice"
)

// StopReasonServerShutdown is logged for sessions torn down by process exit.
const StopReasonServerShutdown = "server shutdown"

var errAlreadyConnected = errors.New("guild already has a voice session")

type MediaResolver interface {
	Resolve(ctx context.Context, req media.Request) (*media.Resource, error)
}

type Deps struct {
	Config        *config.Config
	Discord       discord.Client
	Settings      *settings.Store
	Presets       settings.Presets
	History       *history.Store
	Gate          *wakeword.Gate
	Transcriber   transcriber.Transcriber
	LLM           llm.Responder
	TTS           tts.Synthesizer
	Media         MediaResolver
	Players       *playback.Registry
	Transcoder    audio.Transcoder
	NewDecoder    audio.DecoderFactory
	NewDetector   audio.SpeechDetectorFactory
	Conversations repository.ConversationRepository
	Webhook       webhook.Sender
	Metrics       *observe.Metrics
}

// GuildStatus is a point-in-time view of one guild session.
type GuildStatus struct {
	GuildID        string `json:"guild_id"`
	VoiceChannelID string `json:"voice_channel_id"`
	TextChannelID  string `json:"text_channel_id"`
	PlayerState    string `json:"player_state"`
	NowPlaying     string `json:"now_playing,omitempty"`
	QueueLength    int    `json:"queue_length"`
	ActiveCaptures int    `json:"active_captures"`
	Thinking       bool   `json:"thinking"`
}

type Manager struct {
	cfg  *config.Config
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	// joinMu serializes voice joins so two commands can't open two sessions.
	joinMu sync.Mutex

	mu        sync.Mutex
	guilds    map[string]*guildSession
	botUserID string
}

func NewManager(deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    deps.Config,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		guilds: make(map[string]*guildSession),
	}
}

func (m *Manager) SetBotUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = userID
}

func (m *Manager) getBotUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID
}

func (m *Manager) session(guildID string) (*guildSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.guilds[guildID]
	return gs, ok
}

func (m *Manager) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	botUserID := m.getBotUserID()
	if botUserID == "" || event.UserID != botUserID {
		return
	}
	slog.Info("bot voice state update received", "guild_id", event.GuildID, "before_channel_id", event.BeforeChannelID, "after_channel_id", event.AfterChannelID)
	if event.AfterChannelID != "" {
		return
	}
	if m.stopSession(event.GuildID, stopReasonBotRemoved) {
		slog.Warn("bot was disconnected from voice; session torn down", "guild_id", event.GuildID)
	}
}

// startSession joins voiceChannelID and builds the guild's player, queue,
// capture tracker and thinking controller. textChannelID receives transcript
// logs when no log channel is configured.
func (m *Manager) startSession(guildID, voiceChannelID, textChannelID string) (*guildSession, error) {
	m.joinMu.Lock()
	defer m.joinMu.Unlock()

	if gs, ok := m.session(guildID); ok {
		return gs, errAlreadyConnected
	}

	slog.Info("joining voice channel", "guild_id", guildID, "channel_id", voiceChannelID, "text_channel_id", textChannelID)
	voice, err := m.deps.Discord.JoinVoiceChannel(guildID, voiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}

	player := m.deps.Players.GetOrCreate(guildID, voice)
	gs := &guildSession{
		manager:        m,
		guildID:        guildID,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		voice:          voice,
		player:         player,
		queue:          playback.NewQueue(guildID, player, m.deps.Transcoder),
		thinking: thinking.NewController(guildID, player, m.deps.Transcoder, m.deps.Settings, thinking.Sources{
			OggPath: m.cfg.ThinkingSoundOgg,
			MP3Path: m.cfg.ThinkingSoundMP3,
		}),
		drafts:    make(map[string]exchangeDraft),
		knownBots: make(map[string]bool),
	}
	gs.tracker = capture.NewTracker(guildID, m.captureConfig(), capture.Deps{
		Pipeline:    gs,
		NewDecoder:  m.deps.NewDecoder,
		NewDetector: m.deps.NewDetector,
		Metrics:     m.deps.Metrics,
	})

	m.mu.Lock()
	m.guilds[guildID] = gs
	count := len(m.guilds)
	m.mu.Unlock()
	m.deps.Metrics.GuildSessionOpened(m.ctx)
	slog.Info("guild session activated", "guild_id", guildID, "channel_id", voiceChannelID, "active_guilds", count)

	go gs.receive()
	return gs, nil
}

func (m *Manager) captureConfig() capture.Config {
	return capture.Config{
		SilenceTimeout: m.cfg.SilenceTimeout(),
		MinDuration:    m.cfg.MinCaptureDuration(),
		MaxAge:         m.cfg.CaptureMaxAge(),
		SweepInterval:  m.cfg.CaptureSweepInterval(),
		TempDir:        m.cfg.CaptureTempDir,
	}
}

// stopSession tears the guild session down. It reports whether one existed.
func (m *Manager) stopSession(guildID, reason string) bool {
	m.mu.Lock()
	gs, ok := m.guilds[guildID]
	if ok {
		delete(m.guilds, guildID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	slog.Info("stopping guild session", "guild_id", guildID, "channel_id", gs.voiceChannelID, "reason", reason)
	gs.tracker.Close()
	gs.thinking.Interrupt()
	gs.queue.Close()
	m.deps.Players.Remove(guildID)
	if err := gs.voice.Disconnect(); err != nil {
		slog.Debug("voice disconnect failed", "error", err, "guild_id", guildID)
	}
	m.deps.Metrics.GuildSessionClosed(m.ctx)
	return true
}

// StopAll tears down every guild session and cancels in-flight command work.
func (m *Manager) StopAll(reason string) int {
	m.mu.Lock()
	guildIDs := make([]string, 0, len(m.guilds))
	for guildID := range m.guilds {
		guildIDs = append(guildIDs, guildID)
	}
	m.mu.Unlock()

	stopped := 0
	for _, guildID := range guildIDs {
		if m.stopSession(guildID, reason) {
			stopped++
		}
	}
	m.cancel()
	slog.Info("all guild sessions stopped", "count", stopped, "reason", reason)
	return stopped
}

// RunSweeper periodically drops captures that outlived the max age. It
// returns when ctx is done.
func (m *Manager) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(m.captureConfig().WithDefaults().SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	sessions := make([]*guildSession, 0, len(m.guilds))
	for _, gs := range m.guilds {
		sessions = append(sessions, gs)
	}
	m.mu.Unlock()

	swept := 0
	for _, gs := range sessions {
		swept += gs.tracker.Sweep(now)
	}
	if swept > 0 {
		slog.Info("stale captures swept", "count", swept)
	}
	return swept
}

func (m *Manager) Status() []GuildStatus {
	m.mu.Lock()
	sessions := make([]*guildSession, 0, len(m.guilds))
	for _, gs := range m.guilds {
		sessions = append(sessions, gs)
	}
	m.mu.Unlock()

	out := make([]GuildStatus, 0, len(sessions))
	for _, gs := range sessions {
		nowPlaying, _ := gs.player.NowPlaying()
		out = append(out, GuildStatus{
			GuildID:        gs.guildID,
			VoiceChannelID: gs.voiceChannelID,
			TextChannelID:  gs.textChannelID,
			PlayerState:    gs.player.State().String(),
			NowPlaying:     nowPlaying,
			QueueLength:    gs.queue.Len(),
			ActiveCaptures: gs.tracker.Active(),
			Thinking:       gs.thinking.Active(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}
