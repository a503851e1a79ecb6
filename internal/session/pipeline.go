package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foxseedlab/kotodama/internal/capture"
	"github.com/foxseedlab/kotodama/internal/discord"
	"github.com/foxseedlab/kotodama/internal/llm"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/thinking"
	"github.com/foxseedlab/kotodama/internal/tts"
	"github.com/foxseedlab/kotodama/internal/wakeword"
	"github.com/foxseedlab/kotodama/internal/webhook"
)

const (
	speechTitle     = "speech"
	recordTimeout   = 10 * time.Second
	packetLogPeriod = 500
)

// exchangeDraft carries what Gate and Think learned about a recording until
// Speak records the exchange.
type exchangeDraft struct {
	displayName string
	transcript  string
	prompt      string
}

type guildSession struct {
	manager        *Manager
	guildID        string
	voiceChannelID string
	textChannelID  string

	voice    discord.VoiceConnection
	player   *playback.Player
	queue    *playback.Queue
	tracker  *capture.Tracker
	thinking *thinking.Controller

	draftMu sync.Mutex
	drafts  map[string]exchangeDraft

	// knownBots is only touched by the receive goroutine.
	knownBots map[string]bool
	packets   int64
}

var _ capture.Pipeline = (*guildSession)(nil)

func (g *guildSession) receive() {
	g.voice.ReceiveAudio(g.handlePacket)
	slog.Info("voice receive loop ended", "guild_id", g.guildID, "received_opus_packets", g.packets)
}

// handlePacket routes one Opus packet. A packet from a user without an active
// capture starts one, unless the bot itself is speaking.
func (g *guildSession) handlePacket(userID string, opus []byte) {
	g.packets++
	if g.packets == 1 || g.packets%packetLogPeriod == 0 {
		slog.Debug("received opus packet", "guild_id", g.guildID, "user_id", userID, "packet_bytes", len(opus), "total_packets", g.packets)
	}
	if g.tracker.Push(userID, opus) {
		return
	}
	if g.tracker.Has(userID) || g.queue.Speaking() {
		return
	}
	if g.isBot(userID) {
		return
	}
	s, err := g.tracker.Start(userID, g.textChannelID)
	if err != nil {
		slog.Debug("capture not started", "error", err, "guild_id", g.guildID, "user_id", userID)
		return
	}
	s.Push(opus)
}

func (g *guildSession) isBot(userID string) bool {
	if userID == g.manager.getBotUserID() {
		return true
	}
	if isBot, ok := g.knownBots[userID]; ok {
		return isBot
	}
	isBot := g.manager.deps.Discord.IsBot(g.guildID, userID)
	g.knownBots[userID] = isBot
	return isBot
}

func (g *guildSession) Transcribe(ctx context.Context, rec capture.Recording) (string, error) {
	lang := g.manager.deps.Settings.Get(g.guildID).Lang
	return g.manager.deps.Transcriber.Transcribe(ctx, rec.PCM, lang)
}

// Gate logs the transcript to the guild's log channel before matching the
// wake word, so ignored utterances still show up.
func (g *guildSession) Gate(rec capture.Recording, transcript string) wakeword.Result {
	name := g.manager.deps.Discord.ResolveDisplayName(g.guildID, rec.UserID)
	slog.Info("transcript received", "guild_id", g.guildID, "user_id", rec.UserID, "display_name", name, "capture_id", rec.ID, "transcript", transcript)
	g.logToChannel(fmt.Sprintf(messageTranscriptLogFormat, name, transcript))

	res := g.manager.deps.Gate.Match(transcript, g.manager.deps.Settings.Get(g.guildID).Wake)
	if res.Triggered && res.Remainder != "" {
		g.draftMu.Lock()
		g.drafts[rec.ID] = exchangeDraft{displayName: name, transcript: transcript}
		g.draftMu.Unlock()
	}
	return res
}

func (g *guildSession) Acknowledge(ctx context.Context, _ capture.Recording) error {
	return g.speak(ctx, messageAcknowledge)
}

// Think records the user turn, starts the filler sound and asks the model.
// A model failure becomes the fallback reply, only cancellation is an error.
func (g *guildSession) Think(ctx context.Context, rec capture.Recording, prompt string) (string, error) {
	deps := g.manager.deps
	g.draftMu.Lock()
	draft := g.drafts[rec.ID]
	draft.prompt = prompt
	g.drafts[rec.ID] = draft
	g.draftMu.Unlock()

	deps.History.Push(g.textChannelID, llm.RoleUser, prompt)
	g.thinking.Start(ctx)

	persona := deps.Settings.Get(g.guildID).Persona
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: persona}}, deps.History.Get(g.textChannelID)...)

	start := time.Now()
	reply, err := deps.LLM.Reply(ctx, messages)
	deps.Metrics.ObserveLLM(ctx, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			g.thinking.Interrupt()
			g.dropDraft(rec.ID)
			return "", err
		}
		slog.Error("language model failed; using fallback reply", "error", err, "guild_id", g.guildID, "capture_id", rec.ID)
		reply = llm.FallbackReply
	}
	if reply == "" {
		reply = llm.EmptyReply
	}
	return reply, nil
}

// Speak interrupts the filler, records the reply and queues its speech.
func (g *guildSession) Speak(ctx context.Context, rec capture.Recording, reply string) error {
	deps := g.manager.deps
	g.thinking.Interrupt()
	draft := g.dropDraft(rec.ID)

	deps.History.Push(g.textChannelID, llm.RoleAssistant, reply)
	slog.Info("language model replied", "guild_id", g.guildID, "user_id", rec.UserID, "display_name", draft.displayName, "reply", reply)
	g.logToChannel(fmt.Sprintf(messageReplyLogFormat, reply))

	err := g.speak(ctx, reply)
	g.recordExchange(rec, draft, reply)
	return err
}

func (g *guildSession) dropDraft(recordingID string) exchangeDraft {
	g.draftMu.Lock()
	defer g.draftMu.Unlock()
	draft := g.drafts[recordingID]
	delete(g.drafts, recordingID)
	return draft
}

// speak synthesizes text with the guild's voice and queues it.
func (g *guildSession) speak(ctx context.Context, text string) error {
	deps := g.manager.deps
	s := deps.Settings.Get(g.guildID)
	voice := tts.Voice{
		LanguageCode: s.Voice.LanguageCode,
		Name:         s.Voice.Name,
		SSMLGender:   s.Voice.SSMLGender,
		Rate:         s.Rate,
		Pitch:        s.Pitch,
	}
	start := time.Now()
	speech, err := deps.TTS.Synthesize(ctx, text, voice)
	deps.Metrics.ObserveTTS(ctx, time.Since(start))
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	if err := g.queue.Enqueue(playback.SpeechItem(speechTitle, speech)); err != nil {
		return fmt.Errorf("enqueue speech: %w", err)
	}
	deps.Metrics.RecordPlaybackItem(ctx, "speech")
	return nil
}

// logToChannel posts to the configured log channel, falling back to the
// channel the session was joined from.
func (g *guildSession) logToChannel(content string) {
	content = stripMentions(content)
	dc := g.manager.deps.Discord
	logChannelID := g.manager.deps.Settings.Get(g.guildID).LogChannelID
	if logChannelID != "" {
		err := dc.SendChannelMessage(logChannelID, content)
		if err == nil {
			return
		}
		slog.Warn("failed to post to log channel; falling back", "error", err, "guild_id", g.guildID, "channel_id", logChannelID)
	}
	if g.textChannelID == "" {
		return
	}
	if err := dc.SendChannelMessage(g.textChannelID, content); err != nil {
		slog.Error("failed to post log message", "error", err, "guild_id", g.guildID, "channel_id", g.textChannelID)
	}
}

// recordExchange stores the round trip and notifies the webhook. Failures are
// logged only, the reply has already been queued.
func (g *guildSession) recordExchange(rec capture.Recording, draft exchangeDraft, reply string) {
	deps := g.manager.deps
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	spokenAt := rec.StartedAt.Add(rec.Duration)
	if deps.Conversations != nil {
		if err := deps.Conversations.InsertExchange(ctx, repository.Exchange{
			ID:          uuid.NewString(),
			GuildID:     g.guildID,
			ChannelID:   g.textChannelID,
			UserID:      rec.UserID,
			DisplayName: draft.displayName,
			Transcript:  draft.transcript,
			Prompt:      draft.prompt,
			Reply:       reply,
			SpokenAt:    spokenAt,
		}); err != nil {
			slog.Error("failed to record exchange", "error", err, "guild_id", g.guildID, "capture_id", rec.ID)
		}
	}
	if deps.Webhook != nil {
		if err := deps.Webhook.SendExchange(ctx, webhook.ExchangePayload{
			GuildID:     g.guildID,
			ChannelID:   g.textChannelID,
			UserID:      rec.UserID,
			DisplayName: draft.displayName,
			Transcript:  draft.transcript,
			Prompt:      draft.prompt,
			Reply:       reply,
			SpokenAt:    spokenAt,
		}); err != nil {
			slog.Error("failed to send exchange webhook", "error", err, "guild_id", g.guildID, "capture_id", rec.ID)
		}
	}
}
