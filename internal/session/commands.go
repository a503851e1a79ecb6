package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/kotodama/internal/discord"
	"github.com/foxseedlab/kotodama/internal/media"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/settings"
)

const (
	commandJoin        = "join"
	commandLeave       = "leave"
	commandSetChannel  = "setchannel"
	commandVoice       = "voice"
	commandVoicePreset = "voicepreset"
	commandRate        = "rate"
	commandPitch       = "pitch"
	commandLang        = "lang"
	commandSettings    = "settings"
	commandWake        = "wake"
	commandSay         = "say"
	commandPlay        = "play"
	commandVoices      = "voices"
	commandPersona     = "persona"
	commandStop        = "stop"
	commandSkip        = "skip"
	commandQueue       = "queue"
)

const (
	commandTimeout = 2 * time.Minute
	// maxChoices is Discord's cap on static option choices.
	maxChoices     = 25
	personaReset   = "reset"
)

func float64Ptr(v float64) *float64 { return &v }

// SlashCommandDefinitions lists every command. Preset keys become the
// choices of /voicepreset.
func (m *Manager) SlashCommandDefinitions() []discord.SlashCommandDefinition {
	presetChoices := make([]discord.Choice, 0, len(m.deps.Presets))
	for _, key := range m.deps.Presets.Keys() {
		if len(presetChoices) == maxChoices {
			slog.Warn("too many voice presets for command choices; extra presets are hidden", "presets", len(m.deps.Presets))
			break
		}
		presetChoices = append(presetChoices, discord.Choice{Name: key, Value: key})
	}

	return []discord.SlashCommandDefinition{
		{Name: commandJoin, Description: "Join your current voice channel"},
		{Name: commandLeave, Description: "Leave the voice channel", AdminOnly: true},
		{
			Name: commandSetChannel, Description: "Set the text channel for logs (admin only)", AdminOnly: true,
			Options: []discord.CommandOption{
				{Type: discord.OptionTextChannel, Name: "channel", Description: "Text channel", Required: true},
			},
		},
		{
			Name: commandVoice, Description: "Set TTS voice",
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "language", Description: "Language (BCP-47, e.g., en-US)", Required: true},
				{Type: discord.OptionString, Name: "name", Description: "Voice name (optional)"},
			},
		},
		{
			Name: commandVoicePreset, Description: "Pick a preset voice", AdminOnly: true,
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "preset", Description: "Preset key", Required: true, Choices: presetChoices},
			},
		},
		{
			Name: commandRate, Description: "Set TTS speaking rate",
			Options: []discord.CommandOption{
				{Type: discord.OptionNumber, Name: "value", Description: "Rate", Required: true, MinValue: float64Ptr(settings.MinRate), MaxValue: float64Ptr(settings.MaxRate)},
			},
		},
		{
			Name: commandPitch, Description: "Set TTS pitch",
			Options: []discord.CommandOption{
				{Type: discord.OptionNumber, Name: "value", Description: "Pitch", Required: true, MinValue: float64Ptr(settings.MinPitch), MaxValue: float64Ptr(settings.MaxPitch)},
			},
		},
		{
			Name: commandLang, Description: "Set STT language code",
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "code", Description: "Language code (BCP-47)", Required: true},
			},
		},
		{Name: commandSettings, Description: "Show current guild settings"},
		{
			Name: commandWake, Description: "Enable/disable wake word",
			Options: []discord.CommandOption{
				{Type: discord.OptionBoolean, Name: "enabled", Description: "Turn wake word on/off", Required: true},
				{Type: discord.OptionString, Name: "word", Description: "Custom wake word"},
			},
		},
		{
			Name: commandSay, Description: "Speak custom text in the current voice channel",
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "text", Description: "What should I say?", Required: true},
			},
		},
		{
			Name: commandPlay, Description: "Play audio from a URL or attachment in the current voice channel",
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "url", Description: "Direct or YouTube URL"},
				{Type: discord.OptionAttachment, Name: "attachment", Description: "Upload an audio file"},
			},
		},
		{
			Name: commandVoices, Description: "List available TTS voices",
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "language", Description: "Filter by language (e.g., en-US)"},
			},
		},
		{
			Name: commandPersona, Description: "View or set the AI persona used for responses", AdminOnly: true,
			Options: []discord.CommandOption{
				{Type: discord.OptionString, Name: "text", Description: "New persona text (omit to view, \"reset\" for default)", MaxLength: settings.MaxPersonaLength},
			},
		},
		{Name: commandStop, Description: "Stop playback and clear the queue"},
		{Name: commandSkip, Description: "Skip the current track"},
		{Name: commandQueue, Description: "Show the current queue"},
	}
}

func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("slash command panicked", "panic", r, "command", event.CommandName, "guild_id", event.GuildID)
		}
	}()

	ctx, cancel := context.WithTimeout(m.ctx, commandTimeout)
	defer cancel()

	switch event.CommandName {
	case commandJoin:
		m.handleJoin(event)
	case commandLeave:
		m.handleLeave(event)
	case commandSetChannel:
		m.handleSetChannel(ctx, event)
	case commandVoice:
		m.handleVoice(ctx, event)
	case commandVoicePreset:
		m.handleVoicePreset(ctx, event)
	case commandRate:
		m.handleRate(ctx, event)
	case commandPitch:
		m.handlePitch(ctx, event)
	case commandLang:
		m.handleLang(ctx, event)
	case commandSettings:
		m.reply(event, settingsMessage(m.deps.Settings.Get(event.GuildID)))
	case commandWake:
		m.handleWake(ctx, event)
	case commandSay:
		m.handleSay(ctx, event)
	case commandPlay:
		m.handlePlay(ctx, event)
	case commandVoices:
		m.handleVoices(ctx, event)
	case commandPersona:
		m.handlePersona(ctx, event)
	case commandStop:
		m.handleStop(event)
	case commandSkip:
		m.handleSkip(event)
	case commandQueue:
		m.handleQueue(event)
	default:
		m.reply(event, messageUnknownCommand)
	}
}

func (m *Manager) reply(event discord.SlashCommandEvent, content string) {
	if err := event.Responder.Respond(content, true); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
	}
}

func (m *Manager) deferReply(event discord.SlashCommandEvent) bool {
	if err := event.Responder.Defer(true); err != nil {
		slog.Error("failed to defer slash command", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
		return false
	}
	return true
}

func (m *Manager) edit(event discord.SlashCommandEvent, content string) {
	if err := event.Responder.Edit(content); err != nil {
		slog.Error("failed to edit slash command response", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
	}
}

func (m *Manager) requireAdmin(event discord.SlashCommandEvent) bool {
	if event.IsAdmin {
		return true
	}
	m.reply(event, messageAdminsOnly)
	return false
}

// updateSettings saves the change and answers with ok(saved), or with the
// error when the write failed.
func (m *Manager) updateSettings(ctx context.Context, event discord.SlashCommandEvent, fn func(*settings.GuildSettings), ok func(settings.GuildSettings) string) {
	saved, err := m.deps.Settings.Update(ctx, event.GuildID, fn)
	if err != nil {
		slog.Error("failed to save guild settings", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
		m.reply(event, messageErrorPrefix+err.Error())
		return
	}
	m.reply(event, ok(saved))
}

// callerVoiceChannel answers the caller itself when the lookup fails or the
// caller is not in voice. ok is false in both cases.
func (m *Manager) callerVoiceChannel(event discord.SlashCommandEvent, notInVoice string) (string, bool) {
	channelID, err := m.deps.Discord.GetUserVoiceChannelID(event.GuildID, event.UserID)
	if err != nil {
		slog.Error("failed to resolve caller voice channel", "error", err, "guild_id", event.GuildID, "user_id", event.UserID)
		m.reply(event, messageVoiceLookupFailed)
		return "", false
	}
	if channelID == "" {
		m.reply(event, notInVoice)
		return "", false
	}
	return channelID, true
}

func (m *Manager) handleJoin(event discord.SlashCommandEvent) {
	if gs, ok := m.session(event.GuildID); ok {
		m.reply(event, fmt.Sprintf(messageAlreadyConnected, gs.voiceChannelID))
		return
	}
	channelID, ok := m.callerVoiceChannel(event, messageJoinVoiceFirst)
	if !ok {
		return
	}
	if !m.deferReply(event) {
		return
	}
	gs, err := m.startSession(event.GuildID, channelID, event.ChannelID)
	switch {
	case errors.Is(err, errAlreadyConnected):
		m.edit(event, fmt.Sprintf(messageAlreadyConnected, gs.voiceChannelID))
	case err != nil:
		slog.Error("failed to start guild session", "error", err, "guild_id", event.GuildID, "channel_id", channelID)
		m.edit(event, messageJoinFailed)
	default:
		m.edit(event, fmt.Sprintf(messageJoined, channelID))
	}
}

func (m *Manager) handleLeave(event discord.SlashCommandEvent) {
	if !m.requireAdmin(event) {
		return
	}
	if !m.stopSession(event.GuildID, stopReasonLeaveCommand) {
		m.reply(event, messageNotInVoice)
		return
	}
	m.reply(event, messageLeft)
}

func (m *Manager) handleSetChannel(ctx context.Context, event discord.SlashCommandEvent) {
	if !m.requireAdmin(event) {
		return
	}
	channelID, ok := event.String("channel")
	if !ok || channelID == "" {
		m.reply(event, messageChooseTextChannel)
		return
	}
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.LogChannelID = channelID
	}, func(settings.GuildSettings) string {
		return fmt.Sprintf(messageLogChannelSet, channelID)
	})
}

func (m *Manager) handleVoice(ctx context.Context, event discord.SlashCommandEvent) {
	language, ok := event.String("language")
	language = strings.TrimSpace(language)
	if !ok || language == "" {
		m.reply(event, fmt.Sprintf(messageMissingOption, "language"))
		return
	}
	name, _ := event.String("name")
	name = strings.TrimSpace(name)
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Voice = settings.Voice{LanguageCode: language, Name: name}
	}, func(settings.GuildSettings) string {
		return voiceSetMessage(language, name)
	})
}

func (m *Manager) handleVoicePreset(ctx context.Context, event discord.SlashCommandEvent) {
	if !m.requireAdmin(event) {
		return
	}
	key, _ := event.String("preset")
	preset, ok := m.deps.Presets[key]
	if !ok {
		m.reply(event, messageInvalidPreset)
		return
	}
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Voice = preset
	}, func(settings.GuildSettings) string {
		return fmt.Sprintf(messagePresetSet, key)
	})
}

func (m *Manager) handleRate(ctx context.Context, event discord.SlashCommandEvent) {
	v, ok := event.Number("value")
	if !ok {
		m.reply(event, fmt.Sprintf(messageMissingOption, "value"))
		return
	}
	rate := settings.ClampRate(v)
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Rate = rate
	}, func(settings.GuildSettings) string {
		return fmt.Sprintf(messageRateSet, formatNumber(rate))
	})
}

func (m *Manager) handlePitch(ctx context.Context, event discord.SlashCommandEvent) {
	v, ok := event.Number("value")
	if !ok {
		m.reply(event, fmt.Sprintf(messageMissingOption, "value"))
		return
	}
	pitch := settings.ClampPitch(v)
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Pitch = pitch
	}, func(settings.GuildSettings) string {
		return fmt.Sprintf(messagePitchSet, formatNumber(pitch))
	})
}

func (m *Manager) handleLang(ctx context.Context, event discord.SlashCommandEvent) {
	code, _ := event.String("code")
	code = strings.TrimSpace(code)
	if code == "" {
		m.reply(event, fmt.Sprintf(messageMissingOption, "code"))
		return
	}
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Lang = code
	}, func(settings.GuildSettings) string {
		return fmt.Sprintf(messageLangSet, code)
	})
}

func (m *Manager) handleWake(ctx context.Context, event discord.SlashCommandEvent) {
	enabled, ok := event.Bool("enabled")
	if !ok {
		m.reply(event, fmt.Sprintf(messageMissingOption, "enabled"))
		return
	}
	word, _ := event.String("word")
	word = strings.TrimSpace(word)
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Wake.Enabled = enabled
		if word != "" {
			s.Wake.Word = word
		}
		if s.Wake.Word == "" {
			s.Wake.Word = settings.DefaultWakeWord
		}
	}, func(saved settings.GuildSettings) string {
		return wakeMessage(saved.Wake)
	})
}

func (m *Manager) handleSay(ctx context.Context, event discord.SlashCommandEvent) {
	text, _ := event.String("text")
	text = strings.TrimSpace(text)
	if text == "" {
		m.reply(event, fmt.Sprintf(messageMissingOption, "text"))
		return
	}
	gs, ok := m.session(event.GuildID)
	if !ok {
		m.reply(event, messageSayNotInVoice)
		return
	}
	if !m.deferReply(event) {
		return
	}
	if err := gs.speak(ctx, text); err != nil {
		slog.Error("say command failed", "error", err, "guild_id", event.GuildID)
		m.edit(event, messageSpeakFailed+err.Error())
		return
	}
	m.edit(event, messageSpeaking)
}

func (m *Manager) handlePlay(ctx context.Context, event discord.SlashCommandEvent) {
	req := media.Request{}
	if url, ok := event.String("url"); ok {
		req.URL = strings.TrimSpace(url)
	}
	if a, ok := event.Attachment("attachment"); ok {
		req.Attachment = &media.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType}
	}
	if req.URL == "" && req.Attachment == nil {
		m.reply(event, messagePlayNeedsSource)
		return
	}

	gs, joined := m.session(event.GuildID)
	channelID := ""
	if !joined {
		var ok bool
		if channelID, ok = m.callerVoiceChannel(event, messagePlayJoinFirst); !ok {
			return
		}
	}
	if !m.deferReply(event) {
		return
	}
	if !joined {
		var err error
		gs, err = m.startSession(event.GuildID, channelID, event.ChannelID)
		if err != nil && !errors.Is(err, errAlreadyConnected) {
			slog.Error("failed to start guild session for play", "error", err, "guild_id", event.GuildID, "channel_id", channelID)
			m.edit(event, messageJoinFailed)
			return
		}
	}

	res, err := m.deps.Media.Resolve(ctx, req)
	if err != nil {
		slog.Error("play command failed", "error", err, "guild_id", event.GuildID)
		m.edit(event, playFailureMessage(err))
		return
	}
	if err := gs.queue.Enqueue(playback.ResourceItem(res.Title, res.Stream)); err != nil {
		slog.Error("failed to enqueue media", "error", err, "guild_id", event.GuildID)
		m.edit(event, messagePlayFailed+err.Error())
		return
	}
	m.deps.Metrics.RecordPlaybackItem(ctx, "media")
	slog.Info("media queued", "guild_id", event.GuildID, "title", res.Title, "strategy", res.Source)
	m.edit(event, fmt.Sprintf(messageQueued, res.Title))
}

func playFailureMessage(err error) string {
	switch {
	case errors.Is(err, media.ErrInvalidURL), errors.Is(err, media.ErrUnsupportedFormat):
		return messagePlayUnsupported
	case errors.Is(err, media.ErrAccessDenied):
		return messagePlayAccessDenied
	case errors.Is(err, media.ErrTimeout):
		return messagePlayTimeout
	default:
		return messagePlayFailed + err.Error()
	}
}

func (m *Manager) handleVoices(ctx context.Context, event discord.SlashCommandEvent) {
	language, _ := event.String("language")
	language = strings.TrimSpace(language)
	if !m.deferReply(event) {
		return
	}
	voices, err := m.deps.TTS.ListVoices(ctx, language)
	if err != nil {
		slog.Error("failed to list voices", "error", err, "guild_id", event.GuildID, "language", language)
		m.edit(event, messageVoiceListingFailed+err.Error())
		return
	}
	if len(voices) == 0 {
		if language != "" {
			m.edit(event, fmt.Sprintf(messageNoVoicesFor, language))
		} else {
			m.edit(event, messageNoVoices)
		}
		return
	}

	lines := make([]string, 0, len(voices))
	for _, v := range voices {
		name := v.Name
		if name == "" {
			name = "(unnamed)"
		}
		lc := ""
		if len(v.LanguageCodes) > 0 {
			lc = v.LanguageCodes[0]
		}
		lines = append(lines, fmt.Sprintf("%s — %s — %s", name, lc, v.SSMLGender))
	}
	chunks := chunkLines(lines, voicesChunkLimit)
	header := fmt.Sprintf("Found %d voices", len(voices))
	if language != "" {
		header += " for " + language
	}
	m.edit(event, header+".\n"+chunks[0])
	for _, chunk := range chunks[1:] {
		if err := event.Responder.Followup(chunk, true); err != nil {
			slog.Error("failed to send voices follow-up", "error", err, "guild_id", event.GuildID)
			return
		}
	}
}

func (m *Manager) handlePersona(ctx context.Context, event discord.SlashCommandEvent) {
	if !m.requireAdmin(event) {
		return
	}
	text, _ := event.String("text")
	text = strings.TrimSpace(text)
	if text == "" {
		m.reply(event, messagePersonaCurrent+m.deps.Settings.Get(event.GuildID).Persona)
		return
	}
	if strings.EqualFold(text, personaReset) {
		m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
			s.Persona = settings.DefaultPersona
		}, func(settings.GuildSettings) string {
			return messagePersonaReset
		})
		return
	}
	m.updateSettings(ctx, event, func(s *settings.GuildSettings) {
		s.Persona = settings.TruncatePersona(text)
	}, func(settings.GuildSettings) string {
		return messagePersonaUpdated
	})
}

func (m *Manager) handleStop(event discord.SlashCommandEvent) {
	gs, ok := m.session(event.GuildID)
	if !ok {
		m.reply(event, messageNotInVoiceChannel)
		return
	}
	cleared := gs.queue.Clear()
	gs.player.Stop(true)
	slog.Info("playback stopped", "guild_id", event.GuildID, "cleared_items", cleared)
	m.reply(event, messageStopped)
}

func (m *Manager) handleSkip(event discord.SlashCommandEvent) {
	gs, ok := m.session(event.GuildID)
	if !ok {
		m.reply(event, messageNotInVoiceChannel)
		return
	}
	if gs.queue.Len() == 0 && gs.player.State() == playback.StateIdle {
		m.reply(event, messageNothingToSkip)
		return
	}
	gs.player.Stop(true)
	m.reply(event, messageSkipped)
}

func (m *Manager) handleQueue(event discord.SlashCommandEvent) {
	gs, ok := m.session(event.GuildID)
	if !ok {
		m.reply(event, messageQueueEmpty)
		return
	}
	nowPlaying, _ := gs.player.NowPlaying()
	m.reply(event, queueMessage(nowPlaying, gs.queue.Titles()))
}
