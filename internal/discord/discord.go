package discord

import (
	"context"
	"errors"
)

var ErrNotInVoice = errors.New("user is not in a voice channel")

type OptionType int

const (
	OptionString OptionType = iota
	OptionInteger
	OptionNumber
	OptionBoolean
	OptionTextChannel
	OptionAttachment
)

type Choice struct {
	Name  string
	Value string
}

type CommandOption struct {
	Type        OptionType
	Name        string
	Description string
	Required    bool
	Choices     []Choice
	MinValue    *float64
	MaxValue    *float64
	MaxLength   int
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []CommandOption
	// AdminOnly hides the command from members without Manage Server.
	AdminOnly bool
}

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Responder answers one interaction. Respond must be called first unless
// Defer was, after which Edit and Followup apply.
type Responder interface {
	Respond(content string, ephemeral bool) error
	Defer(ephemeral bool) error
	Edit(content string) error
	Followup(content string, ephemeral bool) error
}

type SlashCommandEvent struct {
	GuildID     string
	ChannelID   string
	CommandName string
	UserID      string
	// IsAdmin is true for Administrator or Manage Server.
	IsAdmin bool
	// Options holds string, float64, bool, or Attachment values by option name.
	// Channel options hold the channel id as a string.
	Options   map[string]any
	Responder Responder
}

func (e SlashCommandEvent) String(name string) (string, bool) {
	v, ok := e.Options[name].(string)
	return v, ok
}

func (e SlashCommandEvent) Number(name string) (float64, bool) {
	v, ok := e.Options[name].(float64)
	return v, ok
}

func (e SlashCommandEvent) Bool(name string) (bool, bool) {
	v, ok := e.Options[name].(bool)
	return v, ok
}

func (e SlashCommandEvent) Attachment(name string) (Attachment, bool) {
	v, ok := e.Options[name].(Attachment)
	return v, ok
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	SendChannelMessage(channelID, content string) error
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	// OverwriteSlashCommands replaces the whole command set in one call. An
	// empty guildID registers global commands.
	OverwriteSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	GetBotUserID() (string, error)
	// ResolveDisplayName prefers the guild nickname, then the global name,
	// then the username, then the id.
	ResolveDisplayName(guildID, userID string) string
	IsBot(guildID, userID string) bool
}

type VoiceConnection interface {
	ChannelID() string
	SendOpus(frame []byte) error
	SetSpeaking(speaking bool) error
	// ReceiveAudio blocks, delivering Opus packets per user until the
	// connection closes.
	ReceiveAudio(callback func(userID string, opus []byte))
	Disconnect() error
}
