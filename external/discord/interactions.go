package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/kotodama/internal/discord"
)

var adminPermissions int64 = discordgo.PermissionManageGuild

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := interactionUserID(ic.Interaction)
		if userID == "" {
			return
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		handler(discordpkg.SlashCommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			IsAdmin:     memberIsAdmin(ic.Member),
			Options:     extractOptions(data),
			Responder:   &interactionResponder{session: s, interaction: ic.Interaction, command: data.Name},
		})
	})
}

func (c *Client) OverwriteSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	commands := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		commands = append(commands, toApplicationCommand(def))
	}
	registered, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	if err != nil {
		return err
	}
	slog.Info("slash commands registered", "guild_id", guildID, "count", len(registered))
	return nil
}

func toApplicationCommand(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	if def.AdminOnly {
		perms := adminPermissions
		cmd.DefaultMemberPermissions = &perms
	}
	for _, opt := range def.Options {
		cmd.Options = append(cmd.Options, toCommandOption(opt))
	}
	return cmd
}

func toCommandOption(opt discordpkg.CommandOption) *discordgo.ApplicationCommandOption {
	out := &discordgo.ApplicationCommandOption{
		Type:        optionType(opt.Type),
		Name:        opt.Name,
		Description: opt.Description,
		Required:    opt.Required,
		MinValue:    opt.MinValue,
		MaxLength:   opt.MaxLength,
	}
	if opt.MaxValue != nil {
		out.MaxValue = *opt.MaxValue
	}
	if opt.Type == discordpkg.OptionTextChannel {
		out.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
	}
	for _, choice := range opt.Choices {
		out.Choices = append(out.Choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  choice.Name,
			Value: choice.Value,
		})
	}
	return out
}

func optionType(t discordpkg.OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case discordpkg.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case discordpkg.OptionNumber:
		return discordgo.ApplicationCommandOptionNumber
	case discordpkg.OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	case discordpkg.OptionTextChannel:
		return discordgo.ApplicationCommandOptionChannel
	case discordpkg.OptionAttachment:
		return discordgo.ApplicationCommandOptionAttachment
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

// extractOptions flattens top-level options. Integers and numbers both
// arrive as float64 from the gateway JSON.
func extractOptions(data discordgo.ApplicationCommandInteractionData) map[string]any {
	out := make(map[string]any, len(data.Options))
	for _, opt := range data.Options {
		if opt == nil {
			continue
		}
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString, discordgo.ApplicationCommandOptionChannel:
			if v, ok := opt.Value.(string); ok {
				out[opt.Name] = v
			}
		case discordgo.ApplicationCommandOptionInteger, discordgo.ApplicationCommandOptionNumber:
			if v, ok := opt.Value.(float64); ok {
				out[opt.Name] = v
			}
		case discordgo.ApplicationCommandOptionBoolean:
			if v, ok := opt.Value.(bool); ok {
				out[opt.Name] = v
			}
		case discordgo.ApplicationCommandOptionAttachment:
			id, _ := opt.Value.(string)
			if data.Resolved == nil || id == "" {
				continue
			}
			if a, ok := data.Resolved.Attachments[id]; ok && a != nil {
				out[opt.Name] = discordpkg.Attachment{
					URL:         a.URL,
					Filename:    a.Filename,
					ContentType: a.ContentType,
				}
			}
		}
	}
	return out
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func memberIsAdmin(m *discordgo.Member) bool {
	if m == nil {
		return false
	}
	return m.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageGuild) != 0
}

type interactionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	command     string
}

func ephemeralFlag(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r *interactionResponder) Respond(content string, ephemeral bool) error {
	slog.Info("responding to slash interaction", "command", r.command, "guild_id", r.interaction.GuildID, "ephemeral", ephemeral)
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         content,
			Flags:           ephemeralFlag(ephemeral),
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

func (r *interactionResponder) Defer(ephemeral bool) error {
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: ephemeralFlag(ephemeral),
		},
	})
}

func (r *interactionResponder) Edit(content string) error {
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content:         &content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (r *interactionResponder) Followup(content string, ephemeral bool) error {
	_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content:         content,
		Flags:           ephemeralFlag(ephemeral),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}
