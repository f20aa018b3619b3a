package discord

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"vibebot/backend/internal/music/ui"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	maxClearMessages = 100
	// Discord refuses bulk deletes of messages older than two weeks
	bulkDeleteMaxAge = 14*24*time.Hour - time.Minute
)

// invitePermissions cover everything the bot does in a server
const invitePermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionEmbedLinks |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionManageMessages |
	discordgo.PermissionManageChannels |
	discordgo.PermissionManageWebhooks |
	discordgo.PermissionManageRoles |
	discordgo.PermissionVoiceConnect |
	discordgo.PermissionVoiceSpeak

func generalCommands() []slashCommand {
	return []slashCommand{
		{
			def: &discordgo.ApplicationCommand{
				Name:        "invite",
				Description: "Invite VibeBot to your server.",
			},
			handle:   (*Bot).cmdInvite,
			anywhere: true,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        "ping",
				Description: "Show the bot's latency.",
			},
			handle:   (*Bot).cmdPing,
			anywhere: true,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "clear",
				Description:              "Delete recent messages in this channel.",
				DefaultMemberPermissions: perms(discordgo.PermissionManageMessages),
				DMPermission:             noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "number",
					Description: "How many messages to delete, 1 to 100.",
					Required:    true,
					MinValue:    minValue(1),
					MaxValue:    maxClearMessages,
				}},
			},
			handle: (*Bot).cmdClear,
		},
	}
}

// defaultInviteURL is the OAuth2 link used when no invite link is configured
func defaultInviteURL(botID string) string {
	q := url.Values{}
	q.Set("client_id", botID)
	q.Set("permissions", strconv.FormatInt(invitePermissions, 10))
	q.Set("scope", "bot applications.commands")
	return "https://discord.com/oauth2/authorize?" + q.Encode()
}

func (b *Bot) cmdInvite(r *request, _ optionMap) error {
	link := b.inviteURL
	if link == "" {
		link = defaultInviteURL(b.platform.BotUserID())
	}
	return r.replyWith(ui.InviteEmbed(b.platform.BotAvatarURL()), ui.InviteComponents(link), false)
}

func (b *Bot) cmdPing(r *request, _ optionMap) error {
	start := b.now()
	if _, err := b.platform.FetchBotUser(); err != nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to reach the Discord API", err)
	}
	api := b.now().Sub(start)

	shard, count := b.platform.Shard()
	return r.reply(ui.PingEmbed(ui.PingStats{
		Uptime:     b.now().Sub(b.started),
		Gateway:    b.platform.GatewayLatency(),
		API:        api,
		Shard:      shard,
		ShardCount: count,
	}), false)
}

// cmdClear deletes the newest messages of the channel. Messages too old
// for a bulk delete are removed one by one.
func (b *Bot) cmdClear(r *request, opts optionMap) error {
	n := opts.intValue("number", 0)
	if n < 1 || n > maxClearMessages {
		return apperrors.NewBaseError(apperrors.ErrorTypeInput,
			fmt.Sprintf("number must be between 1 and %d", maxClearMessages), nil)
	}
	if err := r.deferReply(true); err != nil {
		return err
	}

	channelID := r.i.ChannelID
	msgs, err := b.platform.RecentMessages(channelID, n)
	if err != nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to read channel messages", err)
	}

	cutoff := b.now().Add(-bulkDeleteMaxAge)
	var recent, old []string
	for _, m := range msgs {
		if m.Timestamp.After(cutoff) {
			recent = append(recent, m.ID)
		} else {
			old = append(old, m.ID)
		}
	}

	deleted := 0
	if len(recent) > 0 {
		if err := b.platform.BulkDelete(channelID, recent); err != nil {
			return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to delete messages", err)
		}
		deleted += len(recent)
	}
	for _, id := range old {
		if err := b.platform.DeleteMessage(channelID, id); err != nil {
			r.logger.Debug("Failed to delete old message", zap.String("message_id", id), zap.Error(err))
			continue
		}
		deleted++
	}

	r.logger.Info("Messages cleared",
		zap.String("channel_id", channelID),
		zap.String("user_id", r.actor.UserID),
		zap.Int("deleted", deleted))
	if deleted == 0 {
		return r.info("I couldn't find any messages to delete.")
	}
	return r.success(fmt.Sprintf("Successfully deleted `%d` messages.", deleted))
}
