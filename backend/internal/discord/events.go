package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	ids := make([]string, 0, len(r.Guilds))
	for _, g := range r.Guilds {
		ids = append(ids, g.ID)
	}
	b.handleReady(r.User, ids)
}

// handleReady prunes settings of guilds the bot left while offline,
// registers the slash commands and resets every surface.
func (b *Bot) handleReady(user *discordgo.User, guildIDs []string) {
	if user != nil {
		b.logger.Info("Bot is ready",
			zap.String("username", user.Username),
			zap.String("user_id", user.ID),
			zap.Int("guilds", len(guildIDs)))
	}

	if pruned := b.settings.Prune(guildIDs); len(pruned) > 0 {
		b.logger.Info("Pruned settings of departed guilds", zap.Strings("guild_ids", pruned))
	}

	if err := b.platform.RegisterCommands("", b.Commands()); err != nil {
		b.logger.Error("Failed to register slash commands", zap.Error(err))
	} else {
		b.logger.Info("Registered slash commands", zap.Int("count", len(b.commands)))
	}

	b.surface.RefreshAll()
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	b.handleGuildDelete(g.Guild)
}

// handleGuildDelete drops everything kept for a guild the bot was removed
// from. Outages only mark the guild unavailable and keep the session.
func (b *Bot) handleGuildDelete(g *discordgo.Guild) {
	if g == nil || g.Unavailable {
		return
	}
	logger := b.logger.With(zap.String("guild_id", g.ID))

	if b.registry.Remove(g.ID) {
		logger.Info("Removed session of departed guild")
	}
	if err := b.settings.Delete(g.ID); err != nil {
		logger.Warn("Failed to delete settings of departed guild", zap.Error(err))
	}
	b.surface.Forget(g.ID)
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	b.handleMemberAdd(m.Member)
}

// handleMemberAdd gives new members the configured join role
func (b *Bot) handleMemberAdd(m *discordgo.Member) {
	if m == nil || m.User == nil || m.User.Bot {
		return
	}
	roleID := b.settings.Get(m.GuildID).JoinRoleID
	if roleID == "" {
		return
	}
	if err := b.platform.AddMemberRole(m.GuildID, m.User.ID, roleID); err != nil {
		b.logger.Warn("Failed to assign join role",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.User.ID),
			zap.Error(err))
	}
}

func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	b.handleVoiceState(v.VoiceState)
}

// handleVoiceState forwards the bot's own voice state; other members are ignored
func (b *Bot) handleVoiceState(v *discordgo.VoiceState) {
	if v == nil || v.UserID != b.platform.BotUserID() {
		return
	}
	b.logger.Debug("Bot voice state changed",
		zap.String("guild_id", v.GuildID),
		zap.String("channel_id", v.ChannelID))
	b.registry.HandleVoiceState(v.GuildID, v.SessionID, v.ChannelID)
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	b.registry.HandleVoiceServer(v.GuildID, v.Token, v.Endpoint)
}
