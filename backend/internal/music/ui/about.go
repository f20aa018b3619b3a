package ui

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// PingStats are the numbers shown by /ping
type PingStats struct {
	Uptime     time.Duration
	Gateway    time.Duration
	API        time.Duration
	Shard      int
	ShardCount int
}

// FormatUptime renders d as "1d 2h 3m 4s"
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs%60)
}

func millis(d time.Duration) string {
	return fmt.Sprintf("`%d ms`", d.Milliseconds())
}

// PingEmbed renders the latency report
func PingEmbed(stats PingStats) *discordgo.MessageEmbed {
	shards := stats.ShardCount
	if shards < 1 {
		shards = 1
	}
	return &discordgo.MessageEmbed{
		Title:       "🏓 Pong!",
		Description: "Here are the VibeBot's latency stats.",
		Color:       ColorVibe,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Uptime", Value: "`" + FormatUptime(stats.Uptime) + "`", Inline: false},
			{Name: "Bot Latency", Value: millis(stats.Gateway), Inline: true},
			{Name: "API Latency", Value: millis(stats.API), Inline: true},
			{Name: "Shard", Value: fmt.Sprintf("`%d/%d`", stats.Shard+1, shards), Inline: true},
		},
	}
}

// InviteEmbed asks to add the bot to another server
func InviteEmbed(avatarURL string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "✨ Invite VibeBot to Your Server!",
		Description: "Click the button below to invite **VibeBot** and enjoy music on your server!",
		Color:       ColorVibe,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Thank you for choosing VibeBot! 🎵"},
	}
	if avatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatarURL}
	}
	return embed
}

// InviteComponents is the link button under the invite embed
func InviteComponents(url string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label: "Invite VibeBot to your server",
				Style: discordgo.LinkButton,
				URL:   url,
				Emoji: &discordgo.ComponentEmoji{Name: "🔗"},
			},
		}},
	}
}
