package ui

import (
	"fmt"
	"strings"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/settings"

	"github.com/bwmarrin/discordgo"
)

const (
	// Embed colors
	ColorSuccess = 0x2ecc71 // Green
	ColorError   = 0xe74c3c // Red
	ColorWarning = 0xe67e22 // Orange
	ColorVibe    = 0x894cc1 // Purple
	ColorGray    = 0x95a5a6 // Gray

	// TracksPerPage is the page size of the queue embed
	TracksPerPage = 10

	upNextCount = 5
	maxTitleLen = 60
)

func sourceIcon(source string) string {
	switch source {
	case "youtube":
		return "▶️"
	case "spotify":
		return "🎵"
	case "soundcloud":
		return "🎧"
	case "twitch":
		return "📺"
	default:
		return "🎶"
	}
}

func sourceName(source string) string {
	switch source {
	case "youtube":
		return "YouTube"
	case "spotify":
		return "Spotify"
	case "soundcloud":
		return "SoundCloud"
	case "twitch":
		return "Twitch"
	case "bandcamp":
		return "Bandcamp"
	case "http":
		return "Direct link"
	default:
		return "Unknown"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// trackLink renders a title as a markdown link when the track has a URI
func trackLink(t music.Track) string {
	title := truncate(escape(t.Title), maxTitleLen)
	if t.URI == "" {
		return "**" + title + "**"
	}
	return fmt.Sprintf("**[%s](%s)**", title, t.URI)
}

func escape(s string) string {
	r := strings.NewReplacer("[", "(", "]", ")", "*", "\\*", "_", "\\_", "`", "'")
	return r.Replace(s)
}

func requester(t music.Track) string {
	switch t.RequesterID {
	case "":
		return "Unknown"
	case music.AutoplayRequester:
		return "AutoPlay"
	default:
		return "<@" + t.RequesterID + ">"
	}
}

func loopText(m music.LoopMode) string {
	switch m {
	case music.LoopTrack:
		return "Track"
	case music.LoopQueue:
		return "Queue"
	default:
		return "Off"
	}
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// footerText summarises the queue, total duration and volume
func footerText(snap music.Snapshot) string {
	return fmt.Sprintf("%d songs in queue | Duration: %s | Volume: %d%%",
		len(snap.Queue), music.FormatDuration(snap.QueueDuration()), snap.Volume)
}

// NowPlayingEmbed renders the body of the now-playing message. A session
// without a current track renders the default body.
func NowPlayingEmbed(snap music.Snapshot, defaultImageURL string) *discordgo.MessageEmbed {
	if snap.Current == nil {
		embed := DefaultEmbed(defaultImageURL)
		if len(snap.Queue) > 0 || snap.State == music.Connected {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: footerText(snap)}
		}
		return embed
	}

	cur := *snap.Current
	title := "🎵 Now Playing"
	if snap.Paused {
		title = "⏸️ Paused"
	}

	var image *discordgo.MessageEmbedImage
	if cur.ArtworkURL != "" {
		image = &discordgo.MessageEmbedImage{URL: cur.ArtworkURL}
	}

	description := trackLink(cur)
	if cur.Author != "" {
		description += "\nby " + escape(cur.Author)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "⏱️ Duration", Value: cur.DurationText(), Inline: true},
		{Name: "👤 Requested by", Value: requester(cur), Inline: true},
		{Name: fmt.Sprintf("%s Source", sourceIcon(cur.SourceName)), Value: sourceName(cur.SourceName), Inline: true},
		{Name: "🔁 Loop", Value: loopText(snap.Loop), Inline: true},
		{Name: "📻 AutoPlay", Value: onOff(snap.Autoplay), Inline: true},
		{Name: "🔀 Shuffle", Value: onOff(snap.Shuffle), Inline: true},
	}

	if len(snap.Queue) > 0 {
		var next strings.Builder
		for i, t := range snap.Queue {
			if i == upNextCount {
				fmt.Fprintf(&next, "*...and %d more*", len(snap.Queue)-upNextCount)
				break
			}
			fmt.Fprintf(&next, "`%d.` %s `%s`\n", i+1, truncate(escape(t.Title), maxTitleLen), t.DurationText())
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "📋 Up Next", Value: next.String()})
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       ColorVibe,
		Image:       image,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText(snap)},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// DefaultEmbed is the body shown while nothing plays
func DefaultEmbed(imageURL string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "No song playing currently",
		Description: "Join a voice channel and send a song name or link in this channel to start playing.\n" +
			"Send several lines to queue several songs at once.",
		Color: ColorVibe,
	}
	if imageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
	}
	return embed
}

// PageCount returns the number of queue pages, at least 1
func PageCount(queueLen int) int {
	if queueLen <= 0 {
		return 1
	}
	return (queueLen + TracksPerPage - 1) / TracksPerPage
}

// ClampPage bounds a 1-indexed page to the pages the queue has
func ClampPage(page, queueLen int) int {
	total := PageCount(queueLen)
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// QueueEmbed renders one 1-indexed page of the queue
func QueueEmbed(snap music.Snapshot, page int) *discordgo.MessageEmbed {
	if len(snap.Queue) == 0 && snap.Current == nil {
		return &discordgo.MessageEmbed{
			Title:       "📋 Queue",
			Description: "The queue is empty!",
			Color:       ColorGray,
			Timestamp:   time.Now().Format(time.RFC3339),
		}
	}

	page = ClampPage(page, len(snap.Queue))
	total := PageCount(len(snap.Queue))
	start := (page - 1) * TracksPerPage
	end := start + TracksPerPage
	if end > len(snap.Queue) {
		end = len(snap.Queue)
	}

	var b strings.Builder
	if snap.Current != nil {
		fmt.Fprintf(&b, "**Now playing:** %s `%s`\n\n", trackLink(*snap.Current), snap.Current.DurationText())
	}
	if len(snap.Queue) == 0 {
		b.WriteString("Nothing queued.")
	}
	for i := start; i < end; i++ {
		t := snap.Queue[i]
		fmt.Fprintf(&b, "`%d.` %s %s `%s` %s\n",
			i+1, sourceIcon(t.SourceName), trackLink(t), t.DurationText(), requester(t))
	}

	return &discordgo.MessageEmbed{
		Title:       "📋 Queue",
		Description: b.String(),
		Color:       ColorVibe,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d | %s", page, total, footerText(snap)),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// SettingsEmbed shows a guild's stored configuration
func SettingsEmbed(cfg *settings.GuildConfig) *discordgo.MessageEmbed {
	channel := "Not set up, use `/setup`"
	if cfg.MusicChannelID != "" {
		channel = "<#" + cfg.MusicChannelID + ">"
	}
	disconnect := "Off"
	if cfg.AutoDisconnect {
		disconnect = fmt.Sprintf("After %s idle", music.FormatDuration(time.Duration(cfg.IdleTimeoutSecs)*time.Second))
	}
	joinRole := "None"
	if cfg.JoinRoleID != "" {
		joinRole = "<@&" + cfg.JoinRoleID + ">"
	}

	return &discordgo.MessageEmbed{
		Title: "⚙️ Settings",
		Color: ColorVibe,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Music channel", Value: channel, Inline: true},
			{Name: "Default volume", Value: fmt.Sprintf("%d%%", cfg.DefaultVolume), Inline: true},
			{Name: "Default autoplay", Value: onOff(cfg.DefaultAutoplay), Inline: true},
			{Name: "Default loop", Value: loopText(music.LoopModeFromSetting(cfg.DefaultLoopMode)), Inline: true},
			{Name: "Auto-disconnect", Value: disconnect, Inline: true},
			{Name: "Join role", Value: joinRole, Inline: true},
			{Name: "Playlists", Value: fmt.Sprintf("%d/%d", len(cfg.Playlists), settings.MaxPlaylists), Inline: true},
		},
	}
}

// PlaylistsEmbed lists the saved playlists
func PlaylistsEmbed(cfg *settings.GuildConfig) *discordgo.MessageEmbed {
	pls := cfg.SortedPlaylists()
	if len(pls) == 0 {
		return InfoEmbed("No playlists saved yet, add one with `/pl add`.")
	}

	var b strings.Builder
	for _, pl := range pls {
		label := pl.Name
		if pl.Emoji != "" {
			label = pl.Emoji + " " + label
		}
		fmt.Fprintf(&b, "**%s**: %s", escape(label), pl.URL)
		if pl.ShuffleOnPlay {
			b.WriteString(" 🔀")
		}
		b.WriteString("\n")
	}

	return &discordgo.MessageEmbed{
		Title:       "🎶 Playlists",
		Description: b.String(),
		Color:       ColorVibe,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d/%d playlists", len(pls), settings.MaxPlaylists),
		},
	}
}

// ErrorEmbed is a short red reply
func ErrorEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorError}
}

// WarningEmbed is a short orange reply
func WarningEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorWarning}
}

// SuccessEmbed is a short green reply
func SuccessEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorSuccess}
}

// InfoEmbed is a short purple reply
func InfoEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorVibe}
}
