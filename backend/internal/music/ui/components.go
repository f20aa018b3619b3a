package ui

import (
	"fmt"
	"strconv"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/settings"

	"github.com/bwmarrin/discordgo"
)

const (
	buttonsPerRow = 5
	maxSelectOpts = 25
)

func button(label, emoji string, style discordgo.ButtonStyle, customID string, disabled bool) discordgo.Button {
	b := discordgo.Button{
		Label:    label,
		Style:    style,
		CustomID: customID,
		Disabled: disabled,
	}
	if emoji != "" {
		b.Emoji = &discordgo.ComponentEmoji{Name: emoji}
	}
	return b
}

// Controls renders the buttons of the now-playing message. Everything but
// the connect button is disabled while the bot is not connected.
func Controls(snap music.Snapshot, playlists []settings.NamedPlaylist) []discordgo.MessageComponent {
	guild := snap.GuildID
	connected := snap.State == music.Connected
	off := !connected

	resume := off || snap.Paused || snap.Current == nil
	pause := button("Pause", "⏸️", discordgo.SecondaryButton, ID(ActionPause, guild), off)
	if resume {
		pause = button("Resume", "▶️", discordgo.SuccessButton, ID(ActionPause, guild), off)
	}

	loopStyle := discordgo.SecondaryButton
	switch snap.Loop {
	case music.LoopQueue:
		loopStyle = discordgo.PrimaryButton
	case music.LoopTrack:
		loopStyle = discordgo.SuccessButton
	}
	if off {
		loopStyle = discordgo.SecondaryButton
	}

	autoplayStyle := discordgo.SecondaryButton
	if connected && snap.Autoplay {
		autoplayStyle = discordgo.PrimaryButton
	}
	shuffleStyle := discordgo.SecondaryButton
	if connected && snap.Shuffle {
		shuffleStyle = discordgo.PrimaryButton
	}

	connect := button("Connect Bot", "🔊", discordgo.SuccessButton, ID(ActionConnect, guild), false)
	if connected {
		connect = button("Disconnect Bot", "🔇", discordgo.DangerButton, ID(ActionConnect, guild), false)
	}

	rows := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Down", "🔉", discordgo.SecondaryButton, ID(ActionVolumeDown, guild), off),
			button("Previous", "⏮️", discordgo.SecondaryButton, ID(ActionPrevious, guild), off),
			pause,
			button("Skip", "⏭️", discordgo.SecondaryButton, ID(ActionSkip, guild), off),
			button("Up", "🔊", discordgo.SecondaryButton, ID(ActionVolumeUp, guild), off),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Loop", "🔁", loopStyle, ID(ActionLoop, guild), off),
			button("Shuffle", "🔀", shuffleStyle, ID(ActionShuffle, guild), off),
			button("AutoPlay", "📻", autoplayStyle, ID(ActionAutoplay, guild), off),
			button("Stop", "⏹️", discordgo.SecondaryButton, ID(ActionStop, guild), off),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{connect}},
	}

	return append(rows, playlistRows(guild, playlists)...)
}

// playlistRows lays out one button per saved playlist, five per row.
// Playlist buttons stay enabled: pressing one joins like a chat request.
func playlistRows(guild string, playlists []settings.NamedPlaylist) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for i, pl := range playlists {
		if i == settings.MaxPlaylists {
			break
		}
		label := pl.ButtonLabel
		if label == "" {
			label = pl.Name
		}
		row = append(row, button(truncate(label, 80), pl.Emoji, discordgo.SecondaryButton, ID(ActionPlaylist, guild, pl.Name), false))
		if len(row) == buttonsPerRow {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

// QueueComponents renders the page select and the ◁ ⟳ ▷ buttons. The page
// travels in the custom id, so the controls survive restarts.
func QueueComponents(guildID string, page, total int) []discordgo.MessageComponent {
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	// a select holds at most 25 options; keep a window around the current page
	first := 1
	if total > maxSelectOpts {
		first = page - maxSelectOpts/2
		if first < 1 {
			first = 1
		}
		if first+maxSelectOpts-1 > total {
			first = total - maxSelectOpts + 1
		}
	}
	last := first + maxSelectOpts - 1
	if last > total {
		last = total
	}

	options := make([]discordgo.SelectMenuOption, 0, last-first+1)
	for i := first; i <= last; i++ {
		options = append(options, discordgo.SelectMenuOption{
			Label:   fmt.Sprintf("Page %d/%d", i, total),
			Value:   strconv.Itoa(i),
			Default: i == page,
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType: discordgo.StringSelectMenu,
				CustomID: ID(ActionQueuePage, guildID),
				Options:  options,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("◁", "", discordgo.SecondaryButton, ID(ActionQueuePrev, guildID, strconv.Itoa(page)), page == 1),
			button("⟳", "", discordgo.PrimaryButton, ID(ActionQueueRefresh, guildID, strconv.Itoa(page)), false),
			button("▷", "", discordgo.SecondaryButton, ID(ActionQueueNext, guildID, strconv.Itoa(page)), page >= total),
		}},
	}
}
