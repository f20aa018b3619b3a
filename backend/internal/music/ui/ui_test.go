package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/settings"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrack(id string) music.Track {
	return music.Track{
		Identifier:  id,
		Title:       "Song " + id,
		Author:      "Artist " + id,
		URI:         "https://example.com/" + id,
		Duration:    3 * time.Minute,
		SourceName:  "youtube",
		RequesterID: "42",
	}
}

func TestCustomID_RoundTrip(t *testing.T) {
	tests := []struct {
		raw      string
		expected CustomID
		ok       bool
	}{
		{ID(ActionSkip, "1"), CustomID{Action: ActionSkip, GuildID: "1"}, true},
		{ID(ActionPlaylist, "1", "chill: late night"), CustomID{Action: ActionPlaylist, GuildID: "1", Arg: "chill: late night"}, true},
		{ID(ActionQueueNext, "9", "3"), CustomID{Action: ActionQueueNext, GuildID: "9", Arg: "3"}, true},
		{"other:skip:1", CustomID{}, false},
		{"vibebot:skip", CustomID{}, false},
		{"vibebot::1", CustomID{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseID(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}

	long := ID(ActionPlaylist, "123456789012345678", strings.Repeat("x", 200))
	assert.Len(t, long, 100)
}

func TestCustomID_Page(t *testing.T) {
	assert.Equal(t, 3, CustomID{Arg: "3"}.Page())
	assert.Equal(t, 1, CustomID{Arg: "zero"}.Page())
	assert.Equal(t, 1, CustomID{Arg: "-2"}.Page())
}

func buttons(rows []discordgo.MessageComponent) []discordgo.Button {
	var out []discordgo.Button
	for _, r := range rows {
		for _, c := range r.(discordgo.ActionsRow).Components {
			if b, ok := c.(discordgo.Button); ok {
				out = append(out, b)
			}
		}
	}
	return out
}

func byLabel(bs []discordgo.Button, label string) discordgo.Button {
	for _, b := range bs {
		if b.Label == label {
			return b
		}
	}
	return discordgo.Button{}
}

func TestControls_Disconnected(t *testing.T) {
	rows := Controls(music.Snapshot{GuildID: "g1", State: music.Disconnected}, nil)
	require.Len(t, rows, 3)

	bs := buttons(rows)
	for _, b := range bs {
		if b.Label == "Connect Bot" {
			assert.False(t, b.Disabled)
			assert.Equal(t, discordgo.SuccessButton, b.Style)
			continue
		}
		assert.True(t, b.Disabled, b.Label)
	}
	assert.Equal(t, discordgo.SuccessButton, byLabel(bs, "Resume").Style)
}

func TestControls_Connected(t *testing.T) {
	cur := testTrack("a")
	tests := []struct {
		name  string
		snap  music.Snapshot
		check func(t *testing.T, bs []discordgo.Button)
	}{
		{
			name: "playing shows pause",
			snap: music.Snapshot{Current: &cur},
			check: func(t *testing.T, bs []discordgo.Button) {
				assert.Equal(t, discordgo.SecondaryButton, byLabel(bs, "Pause").Style)
				assert.Equal(t, discordgo.DangerButton, byLabel(bs, "Disconnect Bot").Style)
			},
		},
		{
			name: "paused shows resume",
			snap: music.Snapshot{Current: &cur, Paused: true},
			check: func(t *testing.T, bs []discordgo.Button) {
				assert.Equal(t, discordgo.SuccessButton, byLabel(bs, "Resume").Style)
			},
		},
		{
			name: "loop queue and autoplay are highlighted",
			snap: music.Snapshot{Loop: music.LoopQueue, Autoplay: true, Shuffle: true},
			check: func(t *testing.T, bs []discordgo.Button) {
				assert.Equal(t, discordgo.PrimaryButton, byLabel(bs, "Loop").Style)
				assert.Equal(t, discordgo.PrimaryButton, byLabel(bs, "AutoPlay").Style)
				assert.Equal(t, discordgo.PrimaryButton, byLabel(bs, "Shuffle").Style)
			},
		},
		{
			name: "loop track is green",
			snap: music.Snapshot{Loop: music.LoopTrack},
			check: func(t *testing.T, bs []discordgo.Button) {
				assert.Equal(t, discordgo.SuccessButton, byLabel(bs, "Loop").Style)
				assert.Equal(t, discordgo.SecondaryButton, byLabel(bs, "AutoPlay").Style)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.snap.GuildID = "g1"
			tt.snap.State = music.Connected
			bs := buttons(Controls(tt.snap, nil))
			for _, b := range bs {
				assert.False(t, b.Disabled, b.Label)
				id, ok := ParseID(b.CustomID)
				require.True(t, ok)
				assert.Equal(t, "g1", id.GuildID)
			}
			tt.check(t, bs)
		})
	}
}

func TestControls_PlaylistRows(t *testing.T) {
	var pls []settings.NamedPlaylist
	for i := 0; i < 7; i++ {
		pls = append(pls, settings.NamedPlaylist{Name: fmt.Sprintf("pl%d", i), Playlist: settings.Playlist{URL: "https://x"}})
	}
	pls[0].ButtonLabel = "Chill"

	rows := Controls(music.Snapshot{GuildID: "g1"}, pls)
	require.Len(t, rows, 5)
	assert.Len(t, rows[3].(discordgo.ActionsRow).Components, 5)
	assert.Len(t, rows[4].(discordgo.ActionsRow).Components, 2)

	first := rows[3].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, "Chill", first.Label)
	assert.False(t, first.Disabled)
	id, _ := ParseID(first.CustomID)
	assert.Equal(t, CustomID{Action: ActionPlaylist, GuildID: "g1", Arg: "pl0"}, id)
}

func TestQueueComponents(t *testing.T) {
	rows := QueueComponents("g1", 1, 3)
	menu := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	require.Len(t, menu.Options, 3)
	assert.Equal(t, "Page 1/3", menu.Options[0].Label)
	assert.True(t, menu.Options[0].Default)

	bs := buttons(rows[1:])
	assert.True(t, bs[0].Disabled, "no previous page on page 1")
	assert.False(t, bs[2].Disabled)

	bs = buttons(QueueComponents("g1", 9, 3)[1:])
	assert.False(t, bs[0].Disabled)
	assert.True(t, bs[2].Disabled, "page is clamped to the last one")
	id, _ := ParseID(bs[1].CustomID)
	assert.Equal(t, 3, id.Page())

	many := QueueComponents("g1", 40, 50)
	menu = many[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Len(t, menu.Options, 25)
	assert.Equal(t, "26", menu.Options[0].Value)
	assert.Equal(t, "50", menu.Options[24].Value)
}

func TestQueueEmbed(t *testing.T) {
	var queue []music.Track
	for i := 1; i <= 23; i++ {
		queue = append(queue, testTrack(fmt.Sprint(i)))
	}
	cur := testTrack("now")
	snap := music.Snapshot{Current: &cur, Queue: queue, Volume: 80}

	embed := QueueEmbed(snap, 3)
	assert.Contains(t, embed.Description, "`21.`")
	assert.Contains(t, embed.Description, "`23.`")
	assert.NotContains(t, embed.Description, "`20.`")
	assert.Contains(t, embed.Description, "Song now")
	assert.True(t, strings.HasPrefix(embed.Footer.Text, "Page 3/3"))
	assert.Contains(t, embed.Footer.Text, "Volume: 80%")

	embed = QueueEmbed(snap, 99)
	assert.True(t, strings.HasPrefix(embed.Footer.Text, "Page 3/3"))

	empty := QueueEmbed(music.Snapshot{}, 1)
	assert.Equal(t, ColorGray, empty.Color)
}

func TestPages(t *testing.T) {
	assert.Equal(t, 1, PageCount(0))
	assert.Equal(t, 1, PageCount(10))
	assert.Equal(t, 2, PageCount(11))
	assert.Equal(t, 1, ClampPage(0, 5))
	assert.Equal(t, 2, ClampPage(7, 15))
}

func TestNowPlayingEmbed(t *testing.T) {
	cur := testTrack("a")
	cur.ArtworkURL = "https://img.example.com/a.jpg"
	var queue []music.Track
	for i := 0; i < 7; i++ {
		queue = append(queue, testTrack(fmt.Sprint(i)))
	}
	auto := testTrack("auto")
	auto.RequesterID = music.AutoplayRequester
	queue[0] = auto

	snap := music.Snapshot{Current: &cur, Queue: queue, Volume: 50, Loop: music.LoopQueue}
	embed := NowPlayingEmbed(snap, "https://img.example.com/default.png")

	assert.Equal(t, "🎵 Now Playing", embed.Title)
	assert.Contains(t, embed.Description, "[Song a](https://example.com/a)")
	assert.Equal(t, cur.ArtworkURL, embed.Image.URL)
	assert.Equal(t, "7 songs in queue | Duration: 24:00 | Volume: 50%", embed.Footer.Text)

	var upNext string
	for _, f := range embed.Fields {
		if f.Name == "📋 Up Next" {
			upNext = f.Value
		}
		if f.Name == "🔁 Loop" {
			assert.Equal(t, "Queue", f.Value)
		}
	}
	assert.Contains(t, upNext, "...and 2 more")

	snap.Paused = true
	assert.Equal(t, "⏸️ Paused", NowPlayingEmbed(snap, "").Title)
}

func TestNowPlayingEmbed_Default(t *testing.T) {
	embed := NowPlayingEmbed(music.Snapshot{}, "https://img.example.com/default.png")
	assert.Equal(t, DefaultEmbed("").Title, embed.Title)
	assert.Equal(t, "https://img.example.com/default.png", embed.Image.URL)
	assert.Nil(t, embed.Footer)

	embed = NowPlayingEmbed(music.Snapshot{State: music.Connected, Volume: 100}, "")
	assert.Nil(t, embed.Image)
	require.NotNil(t, embed.Footer)
	assert.Contains(t, embed.Footer.Text, "0 songs in queue")
}

func TestSettingsEmbed(t *testing.T) {
	cfg := settings.NewGuildConfig("g1", 300)
	cfg.MusicChannelID = "c1"
	cfg.DefaultLoopMode = settings.LoopTrack

	embed := SettingsEmbed(cfg)
	values := map[string]string{}
	for _, f := range embed.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "<#c1>", values["Music channel"])
	assert.Equal(t, "100%", values["Default volume"])
	assert.Equal(t, "Track", values["Default loop"])
	assert.Equal(t, "After 5:00 idle", values["Auto-disconnect"])
	assert.Equal(t, "0/10", values["Playlists"])
}

func TestTruncateAndEscape(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "(live) \\*remix\\*", escape("[live] *remix*"))
}
