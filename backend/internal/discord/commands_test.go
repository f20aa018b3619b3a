package discord

import (
	"testing"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/sources"
	"vibebot/backend/internal/music/ui"
	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"90", 90 * time.Second, true},
		{"1:30", 90 * time.Second, true},
		{" 1:02:03 ", time.Hour + 2*time.Minute + 3*time.Second, true},
		{"0", 0, true},
		{"1:60", 0, false},
		{"-5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1:2:3:4", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, apperrors.ErrInvalidTimestamp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommands_Definitions(t *testing.T) {
	e := newEnv(t)

	names := make(map[string]bool)
	for _, def := range e.bot.Commands() {
		assert.False(t, names[def.Name], "duplicate command %s", def.Name)
		names[def.Name] = true
		assert.NotEmpty(t, def.Description)
	}
	for _, want := range []string{"setup", "play", "volume", "seek", "queue", "pl", "join-role", "auto-disconnect", "invite", "ping", "clear"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestCommands_JoinRoleIsTopLevel(t *testing.T) {
	e := newEnv(t)

	defs := make(map[string]*discordgo.ApplicationCommand)
	for _, def := range e.bot.Commands() {
		defs[def.Name] = def
	}

	require.Contains(t, defs, "join-role")
	require.Contains(t, defs, "remove-join-role")
	require.Len(t, defs["join-role"].Options, 1)
	assert.Equal(t, discordgo.ApplicationCommandOptionRole, defs["join-role"].Options[0].Type)
	assert.Empty(t, defs["remove-join-role"].Options)
	assert.Empty(t, defs["settings"].Options, "settings has no subcommands")
	assert.Equal(t, int64(discordgo.PermissionManageServer|discordgo.PermissionManageRoles), *defs["join-role"].DefaultMemberPermissions)
}

func TestCommand_OutsideGuild(t *testing.T) {
	e := newEnv(t)
	i := commandInteraction("volume", intOpt("level", 50))
	i.GuildID = ""

	e.bot.handleInteraction(i)

	assert.Equal(t, apperrors.UserMessage(apperrors.ErrGuildOnly), e.platform.lastReply())
	assert.Equal(t, []string{"volume/rejected"}, e.recorder.commandLog())
}

func TestCommand_Volume(t *testing.T) {
	e := newEnv(t)
	s := e.playing(t, "a")

	e.bot.handleInteraction(commandInteraction("volume", intOpt("level", 40)))

	assert.Equal(t, 40, s.Snapshot().Volume)
	assert.Contains(t, e.platform.lastReply(), "40%")
	assert.Equal(t, []string{"volume/ok"}, e.recorder.commandLog())
}

func TestCommand_VolumeRequiresSameChannel(t *testing.T) {
	e := newEnv(t)
	e.playing(t, "a")
	e.platform.setVoice(testGuild, testUser, otherVoice)

	e.bot.handleInteraction(commandInteraction("volume", intOpt("level", 40)))

	assert.Equal(t, apperrors.UserMessage(apperrors.ErrJoinMyChannel), e.platform.lastReply())
	assert.Equal(t, []string{"volume/rejected"}, e.recorder.commandLog())
}

func TestCommand_PlayJoinsAndStarts(t *testing.T) {
	e := newEnv(t)
	e.platform.setVoice(testGuild, testUser, testVoice)
	e.resolver.results["song a"] = resolution("a")

	e.bot.handleInteraction(commandInteraction("play", stringOpt("query", "song a")))

	resp := e.platform.responses[0]
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, resp.Type)
	assert.Equal(t, "Now playing **Track a**.", e.platform.lastReply())

	s, ok := e.registry.Get(testGuild)
	require.True(t, ok)
	snap := s.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "a", snap.Current.Identifier)
	assert.Equal(t, testUser, snap.Current.RequesterID)
}

func TestCommand_PlayQueuesBehindCurrent(t *testing.T) {
	e := newEnv(t)
	e.playing(t, "a")
	e.resolver.results["song b"] = resolution("b")

	e.bot.handleInteraction(commandInteraction("play", stringOpt("query", "song b")))

	assert.Equal(t, "Added **Track b** at position `1`.", e.platform.lastReply())
}

func TestCommand_PlayNoResults(t *testing.T) {
	e := newEnv(t)
	e.platform.setVoice(testGuild, testUser, testVoice)

	e.bot.handleInteraction(commandInteraction("play", stringOpt("query", "nothing")))

	assert.Equal(t, apperrors.UserMessage(apperrors.ErrNoResults), e.platform.lastReply())
}

func TestCommand_SeekRequiresPlaying(t *testing.T) {
	e := newEnv(t)
	e.connect(t)

	e.bot.handleInteraction(commandInteraction("seek", stringOpt("position", "1:00")))

	assert.Equal(t, apperrors.UserMessage(apperrors.ErrNothingPlaying), e.platform.lastReply())
}

func TestCommand_SeekInvalidTimestamp(t *testing.T) {
	e := newEnv(t)
	e.playing(t, "a")

	e.bot.handleInteraction(commandInteraction("seek", stringOpt("position", "soon")))

	assert.Equal(t, apperrors.UserMessage(apperrors.ErrInvalidTimestamp), e.platform.lastReply())
}

func TestCommand_QueueMutations(t *testing.T) {
	e := newEnv(t)
	s := e.playing(t, "a", "b", "c", "d")

	e.bot.handleInteraction(commandInteraction("move", intOpt("from", 3), intOpt("to", 1)))
	assert.Equal(t, "Moved **Track d** to position `1`.", e.platform.lastReply())

	e.bot.handleInteraction(commandInteraction("remove", intOpt("position", 2)))
	assert.Equal(t, "Removed **Track b**.", e.platform.lastReply())

	queue := s.Snapshot().Queue
	require.Len(t, queue, 2)
	assert.Equal(t, "d", queue[0].Identifier)
	assert.Equal(t, "c", queue[1].Identifier)

	e.bot.handleInteraction(commandInteraction("remove", intOpt("position", 9)))
	assert.Contains(t, e.platform.lastReply(), "9")

	e.bot.handleInteraction(commandInteraction("clear-queue"))
	assert.Equal(t, "Removed `2` tracks from the queue.", e.platform.lastReply())
	assert.Empty(t, s.Snapshot().Queue)
}

func TestCommand_QueuePaging(t *testing.T) {
	e := newEnv(t)
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	e.playing(t, ids...)

	e.bot.handleInteraction(commandInteraction("queue", intOpt("page", 99)))

	resp := e.platform.lastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	require.NotEmpty(t, resp.Data.Components)

	require.Greater(t, ui.PageCount(24), 1)
	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionQueueNext, testGuild, "1")))
	resp = e.platform.lastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, ui.QueueEmbed(e.bot.snapshot(testGuild), 2).Description, resp.Data.Embeds[0].Description)
}

func TestComponent_ForeignGuildRejected(t *testing.T) {
	e := newEnv(t)
	s := e.playing(t, "a")

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionPause, "guild-other")))

	assert.False(t, s.Snapshot().Paused)
	assert.Equal(t, apperrors.UserMessage(apperrors.ErrForeignControl), e.platform.lastReply())
}

func TestComponent_Buttons(t *testing.T) {
	e := newEnv(t)
	s := e.playing(t, "a", "b")

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionPause, testGuild)))
	assert.True(t, s.Snapshot().Paused)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, e.platform.lastResponse().Type)

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionVolumeDown, testGuild)))
	assert.Equal(t, settings.DefaultVolume-volumeStep, s.Snapshot().Volume)

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionLoop, testGuild)))
	assert.Equal(t, music.LoopTrack, s.Snapshot().Loop)

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionSkip, testGuild)))
	assert.Equal(t, "b", s.Snapshot().Current.Identifier)

	assert.Equal(t, []string{
		"button pause/ok",
		"button voldown/ok",
		"button loop/ok",
		"button skip/ok",
	}, e.recorder.commandLog())
}

func TestComponent_ConnectTogglesVoice(t *testing.T) {
	e := newEnv(t)
	e.platform.setVoice(testGuild, testUser, testVoice)

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionConnect, testGuild)))
	s, ok := e.registry.Get(testGuild)
	require.True(t, ok)
	state, _ := s.State()
	assert.Equal(t, music.Connected, state)

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionConnect, testGuild)))
	state, _ = s.State()
	assert.Equal(t, music.Disconnected, state)
	assert.Equal(t, 1, e.platform.leaves)
}

func TestComponent_PlaylistButton(t *testing.T) {
	e := newEnv(t)
	e.platform.setVoice(testGuild, testUser, testVoice)
	require.NoError(t, e.settings.AddPlaylist(testGuild, "chill", settings.Playlist{URL: "https://example.com/list"}))
	res := resolution("a", "b", "c")
	res.PlaylistName = "Chill"
	e.resolver.results["https://example.com/list"] = res

	e.bot.handleInteraction(componentInteraction(ui.ID(ui.ActionPlaylist, testGuild, "chill")))

	assert.Equal(t, "Added `3` tracks from **chill**.", e.platform.lastReply())
	s, ok := e.registry.Get(testGuild)
	require.True(t, ok)
	snap := s.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Len(t, snap.Queue, 2)
}

func TestCommand_SettingsUpdates(t *testing.T) {
	e := newEnv(t)

	e.bot.handleInteraction(commandInteraction("default-volume", intOpt("volume", 35)))
	e.bot.handleInteraction(commandInteraction("default-autoplay", boolOpt("enabled", true)))
	e.bot.handleInteraction(commandInteraction("default-loop", stringOpt("mode", string(settings.LoopQueue))))
	e.bot.handleInteraction(commandInteraction("auto-disconnect", boolOpt("enabled", true), intOpt("timeout", 120)))

	cfg := e.settings.Get(testGuild)
	assert.Equal(t, 35, cfg.DefaultVolume)
	assert.True(t, cfg.DefaultAutoplay)
	assert.Equal(t, settings.LoopQueue, cfg.DefaultLoopMode)
	assert.True(t, cfg.AutoDisconnect)
	assert.Equal(t, 120, cfg.IdleTimeoutSecs)
	assert.Equal(t, "I'll leave voice after `2:00` without music.", e.platform.lastReply())
}

func TestCommand_JoinRole(t *testing.T) {
	e := newEnv(t)

	role := &discordgo.ApplicationCommandInteractionDataOption{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "role-1"}
	e.bot.handleInteraction(commandInteraction("join-role", role))
	assert.Equal(t, "role-1", e.settings.Get(testGuild).JoinRoleID)

	everyone := &discordgo.ApplicationCommandInteractionDataOption{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: testGuild}
	e.bot.handleInteraction(commandInteraction("join-role", everyone))
	assert.Equal(t, "role-1", e.settings.Get(testGuild).JoinRoleID)

	e.bot.handleInteraction(commandInteraction("remove-join-role"))
	assert.Empty(t, e.settings.Get(testGuild).JoinRoleID)
}

func TestCommand_Playlists(t *testing.T) {
	e := newEnv(t)
	sub := func(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
		return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
	}

	e.bot.handleInteraction(commandInteraction("pl", sub("add", stringOpt("name", "chill"), stringOpt("url", "not a link"))))
	assert.Equal(t, apperrors.UserMessage(apperrors.ErrInvalidURL), e.platform.lastReply())

	e.bot.handleInteraction(commandInteraction("pl", sub("add",
		stringOpt("name", "chill"),
		stringOpt("url", "https://example.com/list"),
		boolOpt("shuffle", true))))
	pl, ok := e.settings.Playlist(testGuild, "chill")
	require.True(t, ok)
	assert.True(t, pl.ShuffleOnPlay)

	e.bot.handleInteraction(commandInteraction("pl", sub("remove", stringOpt("name", "chill"))))
	_, ok = e.settings.Playlist(testGuild, "chill")
	assert.False(t, ok)

	assert.Equal(t, []string{"pl add/rejected", "pl add/ok", "pl remove/ok"}, e.recorder.commandLog())
}

func TestDescribeEnqueue(t *testing.T) {
	first := testTrack("a")
	assert.Equal(t, "Added `3` tracks from **Mix**.",
		describeEnqueue(&sources.Resolution{PlaylistName: "Mix"}, music.EnqueueResult{Count: 3, First: first}))
	assert.Equal(t, "Now playing **Track a**.",
		describeEnqueue(&sources.Resolution{}, music.EnqueueResult{Count: 1, Started: true, First: first}))
	assert.Equal(t, "Added **Track a** at position `4`.",
		describeEnqueue(&sources.Resolution{}, music.EnqueueResult{Count: 1, Position: 4, First: first}))
}
