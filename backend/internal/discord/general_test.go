package discord

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkButton(t *testing.T, resp *discordgo.InteractionResponse) discordgo.Button {
	t.Helper()
	require.NotNil(t, resp)
	require.Len(t, resp.Data.Components, 1)
	row, ok := resp.Data.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	b, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	return b
}

func TestCommand_Invite(t *testing.T) {
	t.Run("generated link", func(t *testing.T) {
		e := newEnv(t)
		e.bot.handleInteraction(commandInteraction("invite"))

		resp := e.platform.lastResponse()
		b := linkButton(t, resp)
		assert.Equal(t, discordgo.LinkButton, b.Style)
		assert.Contains(t, b.URL, "client_id="+testBot)
		assert.Contains(t, b.URL, "scope=bot+applications.commands")
		assert.Zero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
		assert.Equal(t, "https://cdn.example/"+testBot+".png", resp.Data.Embeds[0].Thumbnail.URL)
	})

	t.Run("configured link works in direct messages", func(t *testing.T) {
		e := newEnv(t)
		e.bot.inviteURL = "https://example.com/invite"
		i := commandInteraction("invite")
		i.GuildID = ""
		i.Member = nil
		i.User = &discordgo.User{ID: testUser}

		e.bot.handleInteraction(i)

		assert.Equal(t, "https://example.com/invite", linkButton(t, e.platform.lastResponse()).URL)
		assert.Equal(t, []string{"invite/ok"}, e.recorder.commandLog())
	})
}

func TestCommand_Ping(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.bot.now = func() time.Time { return now }
	e.bot.started = now.Add(-(25*time.Hour + 90*time.Second))
	e.platform.latency = 42 * time.Millisecond

	e.bot.handleInteraction(commandInteraction("ping"))

	resp := e.platform.lastResponse()
	require.NotNil(t, resp)
	embed := resp.Data.Embeds[0]
	assert.Equal(t, "🏓 Pong!", embed.Title)
	assert.Equal(t, "`1d 1h 1m 30s`", embed.Fields[0].Value)
	assert.Equal(t, "`42 ms`", embed.Fields[1].Value)
	assert.Equal(t, []string{"ping/ok"}, e.recorder.commandLog())
}

func TestCommand_PingAPIFailure(t *testing.T) {
	e := newEnv(t)
	e.platform.fetchErr = errors.New("503")

	e.bot.handleInteraction(commandInteraction("ping"))

	assert.Equal(t, []string{"ping/error"}, e.recorder.commandLog())
	assert.NotEmpty(t, e.platform.lastReply())
}

func TestCommand_Clear(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	message := func(n int, age time.Duration) *discordgo.Message {
		return &discordgo.Message{ID: fmt.Sprintf("m%d", n), ChannelID: testChannel, Timestamp: now.Add(-age)}
	}
	runClear := func(e *env, n int) {
		i := commandInteraction("clear", intOpt("number", n))
		i.ChannelID = testChannel
		e.bot.handleInteraction(i)
	}

	t.Run("recent bulk and old one by one", func(t *testing.T) {
		e := newEnv(t)
		e.bot.now = func() time.Time { return now }
		e.platform.history = []*discordgo.Message{
			message(1, time.Minute),
			message(2, time.Hour),
			message(3, 13*24*time.Hour),
			message(4, 20*24*time.Hour),
			message(5, 30*24*time.Hour),
		}

		runClear(e, 4)

		require.Len(t, e.platform.bulk, 1)
		assert.Equal(t, []string{"m1", "m2", "m3"}, e.platform.bulk[0])
		assert.Equal(t, []string{"m4"}, e.platform.deletes)
		assert.Equal(t, "Successfully deleted `4` messages.", e.platform.lastReply())
		assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, e.platform.responses[0].Type)
	})

	t.Run("nothing to delete", func(t *testing.T) {
		e := newEnv(t)
		runClear(e, 10)

		assert.Empty(t, e.platform.bulk)
		assert.Equal(t, "I couldn't find any messages to delete.", e.platform.lastReply())
	})

	t.Run("out of range", func(t *testing.T) {
		e := newEnv(t)
		runClear(e, 101)

		assert.Empty(t, e.platform.bulk)
		assert.Equal(t, []string{"clear/rejected"}, e.recorder.commandLog())
	})
}

func TestDefaultInviteURL(t *testing.T) {
	u := defaultInviteURL("123")
	assert.Contains(t, u, "https://discord.com/oauth2/authorize?")
	assert.Contains(t, u, "client_id=123")
	assert.Contains(t, u, fmt.Sprintf("permissions=%d", invitePermissions))
}
