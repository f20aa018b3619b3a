package discord

import (
	"context"
	"fmt"
	"strings"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/ui"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxChatRequests caps the lines one message may queue
const maxChatRequests = 25

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	b.handleMessage(m.Message)
}

// handleMessage treats every message in a guild's music channel as a
// queue request. The message is removed; failures get a reply that
// deletes itself.
func (b *Bot) handleMessage(m *discordgo.Message) {
	if m.GuildID == "" || m.Author == nil || m.Author.Bot || m.WebhookID != "" {
		return
	}
	cfg := b.settings.Get(m.GuildID)
	if cfg.MusicChannelID == "" || m.ChannelID != cfg.MusicChannelID {
		return
	}

	logger := b.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("guild_id", m.GuildID),
		zap.String("user_id", m.Author.ID))

	if err := b.platform.DeleteMessage(m.ChannelID, m.ID); err != nil && !isGone(err) {
		logger.Debug("Failed to delete request message", zap.Error(err))
	}

	queries := requestLines(m.Content)
	if len(queries) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	failures, err := b.queueRequests(ctx, Actor{UserID: m.Author.ID, GuildID: m.GuildID}, queries, logger)
	b.recorder.RecordCommand("chat", status(err))
	if err != nil {
		logger.Debug("Chat request rejected", zap.Error(err))
		text := apperrors.UserMessage(err)
		if len(failures) > 0 {
			text = strings.Join(failures, "\n")
		}
		b.surface.PostTemporary(m.ChannelID, ui.ErrorEmbed(fmt.Sprintf("<@%s> %s", m.Author.ID, text)))
		return
	}
	if len(failures) > 0 {
		b.surface.PostTemporary(m.ChannelID, ui.WarningEmbed(fmt.Sprintf("<@%s>\n%s", m.Author.ID, strings.Join(failures, "\n"))))
	}
}

// requestLines splits a message into one query per non-empty line
func requestLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxChatRequests {
			break
		}
	}
	return out
}

// queueRequests admits the actor, resolves every query in parallel and
// enqueues the results in request order. It returns one line per failed
// query; err is set when nothing could be queued at all.
func (b *Bot) queueRequests(ctx context.Context, actor Actor, queries []string, logger *zap.Logger) ([]string, error) {
	adm, err := b.gateway.CheckPreconditions(ctx, actor, true, false)
	if err != nil {
		return nil, err
	}

	var (
		tracks   []music.Track
		failures []string
		lastErr  error
	)
	for i, res := range b.resolver.ResolveMany(ctx, queries) {
		if res.Err != nil {
			lastErr = res.Err
			failures = append(failures, fmt.Sprintf("`%s`: %s", queries[i], apperrors.UserMessage(res.Err)))
			continue
		}
		tracks = append(tracks, res.Resolution.Tracks...)
	}
	if len(tracks) == 0 {
		if len(queries) == 1 && lastErr != nil {
			return nil, lastErr
		}
		return failures, apperrors.ErrNoResults
	}

	result, err := adm.Session.Enqueue(tracks, actor.UserID)
	if err != nil {
		return nil, err
	}
	logger.Info("Queued chat request",
		zap.Int("queries", len(queries)),
		zap.Int("tracks", result.Count),
		zap.Bool("started", result.Started))
	return failures, nil
}
