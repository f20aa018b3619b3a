package discord

import (
	"context"
	"errors"

	"vibebot/backend/internal/music/ui"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// request carries one interaction through its handler
type request struct {
	ctx      context.Context
	i        *discordgo.Interaction
	actor    Actor
	logger   *zap.Logger
	platform Platform

	name     string
	answered bool
}

func newRequest(ctx context.Context, p Platform, i *discordgo.Interaction, name string, logger *zap.Logger) *request {
	actor := Actor{GuildID: i.GuildID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		actor.UserID = i.Member.User.ID
	case i.User != nil:
		actor.UserID = i.User.ID
	}
	return &request{
		ctx:      ctx,
		i:        i,
		actor:    actor,
		logger:   logger,
		platform: p,
		name:     name,
	}
}

// reply sends an embed as the interaction response, or as a followup
// once the interaction was deferred.
func (r *request) reply(embed *discordgo.MessageEmbed, ephemeral bool) error {
	if r.answered {
		return r.platform.Followup(r.i, ephemeral, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		})
	}
	r.answered = true

	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.platform.Respond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// replyWith sends an embed with components
func (r *request) replyWith(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent, ephemeral bool) error {
	if r.answered {
		return r.platform.Followup(r.i, ephemeral, &discordgo.WebhookParams{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		})
	}
	r.answered = true

	data := &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.platform.Respond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (r *request) success(text string) error {
	return r.reply(ui.SuccessEmbed(text), true)
}

func (r *request) info(text string) error {
	return r.reply(ui.InfoEmbed(text), true)
}

// deferReply acknowledges a slow command; later replies become followups
func (r *request) deferReply(ephemeral bool) error {
	if r.answered {
		return nil
	}
	r.answered = true

	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.platform.Respond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

// ack acknowledges a component press without changing its message
func (r *request) ack() error {
	if r.answered {
		return nil
	}
	r.answered = true
	return r.platform.Respond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// update replaces the message a component belongs to
func (r *request) update(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	if r.answered {
		embeds := []*discordgo.MessageEmbed{embed}
		return r.platform.EditResponse(r.i, &discordgo.WebhookEdit{Embeds: &embeds, Components: &components})
	}
	r.answered = true
	return r.platform.Respond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

// fail renders err as an ephemeral notice. Input, precondition and
// permission errors are expected and logged at debug.
func (r *request) fail(err error) {
	level := r.logger.Warn
	if apperrors.IsErrorType(err, apperrors.ErrorTypeInput) ||
		apperrors.IsErrorType(err, apperrors.ErrorTypePrecondition) ||
		apperrors.IsErrorType(err, apperrors.ErrorTypePermission) {
		level = r.logger.Debug
	}
	level("Request rejected", zap.String("command", r.name), zap.Error(err))

	embed := ui.ErrorEmbed(apperrors.UserMessage(err))
	if errors.Is(err, apperrors.ErrAlreadyAtLimit) {
		embed = ui.WarningEmbed(apperrors.UserMessage(err))
	}
	if replyErr := r.reply(embed, true); replyErr != nil {
		r.logger.Warn("Failed to send error reply", zap.String("command", r.name), zap.Error(replyErr))
	}
}
