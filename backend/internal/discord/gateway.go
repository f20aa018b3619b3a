package discord

import (
	"context"
	"errors"

	"vibebot/backend/internal/music"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// joinPermissions are required on the target voice channel
const joinPermissions = discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak

// Actor is the member behind a command, button or chat request
type Actor struct {
	UserID  string
	GuildID string
}

// Admission is the outcome of a passed precondition check
type Admission struct {
	Session *music.Session
	// Joined is set when the check itself connected the bot
	Joined bool
}

// Gateway is the single precondition check every playback-mutating
// action passes through, whatever surface it came from.
type Gateway struct {
	platform Platform
	registry *music.Registry
	logger   *zap.Logger
}

// NewGateway creates a gateway
func NewGateway(platform Platform, registry *music.Registry, logger *zap.Logger) *Gateway {
	return &Gateway{platform: platform, registry: registry, logger: logger}
}

// CheckPreconditions admits an actor or returns the error to show them.
// With requiresConnect the bot joins the actor's channel when it is not
// connected yet.
func (g *Gateway) CheckPreconditions(ctx context.Context, actor Actor, requiresConnect, requiresPlaying bool) (Admission, error) {
	if actor.GuildID == "" {
		return Admission{}, apperrors.ErrGuildOnly
	}
	if !g.registry.NodeAvailable() {
		return Admission{}, apperrors.ErrNoNode
	}

	s := g.registry.GetOrCreate(actor.GuildID)
	adm := Admission{Session: s}

	userChannel, inVoice := g.platform.UserVoiceChannel(actor.GuildID, actor.UserID)
	state, botChannel := s.State()
	if !inVoice {
		if state != music.Disconnected {
			return adm, apperrors.ErrJoinMyChannel
		}
		return adm, apperrors.ErrJoinVoiceFirst
	}

	if state == music.Disconnected {
		if !requiresConnect {
			return adm, apperrors.ErrNothingPlaying
		}
		err := s.RequestJoin(ctx, userChannel)
		switch {
		case err == nil:
			adm.Joined = true
			g.logger.Info("Joined voice for actor",
				zap.String("guild_id", actor.GuildID),
				zap.String("user_id", actor.UserID),
				zap.String("channel_id", userChannel))
		case errors.Is(err, apperrors.ErrAlreadyConnected):
			// another request won the join; fall through to the channel check
		default:
			return adm, err
		}
		state, botChannel = s.State()
	}

	if state == music.Connecting {
		if botChannel != userChannel {
			return adm, apperrors.ErrJoinMyChannel
		}
		// a join for someone else is still running; ride on it
		if err := s.WaitConnected(ctx); err != nil {
			return adm, err
		}
		state, botChannel = s.State()
	}

	if state != music.Disconnected && botChannel != userChannel {
		return adm, apperrors.ErrJoinMyChannel
	}
	if requiresPlaying && !s.IsPlaying() {
		return adm, apperrors.ErrNothingPlaying
	}
	return adm, nil
}

// voiceGateway implements music.VoiceGateway on the platform
type voiceGateway struct {
	platform Platform
}

// NewVoiceGateway returns the voice join/leave capability the sessions use
func NewVoiceGateway(platform Platform) music.VoiceGateway {
	return &voiceGateway{platform: platform}
}

// CheckJoin verifies permissions and capacity of the target channel
func (v *voiceGateway) CheckJoin(guildID, channelID string) error {
	perms, err := v.platform.BotPermissions(channelID)
	if err != nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to read channel permissions", err)
	}
	if perms&discordgo.PermissionAdministrator == 0 && perms&joinPermissions != joinPermissions {
		return apperrors.ErrPermissionDenied
	}

	limit, members, err := v.platform.VoiceOccupancy(guildID, channelID)
	if err != nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to read voice channel", err)
	}
	canBypass := perms&(discordgo.PermissionAdministrator|discordgo.PermissionVoiceMoveMembers) != 0
	if limit > 0 && members >= limit && !canBypass {
		return apperrors.ErrChannelFull
	}
	return nil
}

func (v *voiceGateway) Join(guildID, channelID string) error {
	return v.platform.JoinVoice(guildID, channelID)
}

func (v *voiceGateway) Leave(guildID string) error {
	return v.platform.LeaveVoice(guildID)
}
