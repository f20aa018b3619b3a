// Package discord is the chat surface of the bot: slash commands, the
// persistent control buttons, music channel requests and gateway events.
package discord

import (
	"context"
	"fmt"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/sources"
	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// Intents are the gateway intents the bot needs. MessageContent and
// GuildMembers are privileged and must be enabled for the application.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

// Resolver turns user requests into tracks
type Resolver interface {
	Resolve(ctx context.Context, query string) (*sources.Resolution, error)
	ResolveMany(ctx context.Context, queries []string) []sources.Result
}

// Options wires the bot's collaborators
type Options struct {
	Platform       Platform
	Registry       *music.Registry
	Settings       *settings.Manager
	Surface        *Surface
	Resolver       Resolver
	Recorder       Recorder
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// InviteURL overrides the generated OAuth2 link of /invite
	InviteURL string
}

// Bot routes Discord events to the music core
type Bot struct {
	platform Platform
	registry *music.Registry
	settings *settings.Manager
	surface  *Surface
	resolver Resolver
	gateway  *Gateway
	recorder Recorder
	logger   *zap.Logger
	timeout  time.Duration

	inviteURL string
	started   time.Time
	now       func() time.Time

	ctx      context.Context
	commands map[string]slashCommand
}

// New creates a bot
func New(opts Options) *Bot {
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	b := &Bot{
		platform: opts.Platform,
		registry: opts.Registry,
		settings: opts.Settings,
		surface:  opts.Surface,
		resolver: opts.Resolver,
		gateway:  NewGateway(opts.Platform, opts.Registry, opts.Logger),
		recorder: opts.Recorder,
		logger:   opts.Logger,
		timeout:  opts.RequestTimeout,

		inviteURL: opts.InviteURL,
		started:   time.Now(),
		now:       time.Now,
		ctx:       context.Background(),
	}
	b.commands = make(map[string]slashCommand)
	for _, c := range allCommands() {
		b.commands[c.def.Name] = c
	}
	return b
}

func allCommands() []slashCommand {
	return append(slashCommands(), generalCommands()...)
}

// Commands returns the slash command definitions
func (b *Bot) Commands() []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(b.commands))
	for _, c := range allCommands() {
		defs = append(defs, c.def)
	}
	return defs
}

// Run attaches the handlers, opens the gateway and blocks until ctx ends
func (b *Bot) Run(ctx context.Context, dg *discordgo.Session) error {
	b.ctx = ctx

	dg.Identify.Intents = Intents
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildDelete)
	dg.AddHandler(b.onGuildMemberAdd)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onVoiceServerUpdate)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to open Discord session", err)
	}
	b.logger.Info("Discord session opened")

	<-ctx.Done()
	b.logger.Info("Shutting down Discord session")

	b.registry.Shutdown()
	b.surface.Close()
	if err := dg.Close(); err != nil {
		return fmt.Errorf("close Discord session: %w", err)
	}
	return nil
}

func (b *Bot) onInteractionCreate(_ *discordgo.Session, e *discordgo.InteractionCreate) {
	b.handleInteraction(e.Interaction)
}

// handleInteraction runs one interaction with its own correlation id
func (b *Bot) handleInteraction(i *discordgo.Interaction) {
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	logger := b.logger.With(
		zap.String("interaction_id", uuid.NewString()),
		zap.String("guild_id", i.GuildID))

	var (
		name     string
		run      func(r *request) error
		anywhere bool
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		cmd, ok := b.commands[data.Name]
		if !ok {
			logger.Warn("Unknown command", zap.String("command", data.Name))
			return
		}
		name = data.Name
		anywhere = cmd.anywhere
		run = func(r *request) error { return cmd.handle(b, r, commandOptions(data.Options)) }
	case discordgo.InteractionMessageComponent:
		name = "component"
		run = b.handleComponent
	default:
		return
	}

	r := newRequest(ctx, b.platform, i, name, logger)
	if r.actor.GuildID == "" && !anywhere {
		r.fail(apperrors.ErrGuildOnly)
		b.recorder.RecordCommand(name, "rejected")
		return
	}

	logger.Debug("Handling interaction", zap.String("command", name), zap.String("user_id", r.actor.UserID))
	err := run(r)
	b.recorder.RecordCommand(r.name, status(err))
	if err != nil {
		r.fail(err)
	}
}

// status labels an outcome for the command counter
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsErrorType(err, apperrors.ErrorTypeInput),
		apperrors.IsErrorType(err, apperrors.ErrorTypePrecondition),
		apperrors.IsErrorType(err, apperrors.ErrorTypePermission):
		return "rejected"
	default:
		return "error"
	}
}
