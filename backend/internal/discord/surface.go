package discord

import (
	"context"
	"errors"
	"sync"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/ui"
	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MusicChannelName is the text channel created by /setup
	MusicChannelName = "vibebot-music"
	webhookName      = "VibeBot"

	defaultNoticeTTL = 15 * time.Second
)

// pending update kinds, merged while a write is in flight
const (
	updateControls = 1 << iota
	updateFull
)

// Recorder counts user actions and surface writes
type Recorder interface {
	RecordCommand(command, status string)
	RecordSurfaceUpdate(kind, status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCommand(string, string)       {}
func (nopRecorder) RecordSurfaceUpdate(string, string) {}

// SurfaceOptions configures a Surface
type SurfaceOptions struct {
	EditsPerSecond  float64
	DefaultImageURL string
	NoticeTTL       time.Duration
	Recorder        Recorder
	Logger          *zap.Logger
}

type guildSurface struct {
	write   sync.Mutex // serializes writes, regeneration and setup
	limiter *rate.Limiter
	pending int
	running bool
}

// Surface keeps the single now-playing message of every guild in sync with
// its session. Refresh requests never block: they are merged per guild and
// written by one drain goroutine at the configured edit rate.
type Surface struct {
	platform Platform
	settings *settings.Manager
	registry *music.Registry
	opts     SurfaceOptions
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	guilds map[string]*guildSurface
	// closed is set under mu before Close waits, so no wg.Add can follow the Wait
	closed bool
}

var _ music.Notifier = (*Surface)(nil)

// NewSurface creates a surface; Close stops its background writes
func NewSurface(platform Platform, cfg *settings.Manager, registry *music.Registry, opts SurfaceOptions) *Surface {
	if opts.EditsPerSecond <= 0 {
		opts.EditsPerSecond = 1
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = defaultNoticeTTL
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Surface{
		platform: platform,
		settings: cfg,
		registry: registry,
		opts:     opts,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		guilds:   make(map[string]*guildSurface),
	}
}

func (s *Surface) guild(guildID string) *guildSurface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guildLocked(guildID)
}

func (s *Surface) guildLocked(guildID string) *guildSurface {
	gs, ok := s.guilds[guildID]
	if !ok {
		gs = &guildSurface{limiter: rate.NewLimiter(rate.Limit(s.opts.EditsPerSecond), 1)}
		s.guilds[guildID] = gs
	}
	return gs
}

// Refresh re-renders the body and the controls
func (s *Surface) Refresh(guildID string) {
	s.schedule(guildID, updateFull)
}

// RefreshControls re-renders only the buttons
func (s *Surface) RefreshControls(guildID string) {
	s.schedule(guildID, updateControls)
}

// RefreshAll schedules a full refresh of every bound surface
func (s *Surface) RefreshAll() {
	for guildID, cfg := range s.settings.Snapshot() {
		if cfg.HasSurface() {
			s.Refresh(guildID)
		}
	}
}

func (s *Surface) schedule(guildID string, kind int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gs := s.guildLocked(guildID)
	gs.pending |= kind
	if gs.running {
		s.mu.Unlock()
		return
	}
	gs.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(guildID, gs)
}

func (s *Surface) drain(guildID string, gs *guildSurface) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		kind := gs.pending
		gs.pending = 0
		if kind == 0 {
			gs.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := gs.limiter.Wait(s.ctx); err != nil {
			continue
		}

		gs.write.Lock()
		s.update(guildID, kind)
		gs.write.Unlock()
	}
}

// render builds the body and controls from the live session
func (s *Surface) render(guildID string, cfg *settings.GuildConfig) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	snap := music.Snapshot{GuildID: guildID}
	if sess, ok := s.registry.Get(guildID); ok {
		snap = sess.Snapshot()
	}
	return ui.NowPlayingEmbed(snap, s.opts.DefaultImageURL), ui.Controls(snap, cfg.SortedPlaylists())
}

// update edits the bound message, regenerating it when it is gone
func (s *Surface) update(guildID string, kind int) {
	cfg := s.settings.Get(guildID)
	if cfg.MusicChannelID == "" {
		return
	}

	label := "controls"
	if kind&updateFull != 0 {
		label = "refresh"
	}

	if !cfg.HasSurface() || cfg.WebhookID == "" {
		s.regenerate(guildID, cfg)
		return
	}

	embed, components := s.render(guildID, cfg)
	edit := &discordgo.WebhookEdit{Components: &components}
	if kind&updateFull != 0 {
		embeds := []*discordgo.MessageEmbed{embed}
		edit.Embeds = &embeds
	}

	err := s.platform.WebhookEdit(cfg.WebhookID, cfg.WebhookToken, cfg.NowPlayingMessageID, edit)
	if err == nil {
		s.opts.Recorder.RecordSurfaceUpdate(label, "ok")
		return
	}
	s.opts.Recorder.RecordSurfaceUpdate(label, "error")

	if !isGone(err) {
		s.logger.Warn("Failed to update now-playing message",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return
	}
	s.logger.Info("Now-playing message is gone, regenerating",
		zap.String("guild_id", guildID),
		zap.Int("code", restCode(err)))
	s.regenerate(guildID, cfg)
}

func (s *Surface) regenerate(guildID string, cfg *settings.GuildConfig) {
	if _, err := s.post(guildID, cfg); err != nil {
		s.opts.Recorder.RecordSurfaceUpdate("regenerate", "error")
		s.logger.Warn("Failed to regenerate now-playing message",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return
	}
	s.opts.Recorder.RecordSurfaceUpdate("regenerate", "ok")
}

// post sends a fresh message into the music channel, recreating the webhook
// when needed, and persists the new binding. The previous message is
// removed so at most one live instance remains.
func (s *Surface) post(guildID string, cfg *settings.GuildConfig) (string, error) {
	webhookID, token := cfg.WebhookID, cfg.WebhookToken
	if webhookID == "" {
		wh, err := s.platform.CreateWebhook(cfg.MusicChannelID, webhookName)
		if err != nil {
			if restCode(err) == codeUnknownChannel {
				s.unbind(guildID)
			}
			return "", apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to create webhook", err)
		}
		webhookID, token = wh.ID, wh.Token
	}

	embed, components := s.render(guildID, cfg)
	msg, err := s.platform.WebhookSend(webhookID, token, &discordgo.WebhookParams{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil && restCode(err) == codeUnknownWebhook && cfg.WebhookID != "" {
		// stored webhook was deleted; retry once with a fresh one
		retry := cfg.Clone()
		retry.WebhookID, retry.WebhookToken = "", ""
		return s.post(guildID, retry)
	}
	if err != nil {
		if restCode(err) == codeUnknownChannel {
			s.unbind(guildID)
		}
		return "", apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to send now-playing message", err)
	}

	if old := cfg.NowPlayingMessageID; old != "" && old != msg.ID {
		if err := s.platform.DeleteMessage(cfg.MusicChannelID, old); err != nil && !isGone(err) {
			s.logger.Debug("Failed to delete previous now-playing message",
				zap.String("guild_id", guildID),
				zap.Error(err))
		}
	}

	_, err = s.settings.Update(guildID, func(c *settings.GuildConfig) error {
		c.NowPlayingMessageID = msg.ID
		c.WebhookID = webhookID
		c.WebhookToken = token
		return nil
	})
	if err != nil {
		return msg.ID, err
	}

	s.logger.Info("Posted now-playing message",
		zap.String("guild_id", guildID),
		zap.String("message_id", msg.ID))
	return msg.ID, nil
}

// unbind forgets a binding whose channel no longer exists
func (s *Surface) unbind(guildID string) {
	s.logger.Warn("Music channel is gone, clearing binding", zap.String("guild_id", guildID))
	_, err := s.settings.Update(guildID, func(c *settings.GuildConfig) error {
		c.MusicChannelID = ""
		c.NowPlayingMessageID = ""
		c.WebhookID = ""
		c.WebhookToken = ""
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to clear binding", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// Ensure returns the bound message id, posting a fresh default message
// when the binding is missing or no longer resolves.
func (s *Surface) Ensure(guildID string) (string, error) {
	gs := s.guild(guildID)
	gs.write.Lock()
	defer gs.write.Unlock()

	cfg := s.settings.Get(guildID)
	if cfg.MusicChannelID == "" {
		return "", apperrors.ErrNotSetup
	}
	if cfg.HasSurface() && cfg.WebhookID != "" && s.alive(guildID, cfg) {
		return cfg.NowPlayingMessageID, nil
	}
	return s.post(guildID, cfg)
}

// alive checks the bound message with a full render
func (s *Surface) alive(guildID string, cfg *settings.GuildConfig) bool {
	embed, components := s.render(guildID, cfg)
	embeds := []*discordgo.MessageEmbed{embed}
	err := s.platform.WebhookEdit(cfg.WebhookID, cfg.WebhookToken, cfg.NowPlayingMessageID, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil && !isGone(err) {
		s.logger.Warn("Failed to check now-playing message",
			zap.String("guild_id", guildID),
			zap.Error(err))
		// transient failure: keep the binding rather than duplicating the message
		return true
	}
	return err == nil
}

// SetupResult describes what /setup did
type SetupResult struct {
	ChannelID string
	Created   bool
}

// Setup creates the music channel, its webhook and the now-playing message.
// A live binding is left untouched.
func (s *Surface) Setup(guildID string) (SetupResult, error) {
	gs := s.guild(guildID)
	gs.write.Lock()
	defer gs.write.Unlock()

	cfg := s.settings.Get(guildID)
	if cfg.HasSurface() && cfg.WebhookID != "" && s.alive(guildID, cfg) {
		return SetupResult{ChannelID: cfg.MusicChannelID}, nil
	}

	// the stored channel may still exist with only the message gone
	if cfg.MusicChannelID != "" {
		if _, err := s.post(guildID, cfg); err == nil {
			return SetupResult{ChannelID: cfg.MusicChannelID, Created: true}, nil
		}
		cfg = s.settings.Get(guildID)
	}

	ch, err := s.platform.CreateTextChannel(guildID, s.channelData(guildID))
	if err != nil {
		return SetupResult{}, apperrors.NewBaseError(apperrors.ErrorTypeDiscord, "failed to create music channel", err)
	}

	cfg, err = s.settings.Update(guildID, func(c *settings.GuildConfig) error {
		c.MusicChannelID = ch.ID
		c.NowPlayingMessageID = ""
		c.WebhookID = ""
		c.WebhookToken = ""
		return nil
	})
	if err != nil {
		return SetupResult{}, err
	}
	if _, err := s.post(guildID, cfg); err != nil {
		return SetupResult{ChannelID: ch.ID}, err
	}

	s.logger.Info("Music channel set up",
		zap.String("guild_id", guildID),
		zap.String("channel_id", ch.ID))
	return SetupResult{ChannelID: ch.ID, Created: true}, nil
}

func (s *Surface) channelData(guildID string) discordgo.GuildChannelCreateData {
	everyone := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory)
	bot := everyone | discordgo.PermissionManageMessages | discordgo.PermissionManageWebhooks | discordgo.PermissionEmbedLinks

	return discordgo.GuildChannelCreateData{
		Name:  MusicChannelName,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: "Send a song name or link to play it. Use the buttons to control playback.",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			// the @everyone role shares the guild id
			{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Allow: everyone},
			{ID: s.platform.BotUserID(), Type: discordgo.PermissionOverwriteTypeMember, Allow: bot},
		},
	}
}

// Notice posts a short warning in the music channel that deletes itself
func (s *Surface) Notice(guildID, message string) {
	cfg := s.settings.Get(guildID)
	if cfg.MusicChannelID == "" {
		return
	}
	s.PostTemporary(cfg.MusicChannelID, ui.WarningEmbed(message))
}

// PostTemporary sends an embed without blocking and deletes it after the notice TTL
func (s *Surface) PostTemporary(channelID string, embed *discordgo.MessageEmbed) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		msg, err := s.platform.SendEmbed(channelID, embed)
		if err != nil {
			s.logger.Warn("Failed to send notice", zap.String("channel_id", channelID), zap.Error(err))
			return
		}

		select {
		case <-time.After(s.opts.NoticeTTL):
		case <-s.ctx.Done():
		}
		if err := s.platform.DeleteMessage(channelID, msg.ID); err != nil && !isGone(err) {
			s.logger.Debug("Failed to delete notice", zap.String("channel_id", channelID), zap.Error(err))
		}
	}()
}

// Forget drops the per-guild state after the bot left the guild
func (s *Surface) Forget(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gs, ok := s.guilds[guildID]; ok && !gs.running {
		delete(s.guilds, guildID)
	}
}

// Wait blocks until every scheduled write and notice finished
func (s *Surface) Wait() {
	s.wg.Wait()
}

// Close stops accepting updates, cuts notice timers short and waits for
// in-flight writes.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// IsNotSetup reports whether err means the guild has no music channel
func IsNotSetup(err error) bool {
	return errors.Is(err, apperrors.ErrNotSetup)
}
