package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/sources"
	"vibebot/backend/internal/music/ui"
	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const defaultSeekStep = 10 * time.Second

type slashCommand struct {
	def    *discordgo.ApplicationCommand
	handle func(b *Bot, r *request, opts optionMap) error

	// anywhere allows the command in direct messages
	anywhere bool
}

// optionMap indexes the options of one command or subcommand
type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func commandOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (m optionMap) intValue(name string, def int) int {
	if o, ok := m[name]; ok {
		return int(o.IntValue())
	}
	return def
}

func (m optionMap) boolValue(name string) bool {
	if o, ok := m[name]; ok {
		return o.BoolValue()
	}
	return false
}

func (m optionMap) stringValue(name string) string {
	if o, ok := m[name]; ok {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

// id reads a role, user or channel option, all of which carry a snowflake
func (m optionMap) id(name string) string {
	if o, ok := m[name]; ok {
		if s, ok := o.Value.(string); ok {
			return s
		}
	}
	return ""
}

func perms(p int64) *int64 {
	return &p
}

func minValue(v float64) *float64 {
	return &v
}

func noDM() *bool {
	f := false
	return &f
}

func slashCommands() []slashCommand {
	manageGuild := perms(discordgo.PermissionManageServer)
	position := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        name,
			Description: desc,
			Required:    true,
			MinValue:    minValue(1),
		}
	}

	return []slashCommand{
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "setup",
				Description:              "Create the music channel and its player message.",
				DefaultMemberPermissions: perms(discordgo.PermissionManageChannels),
				DMPermission:             noDM(),
			},
			handle: (*Bot).cmdSetup,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "settings",
				Description:  "Show the music settings of this server.",
				DMPermission: noDM(),
			},
			handle: (*Bot).cmdSettings,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "default-volume",
				Description:              "Set the volume the player starts with.",
				DefaultMemberPermissions: manageGuild,
				DMPermission:             noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "volume",
					Description: "Volume from 0 to 200.",
					Required:    true,
					MinValue:    minValue(settings.MinVolume),
					MaxValue:    settings.MaxVolume,
				}},
			},
			handle: (*Bot).cmdDefaultVolume,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "default-autoplay",
				Description:              "Choose whether autoplay starts enabled.",
				DefaultMemberPermissions: manageGuild,
				DMPermission:             noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Start with autoplay on.",
					Required:    true,
				}},
			},
			handle: (*Bot).cmdDefaultAutoplay,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "default-loop",
				Description:              "Set the loop mode the player starts with.",
				DefaultMemberPermissions: manageGuild,
				DMPermission:             noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "Loop mode.",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Off", Value: string(settings.LoopNone)},
						{Name: "Track", Value: string(settings.LoopTrack)},
						{Name: "Queue", Value: string(settings.LoopQueue)},
					},
				}},
			},
			handle: (*Bot).cmdDefaultLoop,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "auto-disconnect",
				Description:              "Leave voice after a while without music.",
				DefaultMemberPermissions: manageGuild,
				DMPermission:             noDM(),
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "enabled",
						Description: "Leave voice when idle.",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "timeout",
						Description: "Idle seconds before leaving, 10 to 3600.",
						MinValue:    minValue(settings.MinIdleTimeoutSecs),
						MaxValue:    settings.MaxIdleTimeoutSecs,
					},
				},
			},
			handle: (*Bot).cmdAutoDisconnect,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "join-role",
				Description:              "Automatically assign a role to new members.",
				DefaultMemberPermissions: perms(discordgo.PermissionManageServer | discordgo.PermissionManageRoles),
				DMPermission:             noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "The role to assign when a new member joins.",
					Required:    true,
				}},
			},
			handle: (*Bot).cmdJoinRole,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:                     "remove-join-role",
				Description:              "Stop assigning a role to new members.",
				DefaultMemberPermissions: perms(discordgo.PermissionManageServer | discordgo.PermissionManageRoles),
				DMPermission:             noDM(),
			},
			handle: (*Bot).cmdRemoveJoinRole,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "play",
				Description:  "Play a song or playlist by name or link.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Song name or link.",
					Required:    true,
				}},
			},
			handle: (*Bot).cmdPlay,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "volume",
				Description:  "Set the player volume.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume from 0 to 200.",
					Required:    true,
					MinValue:    minValue(settings.MinVolume),
					MaxValue:    settings.MaxVolume,
				}},
			},
			handle: (*Bot).cmdVolume,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "seek",
				Description:  "Jump to a time in the current track.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "position",
					Description: "Time such as 1:30 or 90.",
					Required:    true,
				}},
			},
			handle: (*Bot).cmdSeek,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "fast-forward",
				Description:  "Skip ahead in the current track.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Seconds to skip, 10 by default.",
					MinValue:    minValue(1),
				}},
			},
			handle: (*Bot).cmdFastForward,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "rewind",
				Description:  "Go back in the current track.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Seconds to go back, 10 by default.",
					MinValue:    minValue(1),
				}},
			},
			handle: (*Bot).cmdRewind,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "queue",
				Description:  "Show the queue.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page to open.",
					MinValue:    minValue(1),
				}},
			},
			handle: (*Bot).cmdQueue,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "clear-queue",
				Description:  "Remove every queued track.",
				DMPermission: noDM(),
			},
			handle: (*Bot).cmdClearQueue,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "jump",
				Description:  "Play the track at a queue position.",
				DMPermission: noDM(),
				Options:      []*discordgo.ApplicationCommandOption{position("position", "Queue position.")},
			},
			handle: (*Bot).cmdJump,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "remove",
				Description:  "Remove the track at a queue position.",
				DMPermission: noDM(),
				Options:      []*discordgo.ApplicationCommandOption{position("position", "Queue position.")},
			},
			handle: (*Bot).cmdRemove,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "move",
				Description:  "Move a queued track to another position.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{
					position("from", "Current position."),
					position("to", "New position."),
				},
			},
			handle: (*Bot).cmdMove,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "shuffle",
				Description:  "Shuffle the queued tracks once.",
				DMPermission: noDM(),
			},
			handle: (*Bot).cmdShuffle,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:         "pl",
				Description:  "Manage the playlist buttons of the player.",
				DMPermission: noDM(),
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "add",
						Description: "Save a playlist as a player button.",
						Options: []*discordgo.ApplicationCommandOption{
							{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Playlist name.", Required: true, MaxLength: 50},
							{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Playlist link.", Required: true},
							{Type: discordgo.ApplicationCommandOptionString, Name: "label", Description: "Button label, the name by default.", MaxLength: 80},
							{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "Button emoji."},
							{Type: discordgo.ApplicationCommandOptionBoolean, Name: "shuffle", Description: "Shuffle the playlist when played."},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "list",
						Description: "List the saved playlists.",
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "remove",
						Description: "Delete a saved playlist.",
						Options: []*discordgo.ApplicationCommandOption{
							{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Playlist name.", Required: true},
						},
					},
				},
			},
			handle: (*Bot).cmdPlaylist,
		},
	}
}

func (b *Bot) cmdSetup(r *request, _ optionMap) error {
	if err := r.deferReply(true); err != nil {
		return err
	}
	res, err := b.surface.Setup(r.actor.GuildID)
	if err != nil {
		return err
	}
	if !res.Created {
		return r.info(fmt.Sprintf("The music channel already exists: <#%s>", res.ChannelID))
	}
	return r.success(fmt.Sprintf("Music channel ready: <#%s>", res.ChannelID))
}

func (b *Bot) cmdSettings(r *request, _ optionMap) error {
	return r.reply(ui.SettingsEmbed(b.settings.Get(r.actor.GuildID)), true)
}

func (b *Bot) updateSettings(r *request, fn func(cfg *settings.GuildConfig) error) (*settings.GuildConfig, error) {
	cfg, err := b.settings.Update(r.actor.GuildID, fn)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Settings updated", zap.String("command", r.name), zap.String("user_id", r.actor.UserID))
	return cfg, nil
}

func (b *Bot) cmdDefaultVolume(r *request, opts optionMap) error {
	cfg, err := b.updateSettings(r, func(cfg *settings.GuildConfig) error {
		cfg.DefaultVolume = opts.intValue("volume", settings.DefaultVolume)
		return nil
	})
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Default volume set to `%d%%`.", cfg.DefaultVolume))
}

func (b *Bot) cmdDefaultAutoplay(r *request, opts optionMap) error {
	on := opts.boolValue("enabled")
	if _, err := b.updateSettings(r, func(cfg *settings.GuildConfig) error {
		cfg.DefaultAutoplay = on
		return nil
	}); err != nil {
		return err
	}
	if on {
		return r.success("Autoplay now starts enabled.")
	}
	return r.success("Autoplay now starts disabled.")
}

func (b *Bot) cmdDefaultLoop(r *request, opts optionMap) error {
	mode := settings.LoopMode(opts.stringValue("mode"))
	if !mode.Valid() {
		return apperrors.NewBaseError(apperrors.ErrorTypeInput, "unknown loop mode "+string(mode), nil)
	}
	if _, err := b.updateSettings(r, func(cfg *settings.GuildConfig) error {
		cfg.DefaultLoopMode = mode
		return nil
	}); err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Default loop mode set to `%s`.", music.LoopModeFromSetting(mode)))
}

func (b *Bot) cmdAutoDisconnect(r *request, opts optionMap) error {
	on := opts.boolValue("enabled")
	cfg, err := b.updateSettings(r, func(cfg *settings.GuildConfig) error {
		cfg.AutoDisconnect = on
		cfg.IdleTimeoutSecs = opts.intValue("timeout", cfg.IdleTimeoutSecs)
		return nil
	})
	if err != nil {
		return err
	}
	if !on {
		return r.success("Auto-disconnect disabled.")
	}
	idle := time.Duration(cfg.IdleTimeoutSecs) * time.Second
	return r.success(fmt.Sprintf("I'll leave voice after `%s` without music.", music.FormatDuration(idle)))
}

func (b *Bot) cmdJoinRole(r *request, opts optionMap) error {
	roleID := opts.id("role")
	if roleID == "" || roleID == r.actor.GuildID {
		return apperrors.NewBaseError(apperrors.ErrorTypeInput, "the everyone role cannot be assigned", nil)
	}
	if resolved := r.i.ApplicationCommandData().Resolved; resolved != nil {
		if role, ok := resolved.Roles[roleID]; ok && role.Managed {
			return r.reply(ui.ErrorEmbed(fmt.Sprintf("The role `%s` is managed by an integration.", role.Name)), true)
		}
	}

	if _, err := b.updateSettings(r, func(cfg *settings.GuildConfig) error {
		cfg.JoinRoleID = roleID
		return nil
	}); err != nil {
		return err
	}
	return r.success(fmt.Sprintf("New members now get <@&%s>.", roleID))
}

func (b *Bot) cmdRemoveJoinRole(r *request, _ optionMap) error {
	if _, err := b.updateSettings(r, func(cfg *settings.GuildConfig) error {
		cfg.JoinRoleID = ""
		return nil
	}); err != nil {
		return err
	}
	return r.success("Join role removed.")
}

func (b *Bot) cmdPlay(r *request, opts optionMap) error {
	query := opts.stringValue("query")
	if err := r.deferReply(true); err != nil {
		return err
	}
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, true, false)
	if err != nil {
		return err
	}

	res, err := b.resolver.Resolve(r.ctx, query)
	if err != nil {
		return err
	}
	result, err := adm.Session.Enqueue(res.Tracks, r.actor.UserID)
	if err != nil {
		return err
	}
	return r.success(describeEnqueue(res, result))
}

// describeEnqueue renders where a request landed
func describeEnqueue(res *sources.Resolution, result music.EnqueueResult) string {
	if res.PlaylistName != "" {
		return fmt.Sprintf("Added `%d` tracks from **%s**.", result.Count, res.PlaylistName)
	}
	if result.Count > 1 {
		return fmt.Sprintf("Added `%d` tracks.", result.Count)
	}
	if result.Started {
		return fmt.Sprintf("Now playing **%s**.", result.First.Title)
	}
	return fmt.Sprintf("Added **%s** at position `%d`.", result.First.Title, result.Position)
}

func (b *Bot) cmdVolume(r *request, opts optionMap) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	v, err := adm.Session.SetVolume(opts.intValue("level", settings.DefaultVolume))
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Volume set to `%d%%`.", v))
}

func (b *Bot) cmdSeek(r *request, opts optionMap) error {
	target, err := parseTimestamp(opts.stringValue("position"))
	if err != nil {
		return err
	}
	return b.seek(r, func(s *music.Session) (time.Duration, error) { return s.Seek(target) })
}

func (b *Bot) cmdFastForward(r *request, opts optionMap) error {
	step := time.Duration(opts.intValue("seconds", int(defaultSeekStep.Seconds()))) * time.Second
	return b.seek(r, func(s *music.Session) (time.Duration, error) { return s.FastForward(step) })
}

func (b *Bot) cmdRewind(r *request, opts optionMap) error {
	step := time.Duration(opts.intValue("seconds", int(defaultSeekStep.Seconds()))) * time.Second
	return b.seek(r, func(s *music.Session) (time.Duration, error) { return s.Rewind(step) })
}

func (b *Bot) seek(r *request, op func(s *music.Session) (time.Duration, error)) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, true)
	if err != nil {
		return err
	}
	pos, err := op(adm.Session)
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Position set to `%s`.", music.FormatDuration(pos)))
}

// parseTimestamp reads "90", "1:30" or "1:02:03"
func parseTimestamp(raw string) (time.Duration, error) {
	invalid := apperrors.ErrInvalidTimestamp
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, invalid
	}

	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, invalid
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

func (b *Bot) cmdQueue(r *request, opts optionMap) error {
	snap := b.snapshot(r.actor.GuildID)
	page := ui.ClampPage(opts.intValue("page", 1), len(snap.Queue))
	return r.replyWith(ui.QueueEmbed(snap, page),
		ui.QueueComponents(r.actor.GuildID, page, ui.PageCount(len(snap.Queue))), true)
}

// snapshot returns the guild's session view, empty when no session exists
func (b *Bot) snapshot(guildID string) music.Snapshot {
	if s, ok := b.registry.Get(guildID); ok {
		return s.Snapshot()
	}
	return music.Snapshot{GuildID: guildID}
}

func (b *Bot) cmdClearQueue(r *request, _ optionMap) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	n, err := adm.Session.Clear()
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Removed `%d` tracks from the queue.", n))
}

func (b *Bot) cmdJump(r *request, opts optionMap) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	t, err := adm.Session.Jump(opts.intValue("position", 0))
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Jumped to **%s**.", t.Title))
}

func (b *Bot) cmdRemove(r *request, opts optionMap) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	t, err := adm.Session.Remove(opts.intValue("position", 0))
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Removed **%s**.", t.Title))
}

func (b *Bot) cmdMove(r *request, opts optionMap) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	to := opts.intValue("to", 0)
	t, err := adm.Session.Move(opts.intValue("from", 0), to)
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Moved **%s** to position `%d`.", t.Title, to))
}

func (b *Bot) cmdShuffle(r *request, _ optionMap) error {
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	n, err := adm.Session.ShuffleRemaining()
	if err != nil {
		return err
	}
	return r.success(fmt.Sprintf("Shuffled `%d` tracks.", n))
}

func (b *Bot) cmdPlaylist(r *request, opts optionMap) error {
	var sub *discordgo.ApplicationCommandInteractionDataOption
	for _, o := range opts {
		sub = o
	}
	if sub == nil {
		return apperrors.NewBaseError(apperrors.ErrorTypeInput, "missing subcommand", nil)
	}
	r.name = "pl " + sub.Name
	args := commandOptions(sub.Options)
	guildID := r.actor.GuildID

	switch sub.Name {
	case "add":
		url := args.stringValue("url")
		if !sources.IsURL(url) {
			return apperrors.ErrInvalidURL
		}
		name := args.stringValue("name")
		pl := settings.Playlist{
			URL:           url,
			ButtonLabel:   args.stringValue("label"),
			Emoji:         args.stringValue("emoji"),
			ShuffleOnPlay: args.boolValue("shuffle"),
		}
		if err := b.settings.AddPlaylist(guildID, name, pl); err != nil {
			return err
		}
		b.surface.RefreshControls(guildID)
		return r.success(fmt.Sprintf("Playlist **%s** saved.", name))
	case "list":
		return r.reply(ui.PlaylistsEmbed(b.settings.Get(guildID)), true)
	case "remove":
		name := args.stringValue("name")
		if err := b.settings.RemovePlaylist(guildID, name); err != nil {
			return err
		}
		b.surface.RefreshControls(guildID)
		return r.success(fmt.Sprintf("Playlist **%s** removed.", name))
	}
	return apperrors.NewBaseError(apperrors.ErrorTypeInput, "unknown subcommand "+sub.Name, nil)
}
