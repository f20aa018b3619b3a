package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord JSON error codes the surface reacts to
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
	codeUnknownWebhook = 10015
)

// Platform is the subset of the Discord API the bot needs. The session
// implementation wraps discordgo; tests use a fake.
type Platform interface {
	BotUserID() string
	// BotAvatarURL is empty until the gateway is ready
	BotAvatarURL() string
	GuildIDs() []string
	// FetchBotUser reads the bot user over REST; /ping times it
	FetchBotUser() (*discordgo.User, error)
	GatewayLatency() time.Duration
	Shard() (id, count int)

	// UserVoiceChannel returns the voice channel a member sits in
	UserVoiceChannel(guildID, userID string) (string, bool)
	BotPermissions(channelID string) (int64, error)
	// VoiceOccupancy returns the channel user limit (0 is unlimited) and the member count
	VoiceOccupancy(guildID, channelID string) (limit, members int, err error)
	JoinVoice(guildID, channelID string) error
	LeaveVoice(guildID string) error
	AddMemberRole(guildID, userID, roleID string) error

	CreateTextChannel(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	CreateWebhook(channelID, name string) (*discordgo.Webhook, error)
	WebhookSend(webhookID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error)
	WebhookEdit(webhookID, token, messageID string, edit *discordgo.WebhookEdit) error
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	DeleteMessage(channelID, messageID string) error
	RecentMessages(channelID string, limit int) ([]*discordgo.Message, error)
	// BulkDelete removes up to 100 messages younger than two weeks
	BulkDelete(channelID string, messageIDs []string) error

	Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	Followup(i *discordgo.Interaction, ephemeral bool, params *discordgo.WebhookParams) error
	EditResponse(i *discordgo.Interaction, edit *discordgo.WebhookEdit) error
	RegisterCommands(guildID string, cmds []*discordgo.ApplicationCommand) error
}

// sessionPlatform implements Platform on a discordgo session
type sessionPlatform struct {
	s *discordgo.Session
}

// NewPlatform wraps a discordgo session
func NewPlatform(s *discordgo.Session) Platform {
	return &sessionPlatform{s: s}
}

func (p *sessionPlatform) BotUserID() string {
	if p.s.State == nil || p.s.State.User == nil {
		return ""
	}
	return p.s.State.User.ID
}

func (p *sessionPlatform) BotAvatarURL() string {
	if p.s.State == nil || p.s.State.User == nil {
		return ""
	}
	return p.s.State.User.AvatarURL("256")
}

func (p *sessionPlatform) FetchBotUser() (*discordgo.User, error) {
	return p.s.User("@me")
}

func (p *sessionPlatform) GatewayLatency() time.Duration {
	return p.s.HeartbeatLatency()
}

func (p *sessionPlatform) Shard() (int, int) {
	return p.s.ShardID, p.s.ShardCount
}

func (p *sessionPlatform) GuildIDs() []string {
	p.s.State.RLock()
	defer p.s.State.RUnlock()

	ids := make([]string, 0, len(p.s.State.Guilds))
	for _, g := range p.s.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

func (p *sessionPlatform) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := p.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func (p *sessionPlatform) BotPermissions(channelID string) (int64, error) {
	return p.s.UserChannelPermissions(p.BotUserID(), channelID)
}

func (p *sessionPlatform) VoiceOccupancy(guildID, channelID string) (int, int, error) {
	ch, err := p.s.State.Channel(channelID)
	if err != nil {
		if ch, err = p.s.Channel(channelID); err != nil {
			return 0, 0, fmt.Errorf("fetch channel %s: %w", channelID, err)
		}
	}

	guild, err := p.s.State.Guild(guildID)
	if err != nil {
		return ch.UserLimit, 0, nil
	}

	p.s.State.RLock()
	defer p.s.State.RUnlock()
	members := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			members++
		}
	}
	return ch.UserLimit, members, nil
}

// JoinVoice only sends the gateway voice state update; audio is carried by
// the streaming node once it receives the voice server credentials.
func (p *sessionPlatform) JoinVoice(guildID, channelID string) error {
	return p.s.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

func (p *sessionPlatform) LeaveVoice(guildID string) error {
	return p.s.ChannelVoiceJoinManual(guildID, "", false, false)
}

func (p *sessionPlatform) AddMemberRole(guildID, userID, roleID string) error {
	return p.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (p *sessionPlatform) CreateTextChannel(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	return p.s.GuildChannelCreateComplex(guildID, data)
}

func (p *sessionPlatform) CreateWebhook(channelID, name string) (*discordgo.Webhook, error) {
	return p.s.WebhookCreate(channelID, name, "")
}

func (p *sessionPlatform) WebhookSend(webhookID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return p.s.WebhookExecute(webhookID, token, true, params)
}

func (p *sessionPlatform) WebhookEdit(webhookID, token, messageID string, edit *discordgo.WebhookEdit) error {
	_, err := p.s.WebhookMessageEdit(webhookID, token, messageID, edit)
	return err
}

func (p *sessionPlatform) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return p.s.ChannelMessageSendEmbed(channelID, embed)
}

func (p *sessionPlatform) DeleteMessage(channelID, messageID string) error {
	return p.s.ChannelMessageDelete(channelID, messageID)
}

func (p *sessionPlatform) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	return p.s.ChannelMessages(channelID, limit, "", "", "")
}

func (p *sessionPlatform) BulkDelete(channelID string, messageIDs []string) error {
	return p.s.ChannelMessagesBulkDelete(channelID, messageIDs)
}

func (p *sessionPlatform) Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return p.s.InteractionRespond(i, resp)
}

func (p *sessionPlatform) Followup(i *discordgo.Interaction, ephemeral bool, params *discordgo.WebhookParams) error {
	_, err := p.s.FollowupMessageCreate(i, ephemeral, params)
	return err
}

func (p *sessionPlatform) EditResponse(i *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	_, err := p.s.InteractionResponseEdit(i, edit)
	return err
}

func (p *sessionPlatform) RegisterCommands(guildID string, cmds []*discordgo.ApplicationCommand) error {
	_, err := p.s.ApplicationCommandBulkOverwrite(p.BotUserID(), guildID, cmds)
	return err
}

// restCode extracts the Discord JSON error code of a failed REST call
func restCode(err error) int {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return 0
	}
	if restErr.Message != nil && restErr.Message.Code != 0 {
		return restErr.Message.Code
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return codeUnknownMessage
	}
	return 0
}

// isGone reports whether err means the surface message or its webhook no longer exists
func isGone(err error) bool {
	switch restCode(err) {
	case codeUnknownMessage, codeUnknownWebhook, codeUnknownChannel:
		return true
	}
	return false
}
