package discord

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/sources"
	"vibebot/backend/internal/settings"
	apperrors "vibebot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testGuild   = "guild-1"
	testUser    = "user-1"
	testBot     = "bot-1"
	testVoice   = "voice-1"
	otherVoice  = "voice-2"
	testChannel = "text-1"
)

func restErr(code int) error {
	return &discordgo.RESTError{
		Response:     &http.Response{Status: "404 Not Found", StatusCode: http.StatusNotFound},
		ResponseBody: []byte(fmt.Sprintf(`{"code": %d}`, code)),
		Message:      &discordgo.APIErrorMessage{Code: code},
	}
}

type fakePlatform struct {
	mu sync.Mutex

	voice   map[string]string // guild/user -> channel
	perms   int64
	permErr error
	limit   int
	members int
	onJoin  func(guildID, channelID string)
	joins   []string
	leaves  int

	roleAdds []string
	roleErr  error

	channels  []discordgo.GuildChannelCreateData
	webhooks  int
	sends     []*discordgo.WebhookParams
	sendErrs  []error
	edits     []*discordgo.WebhookEdit
	editErrs  []error
	embeds    []*discordgo.MessageEmbed
	deletes   []string
	msgSeq    int
	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
	editResp  []*discordgo.WebhookEdit
	commands  []*discordgo.ApplicationCommand
	guildIDs  []string

	history  []*discordgo.Message
	bulk     [][]string
	fetchErr error
	latency  time.Duration
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		voice: make(map[string]string),
		perms: discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak,
	}
}

func (p *fakePlatform) setVoice(guildID, userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voice[guildID+"/"+userID] = channelID
}

func (p *fakePlatform) BotUserID() string { return testBot }

func (p *fakePlatform) BotAvatarURL() string { return "https://cdn.example/" + testBot + ".png" }

func (p *fakePlatform) FetchBotUser() (*discordgo.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return &discordgo.User{ID: testBot, Bot: true}, nil
}

func (p *fakePlatform) GatewayLatency() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latency
}

func (p *fakePlatform) Shard() (int, int) { return 0, 1 }

func (p *fakePlatform) GuildIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.guildIDs...)
}

func (p *fakePlatform) UserVoiceChannel(guildID, userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.voice[guildID+"/"+userID]
	return ch, ok && ch != ""
}

func (p *fakePlatform) BotPermissions(channelID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perms, p.permErr
}

func (p *fakePlatform) VoiceOccupancy(guildID, channelID string) (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit, p.members, nil
}

func (p *fakePlatform) JoinVoice(guildID, channelID string) error {
	p.mu.Lock()
	p.joins = append(p.joins, channelID)
	onJoin := p.onJoin
	p.mu.Unlock()

	if onJoin != nil {
		onJoin(guildID, channelID)
	}
	return nil
}

func (p *fakePlatform) LeaveVoice(guildID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaves++
	return nil
}

func (p *fakePlatform) AddMemberRole(guildID, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roleAdds = append(p.roleAdds, userID+"/"+roleID)
	return p.roleErr
}

func (p *fakePlatform) CreateTextChannel(guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, data)
	return &discordgo.Channel{ID: fmt.Sprintf("text-%d", len(p.channels)), GuildID: guildID, Name: data.Name}, nil
}

func (p *fakePlatform) CreateWebhook(channelID, name string) (*discordgo.Webhook, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.webhooks++
	return &discordgo.Webhook{ID: fmt.Sprintf("hook-%d", p.webhooks), Token: "token", ChannelID: channelID}, nil
}

func (p *fakePlatform) WebhookSend(webhookID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, params)
	if len(p.sendErrs) > 0 {
		err := p.sendErrs[0]
		p.sendErrs = p.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	p.msgSeq++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", p.msgSeq), WebhookID: webhookID}, nil
}

func (p *fakePlatform) WebhookEdit(webhookID, token, messageID string, edit *discordgo.WebhookEdit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits = append(p.edits, edit)
	if len(p.editErrs) > 0 {
		err := p.editErrs[0]
		p.editErrs = p.editErrs[1:]
		return err
	}
	return nil
}

func (p *fakePlatform) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embeds = append(p.embeds, embed)
	p.msgSeq++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", p.msgSeq), ChannelID: channelID}, nil
}

func (p *fakePlatform) DeleteMessage(channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, messageID)
	return nil
}

func (p *fakePlatform) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.history
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]*discordgo.Message(nil), msgs...), nil
}

func (p *fakePlatform) BulkDelete(channelID string, messageIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bulk = append(p.bulk, append([]string(nil), messageIDs...))
	return nil
}

func (p *fakePlatform) Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return nil
}

func (p *fakePlatform) Followup(i *discordgo.Interaction, ephemeral bool, params *discordgo.WebhookParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.followups = append(p.followups, params)
	return nil
}

func (p *fakePlatform) EditResponse(i *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.editResp = append(p.editResp, edit)
	return nil
}

func (p *fakePlatform) RegisterCommands(guildID string, cmds []*discordgo.ApplicationCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = cmds
	return nil
}

func (p *fakePlatform) sentEmbeds() []*discordgo.MessageEmbed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), p.embeds...)
}

func (p *fakePlatform) deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deletes...)
}

func (p *fakePlatform) editCalls() []*discordgo.WebhookEdit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*discordgo.WebhookEdit(nil), p.edits...)
}

func (p *fakePlatform) sendCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

// lastReply returns the description of the most recent response or followup embed
func (p *fakePlatform) lastReply() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.followups); n > 0 && len(p.followups[n-1].Embeds) > 0 {
		return p.followups[n-1].Embeds[0].Description
	}
	for i := len(p.responses) - 1; i >= 0; i-- {
		if d := p.responses[i].Data; d != nil && len(d.Embeds) > 0 {
			return d.Embeds[0].Description
		}
	}
	return ""
}

func (p *fakePlatform) lastResponse() *discordgo.InteractionResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.responses) == 0 {
		return nil
	}
	return p.responses[len(p.responses)-1]
}

type fakeNode struct {
	mu          sync.Mutex
	unavailable bool
	played      []string
}

func (n *fakeNode) Available() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.unavailable
}

func (n *fakeNode) LoadTracks(ctx context.Context, identifier string) (*music.LoadResult, error) {
	return &music.LoadResult{Type: music.LoadEmpty}, nil
}

func (n *fakeNode) Play(ctx context.Context, guildID string, t music.Track, opts music.PlayOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.played = append(n.played, t.Identifier)
	return nil
}

func (n *fakeNode) Stop(ctx context.Context, guildID string) error { return nil }

func (n *fakeNode) Pause(ctx context.Context, guildID string, paused bool) error { return nil }

func (n *fakeNode) Seek(ctx context.Context, guildID string, position time.Duration) error {
	return nil
}

func (n *fakeNode) SetVolume(ctx context.Context, guildID string, volume int) error { return nil }

func (n *fakeNode) UpdateVoice(ctx context.Context, guildID string, voice music.VoiceServer) error {
	return nil
}

func (n *fakeNode) Destroy(ctx context.Context, guildID string) error { return nil }

type fakeResolver struct {
	results map[string]*sources.Resolution
}

func (r *fakeResolver) Resolve(ctx context.Context, query string) (*sources.Resolution, error) {
	res, ok := r.results[query]
	if !ok {
		return nil, apperrors.ErrNoResults
	}
	return res, nil
}

func (r *fakeResolver) ResolveMany(ctx context.Context, queries []string) []sources.Result {
	out := make([]sources.Result, len(queries))
	for i, q := range queries {
		res, err := r.Resolve(ctx, q)
		out[i] = sources.Result{Resolution: res, Err: err}
	}
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	commands []string
	updates  []string
}

func (r *fakeRecorder) RecordCommand(command, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command+"/"+status)
}

func (r *fakeRecorder) RecordSurfaceUpdate(kind, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, kind+"/"+status)
}

func (r *fakeRecorder) commandLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func testTrack(id string) music.Track {
	return music.Track{
		Encoded:    "enc-" + id,
		Identifier: id,
		Title:      "Track " + id,
		Author:     "Artist " + id,
		URI:        "https://example.com/watch?v=" + id,
		Duration:   3 * time.Minute,
		IsSeekable: true,
		SourceName: "youtube",
	}
}

func resolution(ids ...string) *sources.Resolution {
	res := &sources.Resolution{}
	for _, id := range ids {
		res.Tracks = append(res.Tracks, testTrack(id))
	}
	return res
}

type env struct {
	bot      *Bot
	platform *fakePlatform
	node     *fakeNode
	registry *music.Registry
	settings *settings.Manager
	surface  *Surface
	resolver *fakeResolver
	recorder *fakeRecorder
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mgr, err := settings.NewManager(settings.NewJSONStore(filepath.Join(t.TempDir(), "music_data.json")), 300, zap.NewNop())
	require.NoError(t, err)

	e := &env{
		platform: newFakePlatform(),
		node:     &fakeNode{},
		settings: mgr,
		resolver: &fakeResolver{results: make(map[string]*sources.Resolution)},
		recorder: &fakeRecorder{},
	}
	e.registry = music.NewRegistry(music.Options{
		Node:        e.node,
		Voice:       NewVoiceGateway(e.platform),
		Config:      mgr,
		Logger:      zap.NewNop(),
		JoinTimeout: time.Second,
		Async:       func(f func()) { f() },
	})
	e.surface = NewSurface(e.platform, mgr, e.registry, SurfaceOptions{
		EditsPerSecond: 1000,
		NoticeTTL:      time.Millisecond,
		Recorder:       e.recorder,
		Logger:         zap.NewNop(),
	})
	e.registry.SetNotifier(e.surface)
	e.platform.onJoin = func(guildID, channelID string) {
		e.registry.HandleVoiceState(guildID, "voice-session", channelID)
		e.registry.HandleVoiceServer(guildID, "token", "eu-west.discord.media")
	}
	e.bot = New(Options{
		Platform: e.platform,
		Registry: e.registry,
		Settings: mgr,
		Surface:  e.surface,
		Resolver: e.resolver,
		Recorder: e.recorder,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(e.surface.Close)
	return e
}

// connect puts the test user in voice and has the bot join them
func (e *env) connect(t *testing.T) *music.Session {
	t.Helper()
	e.platform.setVoice(testGuild, testUser, testVoice)
	s := e.registry.GetOrCreate(testGuild)
	require.NoError(t, s.RequestJoin(context.Background(), testVoice))
	return s
}

func (e *env) playing(t *testing.T, ids ...string) *music.Session {
	t.Helper()
	s := e.connect(t)
	_, err := s.Enqueue(resolution(ids...).Tracks, testUser)
	require.NoError(t, err)
	return s
}

func commandInteraction(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "interaction-1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: testGuild,
		Member:  &discordgo.Member{User: &discordgo.User{ID: testUser}},
		Data:    discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
}

func componentInteraction(customID string, values ...string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "interaction-2",
		Type:    discordgo.InteractionMessageComponent,
		GuildID: testGuild,
		Member:  &discordgo.Member{User: &discordgo.User{ID: testUser}},
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID, Values: values},
	}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func stringOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func boolOpt(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}
