package discord

import (
	"fmt"
	"math/rand"
	"strconv"

	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/ui"
	apperrors "vibebot/backend/pkg/errors"

	"go.uber.org/zap"
)

// volumeStep is how far the volume buttons move
const volumeStep = 10

// handleComponent routes a button press or select by its custom id
func (b *Bot) handleComponent(r *request) error {
	data := r.i.MessageComponentData()
	id, ok := ui.ParseID(data.CustomID)
	if !ok {
		r.logger.Debug("Ignoring foreign component", zap.String("custom_id", data.CustomID))
		return nil
	}
	r.name = "button " + string(id.Action)
	if id.GuildID != r.actor.GuildID {
		return apperrors.ErrForeignControl
	}

	switch id.Action {
	case ui.ActionQueuePage:
		page := 1
		if len(data.Values) > 0 {
			page, _ = strconv.Atoi(data.Values[0])
		}
		return b.showQueuePage(r, page)
	case ui.ActionQueuePrev:
		return b.showQueuePage(r, id.Page()-1)
	case ui.ActionQueueNext:
		return b.showQueuePage(r, id.Page()+1)
	case ui.ActionQueueRefresh:
		return b.showQueuePage(r, id.Page())
	case ui.ActionConnect:
		return b.pressConnect(r)
	case ui.ActionPlaylist:
		return b.pressPlaylist(r, id.Arg)
	}

	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, false, false)
	if err != nil {
		return err
	}
	s := adm.Session

	switch id.Action {
	case ui.ActionVolumeDown:
		_, err = s.AdjustVolume(-volumeStep)
	case ui.ActionVolumeUp:
		_, err = s.AdjustVolume(volumeStep)
	case ui.ActionPrevious:
		_, err = s.Previous()
	case ui.ActionPause:
		_, err = s.TogglePause()
	case ui.ActionSkip:
		_, err = s.Skip()
	case ui.ActionLoop:
		s.CycleLoop()
	case ui.ActionShuffle:
		s.ToggleShuffle()
	case ui.ActionAutoplay:
		s.ToggleAutoplay()
	case ui.ActionStop:
		err = s.Stop()
	default:
		r.logger.Debug("Unknown action", zap.String("action", string(id.Action)))
	}
	if err != nil {
		return err
	}
	return r.ack()
}

func (b *Bot) showQueuePage(r *request, page int) error {
	snap := b.snapshot(r.actor.GuildID)
	page = ui.ClampPage(page, len(snap.Queue))
	return r.update(ui.QueueEmbed(snap, page),
		ui.QueueComponents(r.actor.GuildID, page, ui.PageCount(len(snap.Queue))))
}

// pressConnect joins the actor's channel, or leaves when the bot was
// already connected before the press.
func (b *Bot) pressConnect(r *request) error {
	if err := r.ack(); err != nil {
		return err
	}
	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, true, false)
	if err != nil {
		return err
	}
	if adm.Joined {
		return nil
	}
	return adm.Session.RequestLeave(r.ctx)
}

// pressPlaylist queues a saved playlist, joining voice when needed
func (b *Bot) pressPlaylist(r *request, name string) error {
	if err := r.ack(); err != nil {
		return err
	}
	pl, ok := b.settings.Playlist(r.actor.GuildID, name)
	if !ok {
		b.surface.RefreshControls(r.actor.GuildID)
		return apperrors.ErrPlaylistNotFound
	}

	adm, err := b.gateway.CheckPreconditions(r.ctx, r.actor, true, false)
	if err != nil {
		return err
	}
	res, err := b.resolver.Resolve(r.ctx, pl.URL)
	if err != nil {
		return err
	}

	tracks := res.Tracks
	if pl.ShuffleOnPlay {
		tracks = append([]music.Track(nil), tracks...)
		rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
	}
	result, err := adm.Session.Enqueue(tracks, r.actor.UserID)
	if err != nil {
		return err
	}

	r.logger.Info("Queued saved playlist",
		zap.String("playlist", name),
		zap.Int("tracks", result.Count))
	return r.reply(ui.SuccessEmbed(fmt.Sprintf("Added `%d` tracks from **%s**.", result.Count, name)), true)
}
