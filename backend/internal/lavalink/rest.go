package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vibebot/backend/internal/music"
	apperrors "vibebot/backend/pkg/errors"

	"go.uber.org/zap"
)

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Authorization", c.cfg.Password)
	req.Header.Set("Client-Name", clientName)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Path: path, Message: resp.Status}
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Message != "" {
			apiErr.Message = er.Message
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// LoadTracks resolves a URL or a prefixed search query
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*music.LoadResult, error) {
	var resp loadResponse
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result := &music.LoadResult{Type: music.LoadType(resp.LoadType)}
	switch result.Type {
	case music.LoadTrack:
		var t wireTrack
		if err := json.Unmarshal(resp.Data, &t); err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		result.Tracks = []music.Track{t.toTrack()}

	case music.LoadSearch:
		var ts []wireTrack
		if err := json.Unmarshal(resp.Data, &ts); err != nil {
			return nil, fmt.Errorf("decode search: %w", err)
		}
		result.Tracks = convert(ts)

	case music.LoadPlaylist:
		var pl playlistData
		if err := json.Unmarshal(resp.Data, &pl); err != nil {
			return nil, fmt.Errorf("decode playlist: %w", err)
		}
		result.PlaylistName = pl.Info.Name
		result.Tracks = convert(pl.Tracks)

	case music.LoadError:
		var ex exception
		if err := json.Unmarshal(resp.Data, &ex); err == nil {
			result.Error = ex.Message
		}

	case music.LoadEmpty:
	default:
		return nil, fmt.Errorf("unknown load type %q", resp.LoadType)
	}

	c.logger.Debug("Loaded tracks",
		zap.String("identifier", identifier),
		zap.String("load_type", resp.LoadType),
		zap.Int("tracks", len(result.Tracks)))
	return result, nil
}

func convert(ts []wireTrack) []music.Track {
	out := make([]music.Track, len(ts))
	for i, t := range ts {
		out[i] = t.toTrack()
	}
	return out
}

func (c *Client) playerPath(guildID string) (string, error) {
	sid := c.SessionID()
	if sid == "" {
		return "", apperrors.ErrNoNode
	}
	return fmt.Sprintf("/v4/sessions/%s/players/%s", url.PathEscape(sid), url.PathEscape(guildID)), nil
}

func (c *Client) update(ctx context.Context, guildID string, body updatePlayer) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path+"?noReplace=false", body, nil)
}

// Play replaces the player's track
func (c *Client) Play(ctx context.Context, guildID string, track music.Track, opts music.PlayOptions) error {
	encoded := track.Encoded
	volume := opts.Volume
	paused := opts.Paused
	return c.update(ctx, guildID, updatePlayer{
		Track:  &playerTrack{Encoded: &encoded, UserData: &userData{Nonce: opts.Nonce}},
		Volume: &volume,
		Paused: &paused,
	})
}

// Stop clears the player's track
func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.update(ctx, guildID, updatePlayer{Track: &playerTrack{}})
}

// Pause pauses or resumes the player
func (c *Client) Pause(ctx context.Context, guildID string, paused bool) error {
	return c.update(ctx, guildID, updatePlayer{Paused: &paused})
}

// Seek moves the playback position
func (c *Client) Seek(ctx context.Context, guildID string, position time.Duration) error {
	ms := position.Milliseconds()
	return c.update(ctx, guildID, updatePlayer{Position: &ms})
}

// SetVolume sets the player volume (0-1000 on the node, 0-200 here)
func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	return c.update(ctx, guildID, updatePlayer{Volume: &volume})
}

// UpdateVoice hands the voice handshake to the node, creating the player
func (c *Client) UpdateVoice(ctx context.Context, guildID string, voice music.VoiceServer) error {
	return c.update(ctx, guildID, updatePlayer{Voice: &voiceState{
		Token:     voice.Token,
		Endpoint:  voice.Endpoint,
		SessionID: voice.SessionID,
	}})
}

// Destroy removes the player. A player that is already gone is not an error.
func (c *Client) Destroy(ctx context.Context, guildID string) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}
