package lavalink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"vibebot/backend/internal/music"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientName     = "vibebot/1.0"
	minBackoff     = time.Second
	maxBackoff     = 30 * time.Second
	requestTimeout = 15 * time.Second
)

// Config describes how to reach one Lavalink node
type Config struct {
	Name         string
	BaseURL      string // http(s)://host:port
	WebsocketURL string // ws(s)://host:port/v4/websocket
	Password     string
	UserID       string // bot user id
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client is a Lavalink v4 node. It implements music.Node.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	dialer *websocket.Dialer

	mu        sync.RWMutex
	sessionID string
	stats     Stats
}

var _ music.Node = (*Client)(nil)

// New creates a client; call Run to open the event stream
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With(zap.String("node", cfg.Name)),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Available reports whether the node has a ready session
func (c *Client) Available() bool {
	return c.SessionID() != ""
}

// SessionID returns the current node session, empty while disconnected
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Stats returns the last reported node statistics
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Run keeps the websocket open until ctx ends, reconnecting with capped
// exponential backoff. Every event is passed to handle in order.
func (c *Client) Run(ctx context.Context, handle func(music.NodeEvent)) error {
	backoff := minBackoff
	for {
		ready, err := c.connect(ctx, handle)
		c.setSession("")
		if ready {
			backoff = minBackoff
			reason := ""
			if err != nil {
				reason = err.Error()
			}
			handle(music.NodeEvent{Type: music.NodeDisconnected, Message: reason})
		}
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Warn("Lavalink connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) connect(ctx context.Context, handle func(music.NodeEvent)) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", c.cfg.Password)
	header.Set("User-Id", c.cfg.UserID)
	header.Set("Client-Name", clientName)

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.WebsocketURL, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial lavalink: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial lavalink: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	ready := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return ready, err
		}
		if c.dispatch(data, handle) {
			ready = true
		}
	}
}

// dispatch decodes one frame and reports whether it was the ready op
func (c *Client) dispatch(data []byte, handle func(music.NodeEvent)) bool {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Undecodable lavalink frame", zap.Error(err))
		return false
	}

	switch msg.Op {
	case "ready":
		c.setSession(msg.SessionID)
		c.logger.Info("Lavalink session ready",
			zap.String("session_id", msg.SessionID),
			zap.Bool("resumed", msg.Resumed))
		handle(music.NodeEvent{Type: music.NodeConnected})
		return true

	case "stats":
		c.mu.Lock()
		c.stats = Stats{
			Players:        msg.Players,
			PlayingPlayers: msg.PlayingPlayers,
			Uptime:         time.Duration(msg.Uptime) * time.Millisecond,
		}
		c.mu.Unlock()

	case "playerUpdate":
		if msg.State == nil {
			return false
		}
		handle(music.NodeEvent{
			Type:     music.PlayerUpdate,
			GuildID:  msg.GuildID,
			Position: time.Duration(msg.State.Position) * time.Millisecond,
		})

	case "event":
		if ev, ok := c.toEvent(msg); ok {
			handle(ev)
		}

	default:
		c.logger.Debug("Unknown lavalink op", zap.String("op", msg.Op))
	}
	return false
}

func (c *Client) toEvent(msg message) (music.NodeEvent, bool) {
	ev := music.NodeEvent{GuildID: msg.GuildID, Nonce: msg.Track.nonce()}
	if msg.Track != nil {
		ev.Encoded = msg.Track.Encoded
	}

	switch msg.Type {
	case "TrackStartEvent":
		ev.Type = music.TrackStarted
	case "TrackEndEvent":
		ev.Type = music.TrackEnded
		ev.Reason = music.EndReason(msg.Reason)
	case "TrackExceptionEvent":
		ev.Type = music.TrackException
		if msg.Exception != nil {
			ev.Message = msg.Exception.Message
		}
	case "TrackStuckEvent":
		ev.Type = music.TrackStuck
		ev.Message = fmt.Sprintf("stuck for %dms", msg.ThresholdMs)
	case "WebSocketClosedEvent":
		ev.Type = music.VoiceClosed
		ev.Message = fmt.Sprintf("code %d: %s", msg.Code, msg.Reason)
	default:
		c.logger.Debug("Unknown lavalink event", zap.String("type", msg.Type))
		return music.NodeEvent{}, false
	}
	return ev, true
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// APIError is a non-2xx REST response
type APIError struct {
	Status  int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lavalink %s: %d %s", e.Path, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the node
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
