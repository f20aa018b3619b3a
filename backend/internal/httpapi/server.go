// Package httpapi serves health, metrics and a read-only view of the
// playback sessions.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"vibebot/backend/internal/music"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Sessions is the part of the session registry the API reads
type Sessions interface {
	Sessions() []*music.Session
	Get(guildID string) (*music.Session, bool)
	NodeAvailable() bool
}

// Options configures the server
type Options struct {
	Addr       string
	Production bool
	Sessions   Sessions
	Metrics    http.Handler
	Logger     *zap.Logger
}

// Server is the operability HTTP endpoint
type Server struct {
	router   *gin.Engine
	sessions Sessions
	addr     string
	logger   *zap.Logger
}

// New builds the router
func New(opts Options) *Server {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		router:   gin.New(),
		sessions: opts.Sessions,
		addr:     opts.Addr,
		logger:   opts.Logger,
	}
	s.router.Use(ginLogger(opts.Logger))
	s.router.Use(gin.Recovery())

	s.router.GET("/health", s.health)
	if opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := s.router.Group("/api")
	{
		api.GET("/sessions", s.listSessions)
		api.GET("/guilds/:id/session", s.getSession)
	}
	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("HTTP server started", zap.String("addr", s.addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server forced to shutdown", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if !s.sessions.NodeAvailable() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "node": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "node": "available"})
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.sessions.Sessions()
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, newSessionView(sess.Snapshot()))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, newSessionView(sess.Snapshot()))
}

// ginLogger logs one line per request
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
