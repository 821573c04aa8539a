// Package server exposes an explorer session over HTTP: scene snapshots,
// commands, pointer input and a server-sent event stream of session events
// and scene frames.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/metrics"
	"github.com/alfredjeanlab/kgview/internal/presence"
	"github.com/alfredjeanlab/kgview/internal/session"
)

// shutdownTimeout bounds graceful shutdown once the serve context ends.
const shutdownTimeout = 10 * time.Second

// Config wires a Server.
type Config struct {
	Session  *session.Session
	Hub      *Hub
	Presence *presence.Tracker
	Metrics  *metrics.Collector

	// AuthToken, when set, is required as a Bearer token on every request
	// but the health check.
	AuthToken string

	Logger *zap.Logger
}

// Server serves one session.
type Server struct {
	session   *session.Session
	hub       *Hub
	presence  *presence.Tracker
	metrics   *metrics.Collector
	authToken string
	logger    *zap.Logger
}

// New returns a server for cfg.Session. Missing collaborators get defaults.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	tracker := cfg.Presence
	if tracker == nil {
		tracker = presence.New(logger)
	}
	return &Server{
		session:   cfg.Session,
		hub:       hub,
		presence:  tracker,
		metrics:   cfg.Metrics,
		authToken: cfg.AuthToken,
		logger:    logger.Named("server"),
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
