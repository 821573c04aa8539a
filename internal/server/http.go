package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/presence"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/session"
	"github.com/alfredjeanlab/kgview/internal/theme"
)

// maxBodyBytes bounds command bodies, uploads included.
const maxBodyBytes = 32 << 20

// Handler returns an http.Handler with all routes registered.
// When the server has an auth token, requests (except GET /v1/health) must
// include a valid Authorization: Bearer <token> header.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/scene", s.handleScene)
	mux.HandleFunc("GET /v1/scene.svg", s.handleSceneImage(render.FormatSVG))
	mux.HandleFunc("GET /v1/scene.png", s.handleSceneImage(render.FormatPNG))
	mux.HandleFunc("GET /v1/graph", s.handleGraph)
	mux.HandleFunc("GET /v1/graphs", s.handleGraphs)
	mux.HandleFunc("GET /v1/commands", s.handleListCommands)
	mux.HandleFunc("POST /v1/commands/{name}", s.handleCommand)
	mux.HandleFunc("POST /v1/input", s.handleInput)
	mux.HandleFunc("GET /v1/theme", s.handleTheme)
	mux.HandleFunc("POST /v1/theme/toggle", s.handleToggleTheme)
	mux.HandleFunc("GET /v1/viewers", s.handleViewers)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = InstrumentMiddleware(s.logger, s.metrics, mux)
	h = AuthMiddleware(s.authToken, h)
	h = RequestIDMiddleware(h)
	return RecoveryMiddleware(s.logger, h)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

// handleScene handles GET /v1/scene.
func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Scene())
}

func (s *Server) handleSceneImage(f render.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := s.session.SerializeScene(f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", f.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// handleGraph handles GET /v1/graph.
func (s *Server) handleGraph(w http.ResponseWriter, _ *http.Request) {
	g := s.session.Graph()
	if g == nil {
		writeError(w, http.StatusNotFound, "no graph loaded")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleGraphs handles GET /v1/graphs. With ?user=<id> the list is
// refreshed from the backend first.
func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	if user := r.URL.Query().Get("user"); user != "" {
		if _, err := s.session.LoadGraphList(r.Context(), user); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       s.session.UserID(),
		"graph_id":      s.session.GraphID(),
		"graph_options": s.session.GraphOptions(),
	})
}

// handleListCommands handles GET /v1/commands.
func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": s.session.Commands().Names()})
}

// handleCommand handles POST /v1/commands/{name}. The body is an Args
// object and may be empty.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var args session.Args
	if err := decodeBody(r, &args); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.PathValue("name")
	s.touch(r, name)

	res, err := s.session.Exec(r.Context(), name, args)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeResult(w, res)
}

// handleInput handles POST /v1/input.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var ev render.InputEvent
	if err := decodeBody(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ev.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}
	s.touch(r, string(ev.Kind))

	res, err := s.session.HandleInput(r.Context(), ev)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeResult(w, res)
}

// handleTheme handles GET /v1/theme.
func (s *Server) handleTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]theme.Mode{"mode": s.session.Theme()})
}

// handleToggleTheme handles POST /v1/theme/toggle.
func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	s.touch(r, session.CmdToggleTheme)
	writeJSON(w, http.StatusOK, map[string]theme.Mode{"mode": s.session.ToggleTheme(r.Context())})
}

// handleViewers handles GET /v1/viewers. ?stale=<duration> leaves out
// viewers silent for longer.
func (s *Server) handleViewers(w http.ResponseWriter, r *http.Request) {
	var stale time.Duration
	if q := r.URL.Query().Get("stale"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid stale duration %q", q))
			return
		}
		stale = d
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewers": s.presence.Roster(stale)})
}

// touch records viewer activity for requests that name a viewer.
func (s *Server) touch(r *http.Request, kind string) {
	id := r.Header.Get(ViewerHeader)
	if id == "" {
		id = r.URL.Query().Get("viewer")
	}
	if id == "" {
		return
	}
	s.presence.Record(presence.Activity{
		ViewerID:   id,
		Kind:       kind,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}

// writeResult writes a command result. Raw bytes are passed through as
// JSON documents; no result is a plain ok.
func writeResult(w http.ResponseWriter, res any) {
	switch v := res.(type) {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case []byte:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(v)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// statusFor maps a session error to an HTTP status.
func statusFor(err error) int {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUserCancelled):
		return http.StatusConflict
	case model.IsDataIntegrity(err):
		return http.StatusUnprocessableEntity
	case model.IsNetworkError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeSessionError writes err with its mapped status. Validation errors
// carry their per-field messages.
func writeSessionError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, code, map[string]any{"error": err.Error(), "fields": ve.Errors})
		return
	}
	writeError(w, code, err.Error())
}

// writeJSON marshals data as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
