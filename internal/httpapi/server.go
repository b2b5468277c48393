// Package httpapi exposes the tutorvox HTTP surface: the streaming chat
// endpoint, character listing, thread management, and the operational
// endpoints (health, readiness, metrics).
//
// The chat endpoint speaks server-sent events. Every response is a sequence
// of "data: {json}" records terminated by the "data: [DONE]" sentinel; see
// the frame package for the record format.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/tutorvox/internal/character"
	"github.com/MrWong99/tutorvox/internal/health"
	"github.com/MrWong99/tutorvox/internal/observe"
	"github.com/MrWong99/tutorvox/internal/stream"
	"github.com/MrWong99/tutorvox/internal/thread"
)

// Server holds the handlers for the tutorvox HTTP API.
type Server struct {
	orch    *stream.Orchestrator
	threads thread.Store
	metrics *observe.Metrics
	log     *slog.Logger
	checks  []health.Checker

	// chars is swappable at runtime so config reloads can replace the
	// character catalogue without restarting in-flight streams.
	chars atomic.Pointer[character.Registry]
}

// Option is a functional option for NewServer.
type Option func(*Server)

// WithThreadStore enables the thread management endpoints.
func WithThreadStore(s thread.Store) Option {
	return func(srv *Server) { srv.threads = s }
}

// WithMetrics sets the metrics instance used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) { srv.log = l }
}

// WithHealthCheckers adds readiness checks served on /readyz.
func WithHealthCheckers(checks ...health.Checker) Option {
	return func(srv *Server) { srv.checks = append(srv.checks, checks...) }
}

// NewServer creates the HTTP API server. The orchestrator and character
// registry are required; everything else is optional.
func NewServer(orch *stream.Orchestrator, chars *character.Registry, opts ...Option) (*Server, error) {
	if orch == nil {
		return nil, errors.New("httpapi: orchestrator is required")
	}
	if chars == nil {
		return nil, errors.New("httpapi: character registry is required")
	}

	s := &Server{
		orch: orch,
		log:  slog.Default(),
	}
	s.chars.Store(chars)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// SetCharacters replaces the character registry. Safe to call while requests
// are being served; in-flight streams keep the characters they resolved.
func (s *Server) SetCharacters(chars *character.Registry) {
	if chars != nil {
		s.chars.Store(chars)
	}
}

// characters returns the current character registry.
func (s *Server) characters() *character.Registry {
	return s.chars.Load()
}

// Handler builds the full route table wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/characters", s.handleListCharacters)
	mux.HandleFunc("GET /api/threads", s.handleListThreads)
	mux.HandleFunc("GET /api/threads/{id}", s.handleGetThread)
	mux.HandleFunc("DELETE /api/threads/{id}", s.handleDeleteThread)

	health.New(s.checks...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// handleListCharacters returns the character catalogue. Prompt fields are
// excluded by the character JSON tags.
func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	reg := s.characters()
	writeJSON(w, http.StatusOK, map[string]any{
		"characters": reg.List(),
		"default":    reg.Default().ID,
	})
}

// handleListThreads returns the threads owned by the user given in the
// userId query parameter, most recently updated first.
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	if s.threads == nil {
		writeError(w, http.StatusNotFound, "thread persistence is not configured")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	list, err := s.threads.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error("thread list failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list threads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": list})
}

// handleGetThread returns a persisted conversation thread.
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	if s.threads == nil {
		writeError(w, http.StatusNotFound, "thread persistence is not configured")
		return
	}
	id := r.PathValue("id")

	t, ok, err := s.threads.Get(r.Context(), id)
	if err != nil {
		s.log.Error("thread lookup failed", "thread_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load thread")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteThread removes a persisted conversation thread.
func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if s.threads == nil {
		writeError(w, http.StatusNotFound, "thread persistence is not configured")
		return
	}
	id := r.PathValue("id")

	deleted, err := s.threads.Delete(r.Context(), id)
	if err != nil {
		s.log.Error("thread delete failed", "thread_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete thread")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
