package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rgoodwin/hadeck/internal/deck"
	"github.com/rgoodwin/hadeck/internal/history"
)

// Controller is the navigation surface the API exposes.
type Controller interface {
	CurrentStatus() deck.Status
	NavigateTo(name string) error
}

// History serves recorded state transitions.
type History interface {
	Recent(entityID string, limit int) ([]history.Record, error)
	HealthCheck() error
}

// Logger defines the logging interface used by the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps carries the server's collaborators. History may be nil when the
// recorder is disabled.
type Deps struct {
	Controller Controller
	History    History
	Logger     Logger

	// Connected reports whether the upstream websocket session is up;
	// surfaced in /healthz.
	Connected func() bool
}

// Config holds the listener settings.
type Config struct {
	Host        string
	Port        int
	BearerToken string
}

// Server is the local control and inspection HTTP API.
type Server struct {
	cfg  Config
	deps Deps
	http *http.Server
}

// New creates a Server.
func New(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/status", s.handleStatus)
		r.Post("/page/{name}", s.handleNavigate)
		r.Get("/entities/{id}/history", s.handleHistory)
	})

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Close is called.
func (s *Server) Start() error {
	s.deps.Logger.Info("api listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Close shuts the listener down gracefully.
func (s *Server) Close(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestID tags every request with a correlation id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// auth enforces the configured bearer token on /api routes. An empty
// token leaves the API open, intended for loopback-only listeners.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BearerToken != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.BearerToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status    string `json:"status"`
		Connected bool   `json:"connected"`
		History   string `json:"history,omitempty"`
	}
	h := health{Status: "ok"}
	if s.deps.Connected != nil {
		h.Connected = s.deps.Connected()
	}
	if s.deps.History != nil {
		if err := s.deps.History.HealthCheck(); err != nil {
			h.Status = "degraded"
			h.History = err.Error()
		} else {
			h.History = "ok"
		}
	}
	code := http.StatusOK
	if h.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.CurrentStatus())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.deps.Controller.NavigateTo(name); err != nil {
		if errors.Is(err, deck.ErrUnknownPage) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.deps.Logger.Debug("api navigation", "page", name)
	writeJSON(w, http.StatusOK, map[string]string{"page": name})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history recording is disabled")
		return
	}

	entityID := chi.URLParam(r, "id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.deps.History.Recent(entityID, limit)
	if err != nil {
		s.deps.Logger.Error("history query failed", "entity_id", entityID, "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
