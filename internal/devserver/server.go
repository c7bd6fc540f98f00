// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultGreeting answers the empty greeting query.
	DefaultGreeting = "Welcome! How can I help you today?"

	// DefaultSessionTTL is how long an idle session is remembered.
	DefaultSessionTTL = 30 * time.Minute

	// MaxQueryLength bounds a single query in runes.
	MaxQueryLength = 4000

	// MaxRequestBodySize is the maximum size for a request body (64KB).
	MaxRequestBodySize = 64 * 1024

	// Version is the server version reported by /health.
	Version = "0.1.0"
)

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the development server.
type Config struct {
	Addr     string
	Greeting string

	// RatePerSecond and Burst bound requests per client IP. Zero disables
	// rate limiting.
	RatePerSecond float64
	Burst         int

	// SessionTTL is how long an idle session is kept. Defaults to
	// DefaultSessionTTL.
	SessionTTL time.Duration

	// Reply produces the answer to a non-empty query. Defaults to an echo.
	Reply func(query string, turn int) string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.Reply == nil {
		c.Reply = EchoReply
	}
	return c
}

// EchoReply repeats the query back.
func EchoReply(query string, turn int) string {
	return fmt.Sprintf("You said: %s", query)
}

// ============================================================================
// WIRE TYPES
// ============================================================================

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the reply to POST /chat.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// HealthResponse is the reply to GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the development chat endpoint.
type Server struct {
	cfg      Config
	router   *chi.Mux
	sessions *SessionStore
	limiter  *RateLimiter
	started  time.Time

	mu     sync.Mutex
	server *http.Server
}

// New creates a server with routes and middleware installed.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		sessions: NewSessionStore(cfg.SessionTTL),
		started:  time.Now(),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = NewRateLimiter(cfg.RatePerSecond, burst)
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	if s.limiter != nil {
		r.Use(RateLimitMiddleware(s.limiter))
	}

	r.Post("/chat", s.handleChat)
	r.Get("/health", s.handleHealth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len([]rune(req.Query)) > MaxQueryLength {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("query exceeds %d characters", MaxQueryLength))
		return
	}

	sess, created := s.sessions.Resolve(req.SessionID)
	turn := sess.Turns

	var reply string
	query := strings.TrimSpace(req.Query)
	if query == "" {
		reply = s.cfg.Greeting
	} else {
		reply = s.cfg.Reply(query, turn)
	}

	log.Debug().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("session_id", sess.ID).
		Bool("new_session", created).
		Int("turn", turn).
		Msg("chat exchange")

	writeJSON(w, http.StatusOK, ChatResponse{Response: reply, SessionID: sess.ID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  Version,
		Sessions: s.sessions.Len(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	log.Info().Str("addr", ln.Addr().String()).Str("version", Version).Msg("dev server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	log.Info().Int("sessions", s.sessions.Len()).Msg("dev server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
