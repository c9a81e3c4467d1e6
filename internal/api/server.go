// Package api implements the sidecar's HTTP surface (§6): the end-user
// `/agent-api/*` routes driving the ReAct loop, the `/forge-admin/*` admin
// overlay and catalog CRUD routes, and the `/healthz`/`/metrics` ops routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgehq/sidecar/internal/agent"
	"github.com/forgehq/sidecar/internal/auth"
	"github.com/forgehq/sidecar/internal/config"
	"github.com/forgehq/sidecar/internal/hitl"
	"github.com/forgehq/sidecar/internal/observability"
	"github.com/forgehq/sidecar/internal/ratelimit"
	"github.com/forgehq/sidecar/internal/reactloop"
	"github.com/forgehq/sidecar/internal/store"
)

// Config is everything the HTTP server needs wired before Start.
type Config struct {
	Addr string

	Auth    *auth.Service
	Limiter *ratelimit.Limiter
	Overlay *config.Overlay
	Catalog agent.Catalog
	Store   store.Store
	Hitl    *hitl.Engine
	Loop    *reactloop.Loop

	Metrics *observability.Metrics
	Logger  *observability.Logger
	Tracer  *observability.Tracer
}

// Server owns the sidecar's net/http.Server and listener lifecycle,
// mirroring the teacher's startHTTPServer/stopHTTPServer split (one
// constructor, a non-blocking Start, a bounded-timeout Stop).
type Server struct {
	cfg Config
	hub *adminHub

	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds a Server from cfg without binding a listener yet.
func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg, hub: newAdminHub()}
}

func (s *Server) mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	agentAPI := http.NewServeMux()
	agentAPI.HandleFunc("/agent-api/chat", s.handleChat)
	agentAPI.HandleFunc("/agent-api/chat-sync", s.handleChatSync)
	agentAPI.HandleFunc("/agent-api/chat/resume", s.handleChatResume)
	agentAPI.HandleFunc("/agent-api/tools", s.handleTools)
	agentAPI.HandleFunc("/agent-api/preferences", s.handlePreferences)
	mux.Handle("/agent-api/", chain(agentAPI,
		loggingMiddleware(s.cfg.Logger, s.cfg.Metrics),
		authMiddleware(s.cfg.Auth),
		rateLimitMiddleware(s.cfg.Limiter, "agent-api", s.cfg.Metrics),
	))

	adminAPI := http.NewServeMux()
	adminAPI.HandleFunc("/forge-admin/config/", s.handleAdminConfig)
	adminAPI.HandleFunc("/forge-admin/agents", s.handleAdminAgents)
	adminAPI.HandleFunc("/forge-admin/tools", s.handleAdminTools)
	adminAPI.HandleFunc("/forge-admin/verifiers", s.handleAdminVerifiers)
	adminAPI.HandleFunc("/forge-admin/prompts/", s.handleAdminPrompts)
	adminAPI.HandleFunc("/forge-admin/stream", s.handleAdminStream)
	mux.Handle("/forge-admin/", chain(adminAPI,
		loggingMiddleware(s.cfg.Logger, s.cfg.Metrics),
		adminMiddleware(s.cfg.Auth),
	))

	return mux
}

// Start binds the listener and serves in the background. It returns once
// the listener is bound; Serve errors surface through ctx.Done()'s caller
// checking Stop, matching the teacher's fire-and-forget goroutine pattern.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Error(context.Background(), "http server error", "error", err)
			}
		}
	}()

	if s.cfg.Logger != nil {
		s.cfg.Logger.Info(ctx, "api server listening", "addr", s.cfg.Addr)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
