package server

import (
	"context"
	"net/http"
	"time"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/config"
	"github.com/hongminglow/loandesk/internal/http/handlers"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/middleware"
)

// Deps are the services the HTTP API exposes.
type Deps struct {
	Auth  *auth.Service
	Loans *loans.Service
	// Ping checks the persistence backend for /health; nil skips the check.
	Ping handlers.Pinger
	Log  logging.Logger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// NewHandler builds the routed and wrapped handler.
func NewHandler(cfg config.Config, deps Deps) http.Handler {
	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), string(cfg.Mode), deps.Ping).Register(mux)
	handlers.NewAuthHandler(deps.Auth, deps.Log).Register(mux)
	handlers.NewLoanHandler(deps.Loans).Register(mux)
	handlers.NewAdminHandler(deps.Loans).Register(mux)

	authed := middleware.Authenticate(deps.Auth, deps.Log, mux)
	return middleware.CORS(cfg.CORSOrigins, middleware.Logging(deps.Log, authed))
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewHandler(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
