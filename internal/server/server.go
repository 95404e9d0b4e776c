package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tiqet/internal/server/handler"
	"github.com/alanyoungcy/tiqet/internal/server/middleware"
	"github.com/alanyoungcy/tiqet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
	// APIKey guards /api/admin routes.
	APIKey string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Audit may be nil.
type Handlers struct {
	Health   *handler.HealthHandler
	Tx       *handler.TxHandler
	Events   *handler.EventHandler
	Accounts *handler.AccountHandler
	Audit    *handler.AuditHandler
}

// Server is the HTTP + WebSocket API of a node.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in logging, CORS and,
// when limiter is non-nil, per-IP rate limiting. wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter middleware.Limiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/tx", handlers.Tx.Submit)

	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	mux.HandleFunc("GET /api/events/{id}", handlers.Events.GetEvent)
	mux.HandleFunc("GET /api/events/{id}/quote", handlers.Events.GetQuote)
	mux.HandleFunc("GET /api/events/{id}/wagers/{account}/{option}", handlers.Events.GetWager)

	mux.HandleFunc("GET /api/accounts/{account}/role", handlers.Accounts.GetRole)
	mux.HandleFunc("GET /api/accounts/{account}/wagers", handlers.Accounts.ListWagers)
	mux.HandleFunc("GET /api/roles", handlers.Accounts.GetRoles)
	mux.HandleFunc("GET /api/treasury", handlers.Accounts.GetTreasury)
	mux.HandleFunc("GET /api/deployment", handlers.Accounts.GetDeployment)
	mux.HandleFunc("GET /api/receipts/{id}", handlers.Accounts.GetReceipt)

	if handlers.Audit != nil {
		mux.Handle("GET /api/admin/audit",
			middleware.APIKey(cfg.APIKey)(http.HandlerFunc(handlers.Audit.ListAudit)))
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Run serves until ctx is done, then shuts down within ten seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
