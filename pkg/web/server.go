package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/modem-emu/pkg/config"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/registry"
)

// Server serves the console API, the event feed and, when configured, the
// WebSocket AT transport.
type Server struct {
	config config.WebConfig
	logger *logger.Logger
	server *http.Server
	hub    *WebSocketHub
	api    *API
	guest  http.Handler
	addr   string
	mu     sync.RWMutex
	// started is closed once the listener is bound
	started chan struct{}
}

// NewServer creates a new web server instance. hub must be the hub the
// registry taps into.
func NewServer(cfg config.WebConfig, reg *registry.Registry, hub *WebSocketHub, log *logger.Logger) *Server {
	log = log.WithComponent("web")
	return &Server{
		config:  cfg,
		logger:  log,
		hub:     hub,
		api:     NewAPI(reg, hub, log),
		started: make(chan struct{}),
	}
}

// WithGuestTransport mounts h on /modems/{id}/at.
func (s *Server) WithGuestTransport(h http.Handler) *Server {
	s.guest = h
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	s.api.Register(mux)
	mux.Handle("/ws", s.hub.Handler())
	if s.guest != nil {
		mux.Handle("GET /modems/{id}/at", s.guest)
	}
	return mux
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Web server is disabled")
		return nil
	}

	go s.hub.Run(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// WebSocket connections are long lived, so there is no write timeout.
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start listener to get actual address (especially for port 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()
	close(s.started)

	s.logger.Info("Starting web server",
		logger.String("address", s.addr))
	s.hub.BroadcastStatusUpdate("running", Build().Version)

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// WaitStarted blocks until the listener is bound or the context is canceled.
func (s *Server) WaitStarted(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetAddr returns the address the server is listening on
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *WebSocketHub {
	return s.hub
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "modem-emu",
		"time":    time.Now().Unix(),
	}); err != nil {
		s.logger.Warn("Failed to encode health response", logger.Error(err))
	}
}
