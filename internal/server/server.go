// Package server hosts the shell's local HTTP surface: the web bundle the
// webview loads, and the /bridge WebSocket endpoint carrying the envelope
// channel.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/verandahq/veranda/internal/bridge"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback and serves only the shell's own
		// webview; cross-origin browsers are not part of the deployment.
		return true
	},
}

// Server is the shell host.
type Server struct {
	addr    string
	webDir  string
	handler bridge.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	endpoint *bridge.Endpoint // most recent live channel, nil when none
}

// New creates a shell host serving webDir and bridging to handler.
func New(addr, webDir string, handler bridge.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		webDir:  webDir,
		handler: handler,
		logger:  logger.With("component", "server"),
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/bridge", s.handleBridge(ctx))
	r.Handle("/*", http.FileServer(http.Dir(s.webDir)))

	srv := &http.Server{Addr: s.addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr, "web_dir", s.webDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleBridge upgrades the connection and serves one envelope channel on
// it. A new webview connection replaces the previous one; requests in
// flight on the old channel are permanently unresolved, which the web
// side's correlator handles by timeout.
func (s *Server) handleBridge(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("bridge upgrade", "error", err)
			return
		}

		transport := bridge.NewWSServerTransport(conn)
		endpoint := bridge.NewEndpoint(transport, s.handler, s.logger)

		s.mu.Lock()
		s.endpoint = endpoint
		s.mu.Unlock()

		s.logger.Info("bridge connected", "remote", r.RemoteAddr)
		if err := endpoint.Run(ctx); err != nil {
			s.logger.Warn("bridge channel ended", "error", err)
		}
		transport.Close()

		s.mu.Lock()
		if s.endpoint == endpoint {
			s.endpoint = nil
		}
		s.mu.Unlock()
	}
}

// Push delivers a shell-initiated envelope to the connected webview, if any.
func (s *Server) Push(ctx context.Context, env bridge.Envelope) error {
	s.mu.Lock()
	endpoint := s.endpoint
	s.mu.Unlock()
	if endpoint == nil {
		return errors.New("server: no bridge connected")
	}
	return endpoint.Push(ctx, env)
}
