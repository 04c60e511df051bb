package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/edgard/ion/internal/bot"
)

// StatusSource provides the current bot state.
type StatusSource interface {
	Snapshot() bot.Snapshot
}

// Server exposes the control socket at /ws and a JSON status view at /status.
type Server struct {
	addr     string
	adapter  *Adapter
	status   StatusSource
	logger   *slog.Logger
	router   chi.Router
	upgrader websocket.Upgrader
}

// NewServer creates a control server listening on addr.
func NewServer(addr string, adapter *Adapter, status StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		addr:    addr,
		adapter: adapter,
		status:  status,
		logger:  logger.With("component", "control_server"),
		upgrader: websocket.Upgrader{
			// Any origin may attach.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down and closes the
// control connection.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control server listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Control server shutdown failed", "error", err)
	}
	// Hijacked WebSocket connections are not closed by Shutdown.
	if err := s.adapter.Close(); err != nil {
		s.logger.Debug("Failed to close control connection", "error", err)
	}
	<-errCh

	s.logger.Info("Control server stopped")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Snapshot()); err != nil {
		s.logger.Warn("Failed to write status", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	sink := newWSSink(uuid.NewString(), conn)
	defer func() {
		s.adapter.OnConnectionClosed(sink)
		_ = sink.Close()
	}()

	// Queued before binding so the greeting precedes any notification.
	if err := sink.Send(r.Context(), Message{
		Type:     MessageConnected,
		Snapshot: s.status.Snapshot(),
		Time:     time.Now(),
	}); err != nil {
		s.logger.Debug("Failed to greet control connection", "sink", sink.ID(), "error", err)
		return
	}
	s.adapter.OnConnectionOpened(sink)

	// Incoming frames are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Control connection read failed", "sink", sink.ID(), "error", err)
			}
			return
		}
	}
}
