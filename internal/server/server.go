// Package server exposes the HTTP API: file upload, live progress via SSE
// and websocket, job status, upload history, statistics, report download,
// and health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mediabrief/internal/config"
	"mediabrief/internal/logging"
	"mediabrief/internal/pipeline"
	"mediabrief/internal/progress"
	"mediabrief/internal/store"
)

// Server is the HTTP front end of the daemon.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	pipeline *pipeline.Pipeline
	watcher  *progress.Watcher
	logger   *slog.Logger
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
}

// New assembles the server and its route table.
func New(cfg *config.Config, st *store.Store, pipe *pipeline.Pipeline, watcher *progress.Watcher, logger *slog.Logger) *Server {
	srv := &Server{
		cfg:      cfg,
		store:    st,
		pipeline: pipe,
		watcher:  watcher,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", srv.handleUpload)
	mux.HandleFunc("/api/progress/ws/", srv.handleProgressWS)
	mux.HandleFunc("/api/progress/", srv.handleProgressSSE)
	mux.HandleFunc("/api/status/", srv.handleStatus)
	mux.HandleFunc("/api/history", srv.handleHistory)
	mux.HandleFunc("/api/stats/", srv.handleStats)
	mux.HandleFunc("/api/download/", srv.handleDownload)
	mux.HandleFunc("/api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
