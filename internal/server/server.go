// Package server exposes the shared history over HTTP and websockets.
// Every handler is read-only.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/history"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/stats"
)

const (
	defaultPollInterval = 3 * time.Second
	readHeaderTimeout   = 5 * time.Second
)

// ArchiveReader answers range queries over archived snapshots.
type ArchiveReader interface {
	Range(ctx context.Context, since, until time.Time) ([]stats.Snapshot, error)
	Enabled() bool
}

type Option func(*Server)

// WithPollInterval sets how often websocket clients are checked for a newer
// snapshot.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithArchive serves /api/stats/archive from the given archive.
func WithArchive(a ArchiveReader) Option {
	return func(s *Server) {
		s.archive = a
	}
}

type Server struct {
	addr         string
	history      *history.Shared
	archive      ArchiveReader
	pollInterval time.Duration
	mux          *http.ServeMux
	httpServer   *http.Server
	listener     net.Listener
	done         chan struct{}
	closeOnce    sync.Once
	log          logger.Logger
}

func New(addr string, h *history.Shared, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		history:      h,
		pollInterval: defaultPollInterval,
		mux:          http.NewServeMux(),
		done:         make(chan struct{}),
		log:          logger.With("server"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats/latest", s.handleLatest)
	s.mux.HandleFunc("GET /api/stats/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/stats/archive", s.handleArchive)
	s.mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	s.mux.HandleFunc("GET /ws/stats", s.handleStatsSocket)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.New().Wrap(ErrListenFailed, err).WithData(struct {
			Addr  string
			Error string
		}{
			Addr:  s.addr,
			Error: err.Error(),
		})
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Serving stats")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.ErrorWithCode(errors.New().Wrap(ErrServeFailed, err)).Msg("HTTP server stopped")
		}
	}()

	return nil
}

// Addr is the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and ends open websocket streams, which
// http.Server.Shutdown does not track.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })

	if s.httpServer == nil {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrShutdownFailed, err)
	}

	s.log.Info().Msg("HTTP server stopped")

	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
