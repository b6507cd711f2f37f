package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"gather-go/store"
)

// RunLister is the part of the run index the server exposes.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// Server serves the runner state over HTTP and pushes updates over a websocket.
type Server struct {
	hub      *Hub
	ctl      Controller
	runs     RunLister
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server around hub. runs may be nil when no run index is open.
func NewServer(hub *Hub, ctl Controller, runs RunLister, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[web] ", log.LstdFlags)
	}
	s := &Server{hub: hub, ctl: ctl, runs: runs, logger: logger}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:       s.checkOrigin,
		EnableCompression: true,
	}
	return s
}

// checkOrigin allows same-origin and local connections.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	s.logger.Printf("rejected websocket connection from origin %s", origin)
	return false
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /resume", s.handleResume)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	state, err := s.ctl.State()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(state)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.ctl.Pause()
	s.hub.BroadcastFullState()
	s.writeJSON(w, map[string]bool{"paused": s.ctl.IsPaused()})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.ctl.Resume()
	s.hub.BroadcastFullState()
	s.writeJSON(w, map[string]bool{"paused": s.ctl.IsPaused()})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeJSON(w, []store.RunRecord{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.runs.Runs(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	s.writeJSON(w, runs)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	s.hub.attach(conn)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("failed to write response: %v", err)
	}
}
