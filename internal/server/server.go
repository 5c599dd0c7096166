// Package server serves the editor demo page and websocket editing
// sessions. Every websocket connection owns its own editor.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"

	"github.com/conneroisu/blockedit/internal/config"
	"github.com/conneroisu/blockedit/internal/editor"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/middleware"
)

const (
	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	shutdownTimeout = 5 * time.Second
)

// EditorFactory builds the editor for a new session.
type EditorFactory func(ctx context.Context) (*editor.Editor, error)

// Server hosts editing sessions.
type Server struct {
	config     *config.Config
	logger     logging.Logger
	newEditor  EditorFactory
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server

	sessions     map[string]*Session
	sessionMutex sync.RWMutex
}

// New creates a server. A nil factory builds editors from cfg.
func New(cfg *config.Config, logger logging.Logger, factory EditorFactory) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}
	s := &Server{
		config:   cfg,
		logger:   logger.WithComponent("server"),
		sessions: make(map[string]*Session),
	}
	if factory == nil {
		factory = func(ctx context.Context) (*editor.Editor, error) {
			return editor.New(ctx, cfg, logger)
		}
	}
	s.newEditor = factory

	s.mux = http.NewServeMux()
	s.mux.Handle("GET /{$}", templ.Handler(Page(PageData{
		Title:       "blockedit",
		SocketPath:  "/ws",
		RootTag:     cfg.Editor.RootTag,
		Placeholder: cfg.Editor.Placeholder,
	})))
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.handler = middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(),
	).Apply(s.mux)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Start serves until ctx is done, then shuts down and closes every
// session.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops the HTTP server and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.sessionMutex.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionMutex.RUnlock()
	for _, sess := range sessions {
		sess.Close(websocket.StatusGoingAway, "server shutting down")
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Sessions returns the IDs of the open sessions, sorted.
func (s *Server) Sessions() []string {
	s.sessionMutex.RLock()
	defer s.sessionMutex.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok %d\n", len(s.Sessions()))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	// checkOrigin already applied the configured origin list.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx := r.Context()
	ed, err := s.newEditor(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Cannot create editor for session")
		conn.Close(websocket.StatusInternalError, "editor unavailable")
		return
	}

	sess := newSession(conn, ed, s.logger)
	s.register(sess)
	defer s.unregister(sess)

	sess.Run(ctx)
}

func (s *Server) register(sess *Session) {
	s.sessionMutex.Lock()
	s.sessions[sess.ID()] = sess
	count := len(s.sessions)
	s.sessionMutex.Unlock()
	s.logger.Info(context.Background(), "Session opened", "session", sess.ID(), "sessions", count)
}

func (s *Server) unregister(sess *Session) {
	s.sessionMutex.Lock()
	delete(s.sessions, sess.ID())
	count := len(s.sessions)
	s.sessionMutex.Unlock()
	sess.Close(websocket.StatusNormalClosure, "")
	s.logger.Info(context.Background(), "Session closed", "session", sess.ID(), "sessions", count)
}

// checkOrigin accepts same-origin requests and the configured origins.
// Requests without an Origin header are rejected.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}
	if originURL.Host == r.Host {
		return true
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		a, err := url.Parse(allowed)
		if err == nil && a.Scheme == originURL.Scheme && a.Host == originURL.Host {
			return true
		}
	}
	return false
}
