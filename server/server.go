// Package server exposes the language engine over the Language Server
// Protocol, on stdio or on websocket connections.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	glspserver "github.com/tliron/glsp/server"
	"go.uber.org/zap"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/logger"
	"github.com/teranos/ilsp/version"
)

// ServerState tracks the shutdown phases
type ServerState int32

const (
	ServerStateRunning ServerState = iota
	ServerStateDraining
	ServerStateStopped
)

func (s ServerState) String() string {
	switch s {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ShutdownTimeout bounds how long Stop waits for connections to finish
const ShutdownTimeout = 10 * time.Second

// Server hosts language sessions. Each connection gets its own
// GLSPHandler; configuration is shared and can be reloaded at runtime.
type Server struct {
	logger *zap.SugaredLogger

	cfgMu sync.RWMutex
	cfg   *am.Config

	mu            sync.Mutex
	sessions      map[*GLSPHandler]struct{}
	conns         map[*websocket.Conn]struct{}
	httpServer    *http.Server
	configWatcher *am.ConfigWatcher

	upgrader websocket.Upgrader

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// New creates a server for a validated configuration
func New(cfg *am.Config, log *zap.SugaredLogger) (*Server, error) {
	if cfg == nil {
		cfg = am.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if log == nil {
		log = logger.ComponentLogger("server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:   log,
		cfg:      cfg,
		sessions: make(map[*GLSPHandler]struct{}),
		conns:    make(map[*websocket.Conn]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s, nil
}

// Config returns the configuration currently in effect
func (s *Server) Config() *am.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// State returns the current lifecycle state
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(state ServerState) {
	s.state.Store(int32(state))
	s.logger.Infow("Server state changed", "new_state", state.String())
}

// Reload applies a new configuration to the server and every open session.
// Transport settings only take effect on restart.
func (s *Server) Reload(cfg *am.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	for _, h := range s.snapshotSessions() {
		h.reconfigure(cfg)
	}
	s.logger.Infow("Configuration applied", logger.FieldCount, len(s.snapshotSessions()))
	return nil
}

// WatchConfig reloads the configuration whenever one of files changes
func (s *Server) WatchConfig(explicitPath string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	cw, err := am.NewConfigWatcher(explicitPath, files)
	if err != nil {
		return err
	}
	cw.OnReload(s.Reload)
	cw.Start()

	s.mu.Lock()
	s.configWatcher = cw
	s.mu.Unlock()
	return nil
}

// NewSession registers a session for a new connection
func (s *Server) NewSession() *GLSPHandler {
	h := NewGLSPHandler(s)
	s.mu.Lock()
	s.sessions[h] = struct{}{}
	s.mu.Unlock()
	return h
}

func (s *Server) forget(h *GLSPHandler) {
	s.mu.Lock()
	delete(s.sessions, h)
	s.mu.Unlock()
}

// Sessions counts the open sessions
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) snapshotSessions() []*GLSPHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*GLSPHandler, 0, len(s.sessions))
	for h := range s.sessions {
		out = append(out, h)
	}
	return out
}

// RunStdio serves a single session on stdin/stdout until the client exits
func (s *Server) RunStdio() error {
	h := s.NewSession()
	defer h.Close()

	s.logger.Infow("Serving LSP over stdio", "version", version.Get().Short())
	srv := glspserver.NewServer(h.Protocol(), version.ServerName, false)
	return srv.RunStdio()
}

// HandleWebSocket upgrades HTTP to WebSocket and serves one LSP session
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.State() != ServerStateRunning {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("Failed to upgrade WebSocket", "remote", r.RemoteAddr, logger.FieldError, err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.wg.Add(1)

	h := s.NewSession()
	defer func() {
		h.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.wg.Done()
		s.logger.Infow("LSP WebSocket connection closed", "remote", r.RemoteAddr)
	}()

	s.logger.Infow("Serving LSP over WebSocket", "remote", r.RemoteAddr)

	// This blocks until the connection closes
	glspserver.NewServer(h.Protocol(), version.ServerName, false).ServeWebSocket(conn)
}

// Handler routes /lsp to the websocket endpoint and /healthz to a status probe
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/lsp", s.HandleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if s.State() != ServerStateRunning {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state":    s.State().String(),
		"sessions": s.Sessions(),
		"version":  version.Get().Short(),
	})
}

// ListenAndServe serves websocket sessions on the configured address until Stop
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Config().Server.Address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.Config().Server.Address)
	}
	return s.Serve(ln)
}

// Serve accepts websocket sessions on ln until Stop
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Infow("Serving LSP over WebSocket", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "websocket server failed")
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources
func (s *Server) Stop() error {
	if s.State() == ServerStateStopped {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	s.mu.Lock()
	srv := s.httpServer
	cw := s.configWatcher
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "http shutdown"))
		}
	}

	// hijacked websocket connections are not closed by Shutdown
	for _, c := range conns {
		c.Close()
	}
	for _, h := range s.snapshotSessions() {
		h.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnw("Connection shutdown timed out", "timeout", ShutdownTimeout)
		errs = append(errs, errors.Wrapf(errors.ErrTimeout, "sessions still open after %s", ShutdownTimeout))
	}

	if cw != nil {
		if err := cw.Stop(); err != nil {
			s.logger.Warnw("Failed to stop config watcher", logger.FieldError, err)
			errs = append(errs, errors.Wrap(err, "config watcher"))
		}
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return errors.Join(errs...)
}

// checkOrigin allows requests without an Origin header (editors, tests)
// and browser origins matching a configured entry
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if originAllowed(origin, s.Config().Server.AllowedOrigins) {
		return true
	}
	s.logger.Warnw("Rejected WebSocket origin", "origin", origin)
	return false
}

// originAllowed compares scheme and hostname exactly. An allowed entry
// without a port accepts any port.
func originAllowed(origin string, allowed []string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	for _, entry := range allowed {
		a, err := url.Parse(entry)
		if err != nil || a.Host == "" {
			continue
		}
		if !strings.EqualFold(o.Scheme, a.Scheme) || !strings.EqualFold(o.Hostname(), a.Hostname()) {
			continue
		}
		if a.Port() == "" || a.Port() == o.Port() {
			return true
		}
	}
	return false
}
