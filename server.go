package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-selftest/internal/config"
	"github.com/oszuidwest/zwfm-selftest/internal/selftest"
	"github.com/oszuidwest/zwfm-selftest/internal/server"
	"github.com/oszuidwest/zwfm-selftest/internal/types"
)

// changeFeed counts published device updates so the WebSocket loop only
// pushes diagnostics that changed.
type changeFeed struct {
	seq atomic.Uint64
}

// Publish records that a device test produced a new diagnostic.
func (f *changeFeed) Publish(selftest.Update) {
	f.seq.Add(1)
}

// Seq returns the number of updates published so far.
func (f *changeFeed) Seq() uint64 {
	return f.seq.Load()
}

// Server is an HTTP server that exposes the self-test session to a browser.
type Server struct {
	config          *config.Config
	session         *selftest.Session
	feed            *changeFeed
	commands        *server.CommandHandler
	upgrader        *server.Upgrader
	version         *VersionChecker
	devices         func() types.DeviceList
	ffmpegAvailable bool

	ctx     context.Context
	clients atomic.Int64
}

// NewServer returns a new Server for the given session. feed must be the
// publisher the session was created with.
func NewServer(ctx context.Context, cfg *config.Config, session *selftest.Session, feed *changeFeed, devices func() types.DeviceList, ffmpegAvailable bool) *Server {
	return &Server{
		config:          cfg,
		session:         session,
		feed:            feed,
		commands:        server.NewCommandHandler(cfg, session, devices),
		upgrader:        server.NewUpgrader(cfg.Snapshot().Origins),
		version:         NewVersionChecker(),
		devices:         devices,
		ffmpegAvailable: ffmpegAvailable,
		ctx:             ctx,
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.clients.Add(1)
	defer s.releaseClient()

	// Only the writer goroutine writes to the connection. The send channel is
	// never closed: async command handlers may still reply after disconnect.
	send := make(chan any, 32)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWebSocketWriter(conn, send, done)
	go s.runWebSocketReader(ctx, conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// releaseClient stops the device tests once the last client has gone, the
// way closing the page releases the devices.
func (s *Server) releaseClient() {
	if s.clients.Add(-1) > 0 {
		return
	}
	if err := s.session.Close(); err != nil {
		slog.Error("failed to stop device tests", "error", err)
	}
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any, done <-chan struct{}) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for {
		select {
		case msg := <-send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(ctx context.Context, conn server.WebSocketConn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(ctx, cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop handles periodic status and diagnostic updates.
func (s *Server) runWebSocketEventLoop(send chan<- any, done, statusUpdate <-chan struct{}) {
	diagTicker := time.NewTicker(100 * time.Millisecond)    // 10 fps for level meters
	statusTicker := time.NewTicker(3000 * time.Millisecond) // Status updates every 3s
	defer diagTicker.Stop()
	defer statusTicker.Stop()

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.buildWSStatus()) {
		return
	}

	var lastSeq uint64
	for {
		select {
		case <-done:
			return
		case <-statusUpdate:
			if !trySend(s.buildWSStatus()) {
				return
			}
		case <-diagTicker.C:
			seq := s.feed.Seq()
			if seq == lastSeq {
				continue
			}
			lastSeq = seq
			if !trySend(s.buildWSDiagnostic()) {
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				return
			}
		}
	}
}

// buildWSDiagnostic returns the live diagnostics of both device tests.
func (s *Server) buildWSDiagnostic() types.WSDiagnosticResponse {
	return types.WSDiagnosticResponse{
		Type:       "diagnostic",
		Microphone: s.session.Microphone.Snapshot(),
		Camera:     s.session.Camera.Snapshot(),
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	cfg := s.config.Snapshot()
	return types.WSStatusResponse{
		Type:            "status",
		FFmpegAvailable: s.ffmpegAvailable,
		Microphone:      s.session.Microphone.Snapshot(),
		Camera:          s.session.Camera.Snapshot(),
		NetworkRunning:  s.session.Network.Running(),
		Readiness:       s.session.Readiness.Report(),
		Settings: types.WSSettings{
			AudioInput: cfg.AudioInput,
			VideoInput: cfg.VideoInput,
			Platform:   runtime.GOOS,
		},
		Version: s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/config", s.handleAPIConfig)
	mux.HandleFunc("/api/devices", s.handleAPIDevices)
	mux.HandleFunc("/api/readiness", s.handleAPIReadiness)
	mux.HandleFunc("/api/network/run", s.handleAPINetworkRun)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start begins the HTTP server and the version checker.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.version.Start(s.ctx)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
