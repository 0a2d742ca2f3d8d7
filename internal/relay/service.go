package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/LzdqesjG/BungeeLog/internal/codec"
	"github.com/LzdqesjG/BungeeLog/internal/config"
	"github.com/LzdqesjG/BungeeLog/internal/domain"
	"github.com/LzdqesjG/BungeeLog/internal/logsink"
	"github.com/LzdqesjG/BungeeLog/internal/metrics"
)

const (
	timeLayout      = "15:04:05"
	executeTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // subscribers are tools and dashboards on arbitrary origins
	},
}

// Status is the read-only snapshot surfaced by the admin API.
type Status struct {
	LogPath       string `json:"log_path"`
	LogFormat     string `json:"log_format"`
	DailyRolling  bool   `json:"daily_rolling"`
	ConsoleMirror bool   `json:"console_mirror"`
	SinkHealthy   bool   `json:"sink_healthy"`
	WebAPIEnabled bool   `json:"webapi_enabled"`
	WebAPIRunning bool   `json:"webapi_running"`
	WebAPIAddress string `json:"webapi_address"`
	Connections   int    `json:"connections"`
	Authenticated int    `json:"authenticated_connections"`
}

// Service orchestrates the relay: events in, log lines and broadcast
// envelopes out, plus the lifecycle of the WebSocket listener.
type Service struct {
	clock clockwork.Clock
	sink  *logsink.Sink
	exec  domain.Executor

	mu      sync.Mutex
	cfg     *config.Config
	hub     *Hub
	ws      *echo.Echo
	running bool
}

// NewService wires the orchestrator. The listener is not started here; call
// Start (or Reload with webapi enabled) afterwards.
func NewService(cfg *config.Config, sink *logsink.Sink, exec domain.Executor, clock clockwork.Clock) *Service {
	return &Service{
		clock: clock,
		sink:  sink,
		exec:  exec,
		cfg:   cfg,
	}
}

// Start binds the WebSocket listener. A bind failure leaves the real-time
// channel disabled for the session and is not retried.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if s.running {
		return nil
	}

	addr := s.cfg.WebAPIAddress
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrBindFailure, addr, err)
	}

	hub := NewHub(s.cfg.WebAPIPassword, s.handleCommand, s.clock)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/", s.websocketHandler(hub))
	e.Listener = listener

	go func() {
		if err := e.Start(""); err != nil {
			slog.Debug("WebSocket listener closed", "error", err)
		}
	}()

	s.hub = hub
	s.ws = e
	s.running = true
	slog.Info("WebAPI started", "address", addr)
	return nil
}

// Stop broadcasts the shutdown notification, closes every connection and
// releases the listener. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if !s.running {
		return
	}

	s.hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.ws.Shutdown(ctx); err != nil {
		slog.Warn("WebSocket listener shutdown error", "error", err)
	}

	s.hub = nil
	s.ws = nil
	s.running = false
	slog.Info("WebAPI stopped")
}

// Reload swaps the configuration. The real-time channel is started, stopped
// or restarted to match the new settings; log template and category toggles
// take effect immediately.
func (s *Service) Reload(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg

	if err := s.sink.Reconfigure(logsink.Options{
		Dir:      cfg.LogsDir,
		Daily:    cfg.DailyRolling,
		MaxFiles: cfg.MaxLogFiles,
		Compress: cfg.CompressRotated,
	}); err != nil {
		slog.Error("Failed to reconfigure log sink", "error", err)
	}

	switch {
	case !cfg.WebAPI && s.running:
		s.stopLocked()
	case cfg.WebAPI && !s.running:
		if err := s.startLocked(); err != nil {
			return err
		}
	case cfg.WebAPI && s.running && old.WebAPIAddress != cfg.WebAPIAddress:
		s.stopLocked()
		if err := s.startLocked(); err != nil {
			return err
		}
	case cfg.WebAPI && s.running && old.WebAPIPassword != cfg.WebAPIPassword:
		s.hub.SetSecret(cfg.WebAPIPassword)
	}

	slog.Info("Configuration reloaded", "webapi", cfg.WebAPI)
	return nil
}

// OnEvent is the orchestration entry point: one log line, and one broadcast
// envelope while the real-time channel runs. Sink errors degrade, never
// propagate to the event source.
func (s *Service) OnEvent(ev domain.Event) {
	s.mu.Lock()
	cfg := s.cfg
	hub := s.hub
	running := s.running
	s.mu.Unlock()

	if !cfg.LogsEvent(ev.Kind) {
		return
	}
	metrics.EventsRelayed.WithLabelValues(string(ev.Kind)).Inc()

	level, message := codec.Describe(ev)
	s.appendLine(cfg, level, message)

	if running {
		hub.Broadcast(codec.Envelope(ev))
	}
}

// WriteLog records a free-form line in the audit log and relays it as a
// plugin message. Used by the test command and operator broadcasts.
func (s *Service) WriteLog(level, message string) {
	s.mu.Lock()
	cfg := s.cfg
	hub := s.hub
	running := s.running
	s.mu.Unlock()

	s.appendLine(cfg, level, message)

	if running {
		hub.Broadcast(codec.PluginMessage(message))
	}
}

// BroadcastPlugin pushes a plugin envelope without touching the audit log.
// Returns ErrRelayStopped while the real-time channel is down.
func (s *Service) BroadcastPlugin(text string) error {
	s.mu.Lock()
	hub := s.hub
	running := s.running
	s.mu.Unlock()

	if !running {
		return domain.ErrRelayStopped
	}
	hub.Broadcast(codec.PluginMessage(text))
	return nil
}

// Status reports the current relay state, including degraded modes.
func (s *Service) Status() Status {
	s.mu.Lock()
	cfg := s.cfg
	hub := s.hub
	running := s.running
	s.mu.Unlock()

	st := Status{
		LogPath:       s.sink.Path(),
		LogFormat:     cfg.LogFormat,
		DailyRolling:  cfg.DailyRolling,
		ConsoleMirror: cfg.EnableConsoleMirror,
		SinkHealthy:   s.sink.Healthy(),
		WebAPIEnabled: cfg.WebAPI,
		WebAPIRunning: running,
		WebAPIAddress: cfg.WebAPIAddress,
	}
	if running {
		counts := hub.Counts()
		st.Connections = counts.Tracked
		st.Authenticated = counts.Authenticated
	}
	return st
}

// Shutdown stops the real-time channel and closes the sink. Final teardown,
// used on process exit.
func (s *Service) Shutdown() {
	s.Stop()
	if err := s.sink.Close(); err != nil {
		slog.Warn("Failed to close log sink", "error", err)
	}
}

func (s *Service) appendLine(cfg *config.Config, level, message string) {
	line := codec.FormatLine(cfg.LogFormat, level, message, s.clock.Now().Format(timeLayout))
	if err := s.sink.Append(line); err != nil {
		slog.Error("Failed to append audit log line", "error", err)
	}
	if cfg.EnableConsoleMirror {
		slog.Info(message, "audit_level", level)
	}
}

// handleCommand processes one frame from an authenticated connection.
// Malformed frames are ignored; invalid commands get an error envelope.
func (s *Service) handleCommand(reply func(data []byte), payload []byte) {
	req, ok := codec.ParseCommandRequest(payload)
	if !ok {
		slog.Debug("Ignoring malformed client frame")
		return
	}

	if err := codec.ValidateCommand(req.Command); err != nil {
		reply(codec.CommandError(err.Error()))
		metrics.CommandsExecuted.WithLabelValues("rejected").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	defer cancel()

	response, err := s.exec.Execute(ctx, req.Command)
	if err != nil {
		slog.Warn("Console command failed", "command", req.Command, "error", err)
		reply(codec.CommandResult(req.Command, false))
		metrics.CommandsExecuted.WithLabelValues("error").Inc()
		return
	}

	slog.Info("Console command executed", "command", req.Command)
	if response != "" {
		slog.Debug("Console command response", "response", response)
	}
	reply(codec.CommandResult(req.Command, true))
	metrics.CommandsExecuted.WithLabelValues("success").Inc()

	s.WriteLog(codec.LevelInfo, fmt.Sprintf("[WebAPI] executed command: %s", req.Command))
}

// websocketHandler upgrades the HTTP request and runs the read pump until
// the peer disconnects or the hub closes the connection.
func (s *Service) websocketHandler(hub *Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return fmt.Errorf("upgrade websocket: %w", err)
		}

		if err := hub.Register(conn); err != nil {
			slog.Warn("Failed to register connection", "error", err)
			return nil
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				break
			}
			hub.Inbound(conn, payload)
		}

		hub.Unregister(conn)
		return nil
	}
}
