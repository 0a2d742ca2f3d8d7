package server

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/LzdqesjG/BungeeLog/internal/codec"
	"github.com/LzdqesjG/BungeeLog/internal/domain"
)

// handleIngestEvent accepts one lifecycle event from the host proxy and hands
// it to the relay. Events are processed in arrival order on this request
// path; the relay never blocks on slow subscribers.
func (s *Server) handleIngestEvent(c echo.Context) error {
	var ev domain.Event
	if err := json.NewDecoder(c.Request().Body).Decode(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed event"})
	}
	if !ev.Kind.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown event kind"})
	}

	s.relay.OnEvent(ev)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.relay.Status())
}

func (s *Server) handleReload(c echo.Context) error {
	if err := s.reload(); err != nil {
		slog.Error("Reload failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleTest(c echo.Context) error {
	s.relay.WriteLog(codec.LevelInfo, "This is a test log message")
	return c.JSON(http.StatusOK, map[string]string{"status": "written"})
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(c echo.Context) error {
	var req broadcastRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	if err := s.relay.BroadcastPlugin(req.Message); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "webapi is not running"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "broadcast"})
}
