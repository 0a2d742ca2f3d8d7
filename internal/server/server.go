package server

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LzdqesjG/BungeeLog/internal/relay"
	"github.com/LzdqesjG/BungeeLog/internal/version"
)

// Reloader re-reads the config file and applies it to the relay.
type Reloader func() error

// Server is the admin/ingest HTTP API around the relay service.
type Server struct {
	echo      *echo.Echo
	relay     *relay.Service
	reload    Reloader
	addr      string
	startTime time.Time
}

// NewServer builds the Echo instance. apiToken, when non-empty, gates the
// /api routes behind a static bearer token.
func NewServer(addr string, relaySvc *relay.Service, reload Reloader, apiToken string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		relay:     relaySvc,
		reload:    reload,
		addr:      addr,
		startTime: time.Now(),
	}

	// Observability endpoints (no auth required)
	e.GET("/health/live", s.handleLiveness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	if apiToken != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiToken)) == 1, nil
		}))
	}
	api.POST("/events", s.handleIngestEvent)
	api.GET("/status", s.handleStatus)
	api.POST("/reload", s.handleReload)
	api.POST("/test", s.handleTest)
	api.POST("/broadcast", s.handleBroadcast)

	return s
}

// Start blocks serving the API.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).Seconds(),
		"version": version.Get(),
	})
}
