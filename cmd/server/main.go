package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/LzdqesjG/BungeeLog/internal/codec"
	"github.com/LzdqesjG/BungeeLog/internal/config"
	"github.com/LzdqesjG/BungeeLog/internal/console"
	"github.com/LzdqesjG/BungeeLog/internal/domain"
	"github.com/LzdqesjG/BungeeLog/internal/logging"
	"github.com/LzdqesjG/BungeeLog/internal/logsink"
	"github.com/LzdqesjG/BungeeLog/internal/relay"
	"github.com/LzdqesjG/BungeeLog/internal/server"
	"github.com/LzdqesjG/BungeeLog/internal/version"
)

const shutdownTimeout = 10 * time.Second

func setupBootstrap() *config.Bootstrap {
	boot, err := config.LoadBootstrap()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load environment: %v", err)
	}
	return boot
}

func loadConfig(path, rconPassword string) *config.Config {
	cfg, usedDefaults, err := config.Load(path)
	if err != nil {
		slog.Warn("Config load failed, continuing with defaults", "path", path, "error", err, "used_defaults", usedDefaults)
	}
	cfg.RCON.Password = rconPassword
	return cfg
}

func selectExecutor(cfg *config.Config) domain.Executor {
	if cfg.RCON.Enabled {
		slog.Info("Console commands forwarded over RCON", "address", cfg.RCON.Address)
		return console.NewRconExecutor(cfg.RCON.Address, cfg.RCON.Password)
	}
	return console.NewLogExecutor()
}

func runGracefulShutdown(srv *server.Server, relaySvc *relay.Service, cancelRotation context.CancelFunc, watcher *config.Watcher) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		if watcher != nil {
			_ = watcher.Close()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelRotation()
		relaySvc.Shutdown()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	boot := setupBootstrap()
	logging.InitLogger(boot.LogLevel, boot.LogFormat)
	slog.Info("BungeeLog relay starting",
		"version", version.Get().String(),
		"config", boot.ConfigPath,
		"listen", boot.ListenAddr)

	cfg := loadConfig(boot.ConfigPath, boot.RconPassword)

	sink, err := logsink.New(logsink.Options{
		Dir:      cfg.LogsDir,
		Daily:    cfg.DailyRolling,
		MaxFiles: cfg.MaxLogFiles,
		Compress: cfg.CompressRotated,
	}, clock)
	if err != nil {
		slog.Error("Log sink degraded at startup", "error", err)
	}

	relaySvc := relay.NewService(cfg, sink, selectExecutor(cfg), clock)

	if cfg.WebAPI {
		if err := relaySvc.Start(); err != nil {
			slog.Error("WebAPI failed to start, real-time channel disabled", "error", err)
		}
	}

	rotationCtx, cancelRotation := context.WithCancel(context.Background())
	go sink.Run(rotationCtx)

	reload := func() error {
		newCfg := loadConfig(boot.ConfigPath, boot.RconPassword)
		return relaySvc.Reload(newCfg)
	}

	watcher, err := config.NewWatcher(boot.ConfigPath, func() {
		if err := reload(); err != nil {
			slog.Error("Automatic reload failed", "error", err)
		}
	})
	if err != nil {
		slog.Warn("Config watcher unavailable, reload via API only", "error", err)
	}

	srv := server.NewServer(boot.ListenAddr, relaySvc, reload, cfg.APIToken)

	done := runGracefulShutdown(srv, relaySvc, cancelRotation, watcher)

	relaySvc.WriteLog(codec.LevelInfo, "BungeeLog relay initialized")

	slog.Info("Admin API starting", "addr", boot.ListenAddr)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
