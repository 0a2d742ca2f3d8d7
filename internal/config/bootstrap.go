package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Bootstrap holds process-level settings resolved once at startup from the
// environment. Everything reloadable lives in the YAML Config instead.
type Bootstrap struct {
	ConfigPath   string `env:"CONFIG_PATH" default:"config.yml"`
	ListenAddr   string `env:"LISTEN_ADDR" default:":8080"`
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`
	RconPassword string `env:"RCON_PASSWORD"`
}

// LoadBootstrap reads the bootstrap settings, honoring a local .env file.
func LoadBootstrap() (*Bootstrap, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var b Bootstrap
	if err := env.Load(&b, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}
	return &b, nil
}
