package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LzdqesjG/BungeeLog/internal/domain"
)

// Config is the runtime relay configuration, loaded from a YAML file. Keys
// keep the names the service has always used in its config file.
type Config struct {
	LogFormat           string `yaml:"log-format"`
	EnableConsoleMirror bool   `yaml:"enable-console-mirror"`
	DailyRolling        bool   `yaml:"daily-rolling"`

	LogPlayerConnections bool `yaml:"log-player-connections"`
	LogPlayerChat        bool `yaml:"log-player-chat"`
	LogCommands          bool `yaml:"log-commands"`
	LogServerSwitches    bool `yaml:"log-server-switches"`
	LogPings             bool `yaml:"log-pings"`

	MaxLogFiles     int    `yaml:"max-log-files"`
	CompressRotated bool   `yaml:"compress-rotated"`
	LogsDir         string `yaml:"logs-dir"`

	WebAPI         bool   `yaml:"webapi"`
	WebAPIAddress  string `yaml:"waaddress"`
	WebAPIPassword string `yaml:"wapassword"`

	APIToken string     `yaml:"api-token"`
	RCON     RCONConfig `yaml:"rcon"`
}

// RCONConfig configures the upstream console command connection.
// The password comes from the environment only, never the file.
type RCONConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"-"`
}

// Default returns the hardcoded defaults used when no file exists or the
// file cannot be read.
func Default() *Config {
	return &Config{
		LogFormat:            "[%time%] [%level%] %message%",
		EnableConsoleMirror:  true,
		DailyRolling:         true,
		LogPlayerConnections: true,
		LogPlayerChat:        true,
		LogCommands:          true,
		LogServerSwitches:    true,
		LogPings:             false,
		MaxLogFiles:          30,
		CompressRotated:      false,
		LogsDir:              "logs",
		WebAPI:               false,
		WebAPIAddress:        "0.0.0.0:25796",
		WebAPIPassword:       "bungeelog",
		RCON: RCONConfig{
			Enabled: false,
			Address: "127.0.0.1:25575",
		},
	}
}

// Load reads the YAML file at path, layered over the defaults. A missing file
// is created with the default contents. An unreadable or malformed file falls
// back to defaults; the returned bool reports whether defaults were used.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := WriteDefault(path); werr != nil {
			return cfg, true, fmt.Errorf("write default config: %w", werr)
		}
		return cfg, false, nil
	}
	if err != nil {
		return Default(), true, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), true, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Default(), true, err
	}
	return cfg, false, nil
}

func (c *Config) validate() error {
	if c.LogFormat == "" {
		return fmt.Errorf("log-format must not be empty")
	}
	if c.WebAPI && c.WebAPIAddress == "" {
		return fmt.Errorf("waaddress is required when webapi is enabled")
	}
	if c.RCON.Enabled && c.RCON.Address == "" {
		return fmt.Errorf("rcon.address is required when rcon is enabled")
	}
	return nil
}

// LogsEvent reports whether the per-category toggles admit this event kind.
func (c *Config) LogsEvent(kind domain.EventKind) bool {
	switch kind {
	case domain.PlayerJoin, domain.PlayerQuit:
		return c.LogPlayerConnections
	case domain.Chat:
		return c.LogPlayerChat
	case domain.Command:
		return c.LogCommands
	case domain.ServerConnect, domain.ServerConnected, domain.ServerDisconnect, domain.PlayerKicked:
		return c.LogServerSwitches
	case domain.Ping:
		return c.LogPings
	default:
		return false
	}
}

const defaultFileTemplate = `# BungeeLog relay configuration

# Audit log line template. Placeholders: %time%, %level%, %message%
log-format: "[%time%] [%level%] %message%"
# Mirror audit lines into the service log
enable-console-mirror: true
# Start a new log file when the calendar day changes
daily-rolling: true

# Per-category logging toggles
log-player-connections: true
log-player-chat: true
log-commands: true
log-server-switches: true
log-pings: false

# Retention: rotated files kept beyond this count are deleted
max-log-files: 30
# Gzip the closed file on daily rotation
compress-rotated: false
# Log directory
logs-dir: "logs"

# ===== WebAPI =====
# Real-time WebSocket channel
webapi: false
# WebSocket listen address
waaddress: "0.0.0.0:25796"
# Shared connection password
wapassword: "bungeelog"

# Static bearer token protecting the admin API (empty disables auth)
api-token: ""

# Upstream console over RCON (password via RCON_PASSWORD env)
rcon:
  enabled: false
  address: "127.0.0.1:25575"
`

// WriteDefault writes the commented default config file.
func WriteDefault(path string) error {
	return os.WriteFile(path, []byte(defaultFileTemplate), 0o644)
}
