package console

import (
	"context"
	"log/slog"
)

// LogExecutor records commands in the service log instead of running them.
// Used when no RCON upstream is configured so the wire contract still works.
type LogExecutor struct{}

func NewLogExecutor() *LogExecutor {
	return &LogExecutor{}
}

func (LogExecutor) Execute(_ context.Context, command string) (string, error) {
	slog.Info("Console command received (no upstream configured)", "command", command)
	return "", nil
}
