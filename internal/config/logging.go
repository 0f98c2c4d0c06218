package config

import (
	"fmt"
	"io"

	"github.com/decred/slog"
)

// Log subsystem tags.
const (
	SubsystemSpin      = "SPIN"
	SubsystemStore     = "STOR"
	SubsystemHTTP      = "HTTP"
	SubsystemWebSocket = "WSHB"
	SubsystemCron      = "CRON"
	SubsystemRecorder  = "RCDR"
)

// LogBackend hands out subsystem loggers that share one writer and level.
type LogBackend struct {
	backend *slog.Backend
	level   slog.Level
}

func NewLogBackend(w io.Writer, level string) (*LogBackend, error) {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return &LogBackend{backend: slog.NewBackend(w), level: lvl}, nil
}

func (b *LogBackend) Logger(subsystem string) slog.Logger {
	log := b.backend.Logger(subsystem)
	log.SetLevel(b.level)
	return log
}
