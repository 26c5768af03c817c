package cmd

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

const logLevelEnv = "WSL_NOTIFYD_LOG_LEVEL"

func setupLogging(level slog.Level, noColor bool) {
	slog.SetDefault(newLogger(os.Stderr, level, noColor))
}

// newLogger builds the tint logger. WSL_NOTIFYD_LOG_LEVEL overrides level.
func newLogger(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	if levelStr := os.Getenv(logLevelEnv); levelStr != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(levelStr)); err == nil {
			level = l
		}
	}
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    noColor,
		}),
	)
}
