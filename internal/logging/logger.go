package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level     string
	Writer    io.Writer
	Component string
	Module    string
}

func NewLogger(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	h := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	lg := slog.New(h)
	if strings.TrimSpace(opts.Component) != "" {
		lg = lg.With("component", strings.TrimSpace(opts.Component))
	}
	if strings.TrimSpace(opts.Module) != "" {
		lg = lg.With("module", strings.TrimSpace(opts.Module))
	}
	return lg
}

// ForModule stamps a child logger with the module attr log lines are
// keyed by throughout the codebase.
func ForModule(lg *slog.Logger, name string) *slog.Logger {
	if lg == nil {
		lg = slog.Default()
	}
	return lg.With("module", name)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
