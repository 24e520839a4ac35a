package entrypoint

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mrlokans/elibrary/internal/config"
)

// NewLogger builds the process logger: human-readable text in development,
// JSON everywhere else.
func NewLogger(g config.Global) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(g.LogLevel)}
	if g.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// ParseLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
