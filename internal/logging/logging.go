package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. Init must be called once from main before
// any component logs.
var Log = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init installs a text handler on stdout at the given level ("debug",
// "info", "warn", "error"; anything else means info).
func Init(level string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
