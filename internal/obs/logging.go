// Package obs wires logging and OpenTelemetry tracing/metrics for the
// process.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures the global slog logger: JSON if
// BLOCKWART_JSON_LOG is truthy, else text; level from
// BLOCKWART_LOG_LEVEL.
func InitLogging() *slog.Logger {
	mode := strings.ToLower(os.Getenv("BLOCKWART_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", "blockwart")
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("BLOCKWART_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
