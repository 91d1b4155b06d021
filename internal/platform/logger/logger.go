package logger

import (
	"io"
	"log/slog"
	"os"
)

const (
	modeDev     = "dev"
	modeRelease = "release"
)

// Setup returns a text logger in dev mode and a JSON logger otherwise.
func Setup(mode string) *slog.Logger {
	var log *slog.Logger

	switch mode {
	case modeDev:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case modeRelease:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return log
}

// Discard is used when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
