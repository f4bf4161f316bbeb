package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a text slog handler on stderr as the default logger.
func Setup(debug bool) *slog.Logger {
	return SetupWriter(os.Stderr, debug)
}

func SetupWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return logger
}
