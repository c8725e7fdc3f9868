package applog

import (
	"io"
	"log/slog"
	"os"
)

// Options configures Setup.
type Options struct {
	Verbose int  // each -v raises the stderr level by one step
	Quiet   bool // suppress everything but warnings and errors
	JSON    io.Writer
}

// Setup builds and installs the process-wide slog.Logger per Options,
// mirroring the verbosity-to-level mapping of the pack's file-sync tool:
// quiet maps to Warn, the default to Info, and -v (or -vv) to Debug;
// each -v beyond the second lowers the level by a further four, below
// Debug.
func Setup(opts Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Quiet:
		level = slog.LevelWarn
	case opts.Verbose >= 2:
		level = slog.LevelDebug - slog.Level(4*(opts.Verbose-2))
	case opts.Verbose == 1:
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	var handler slog.Handler = textHandler
	if opts.JSON != nil {
		jsonHandler := slog.NewJSONHandler(opts.JSON, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = NewMultiHandler(textHandler, jsonHandler)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
