package application

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs the default slog logger writing to stdout and
// returns it. Level is one of debug, info, warn or error; format is text
// or json. Unknown values fall back to info and text.
func ConfigureLogging(level, format string) *slog.Logger {
	return configureLogging(os.Stdout, level, format)
}

func configureLogging(w io.Writer, level, format string) *slog.Logger {
	SetLogLevel(level)

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel changes the level of the logger installed by
// ConfigureLogging without rebuilding it.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}
