package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a text logger on stdout. An unknown level is reported and
// treated as INFO.
func New(levelStr string) *slog.Logger {
	return NewWithWriter(os.Stdout, levelStr)
}

func NewWithWriter(w io.Writer, levelStr string) *slog.Logger {
	var logLevel slog.LevelVar
	logLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: &logLevel,
	})
	log := slog.New(handler)

	level, err := ParseLevel(levelStr)
	if err != nil {
		log.Warn("Unknown log level", "err", err)
	}
	logLevel.Set(level)

	return log
}

// ParseLevel maps a config string to slog.Level. The fallback level is
// returned alongside any error.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %s", level)
	}
}
