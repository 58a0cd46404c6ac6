package keydb

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ParseLogLevel maps DEBUG, INFO, WARN or ERROR, in any case, to a slog level.
// An empty string is INFO.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ConfigureLogging sets up the global default logger on stderr, leaving stdout to the
// program's own output. level comes from the application's configuration; the
// KEYDB_LOG_LEVEL environment variable, when set, takes precedence over it.
// KEYDB_LOG_FORMAT=json selects a JSON handler instead of text.
func ConfigureLogging(level string) error {
	if env := os.Getenv("KEYDB_LOG_LEVEL"); env != "" {
		level = env
	}
	l, err := ParseLogLevel(level)
	logLevel.Set(l)

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(os.Getenv("KEYDB_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return err
}

// SetLogLevel sets the logging level for the logger configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// LogLevel returns the level currently applied by the logger configured by ConfigureLogging.
func LogLevel() slog.Level {
	return logLevel.Level()
}
