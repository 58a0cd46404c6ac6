package keydb

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestConfigureLoggingEnvOverridesConfig(t *testing.T) {
	t.Setenv("KEYDB_LOG_LEVEL", "")
	if err := ConfigureLogging("debug"); err != nil {
		t.Fatal(err)
	}
	if LogLevel() != slog.LevelDebug {
		t.Errorf("level %v, want DEBUG", LogLevel())
	}

	t.Setenv("KEYDB_LOG_LEVEL", "ERROR")
	if err := ConfigureLogging("debug"); err != nil {
		t.Fatal(err)
	}
	if LogLevel() != slog.LevelError {
		t.Errorf("level %v, want ERROR", LogLevel())
	}

	t.Setenv("KEYDB_LOG_LEVEL", "")
	if err := ConfigureLogging("loud"); err == nil {
		t.Error("unknown level accepted")
	}
	if LogLevel() != slog.LevelInfo {
		t.Errorf("level %v after bad input, want INFO", LogLevel())
	}

	SetLogLevel(slog.LevelWarn)
	if LogLevel() != slog.LevelWarn {
		t.Errorf("level %v, want WARN", LogLevel())
	}
}
