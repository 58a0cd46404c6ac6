package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharedcode/keydb"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keydb.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("KEYDB_URL", "")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	opts, err := cfg.options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Address != "localhost:6379" || opts.ReservedKey() != keydb.TipHeightKey || opts.HeightStamping != keydb.StampInGroup {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if cfg.Listen != "localhost:8080" || cfg.StartupRetries != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("KEYDB_URL", "")
	path := writeConfig(t, `
store:
  address: cache:6380
  db: 3
  height_key: indexer/height
  dial_timeout: 2s
height_stamping: before_group
listen: :9090
startup_retries: 1
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := cfg.options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Address != "cache:6380" || opts.DB != 3 || opts.ReservedKey() != "indexer/height" {
		t.Errorf("store options %+v", opts)
	}
	if opts.DialTimeout != 2*time.Second {
		t.Errorf("dial timeout %v", opts.DialTimeout)
	}
	if opts.HeightStamping != keydb.StampBeforeGroup {
		t.Errorf("stamping %v", opts.HeightStamping)
	}
	if cfg.Listen != ":9090" || cfg.StartupRetries != 1 {
		t.Errorf("config %+v", cfg)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("KEYDB_URL", "redis://env-host:6379/1")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.URL != "redis://env-host:6379/1" {
		t.Errorf("URL = %q", cfg.Store.URL)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := loadConfig(writeConfig(t, "store: [")); err == nil {
		t.Error("invalid YAML accepted")
	}
	cfg, err := loadConfig(writeConfig(t, "height_stamping: sideways\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.options(); err == nil {
		t.Error("unknown stamping mode accepted")
	}
}

func TestConfigLogLevel(t *testing.T) {
	t.Setenv("KEYDB_URL", "")
	t.Setenv("KEYDB_LOG_LEVEL", "")
	defer keydb.SetLogLevel(slog.LevelInfo)

	gf := globalFlags{configPath: writeConfig(t, "log_level: debug\n")}
	cfg, err := gf.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" || keydb.LogLevel() != slog.LevelDebug {
		t.Errorf("log level %q applied as %v", cfg.LogLevel, keydb.LogLevel())
	}

	gf = globalFlags{configPath: writeConfig(t, "log_level: chatty\n")}
	if _, err := gf.config(); err == nil {
		t.Error("unknown log_level accepted")
	}
}
