package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/sharedcode/keydb"
)

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testConfig(t *testing.T, s *miniredis.Miniredis) string {
	t.Helper()
	t.Setenv("KEYDB_URL", "")
	return writeConfig(t, "store:\n  address: "+s.Addr()+"\nstartup_retries: 0\n")
}

func TestPutGetDelCommands(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t, s)
	key := hex.EncodeToString([]byte("k"))
	value := hex.EncodeToString([]byte{0, 1, 2})

	if _, err := run(t, cfg, "put", key, value); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.CheckGet(t, "k", "\x00\x01\x02")

	out, err := run(t, cfg, "get", key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != value {
		t.Errorf("get printed %q, want %q", out, value)
	}

	if _, err := run(t, cfg, "del", key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := run(t, cfg, "get", key); err == nil {
		t.Error("get of deleted key succeeded")
	}
}

func TestStampAndHeightCommands(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t, s)

	out, err := run(t, cfg, "height", "--start", "100")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "100" {
		t.Errorf("height without record printed %q", out)
	}

	if _, err := run(t, cfg, "stamp", "4096"); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, cfg, "height")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "4096" {
		t.Errorf("height printed %q, want 4096", out)
	}
}

func TestHeightCommandMalformed(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t, s)
	s.Set(keydb.TipHeightKey, "\x05")
	if _, err := run(t, cfg, "height"); !keydb.IsErrorCode(err, keydb.MalformedHeightData) {
		t.Errorf("expected MalformedHeightData, got %v", err)
	}
}

func TestCommandArgumentErrors(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t, s)
	if _, err := run(t, cfg, "get", "zz"); err == nil {
		t.Error("non-hex key accepted")
	}
	if _, err := run(t, cfg, "stamp", "4294967296"); err == nil {
		t.Error("height above uint32 accepted")
	}
	if _, err := run(t, cfg, "put", "00"); err == nil {
		t.Error("put without value accepted")
	}
}

func TestURLFlagOverridesConfig(t *testing.T) {
	s := miniredis.RunT(t)
	t.Setenv("KEYDB_URL", "")
	cfg := writeConfig(t, "store:\n  address: 127.0.0.1:1\nstartup_retries: 0\n")
	if _, err := run(t, cfg, "--url", "redis://"+s.Addr(), "put", "6b", "76"); err != nil {
		t.Fatal(err)
	}
	s.CheckGet(t, "k", "v")
}
