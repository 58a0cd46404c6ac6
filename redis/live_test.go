package redis

import (
	"os"
	"testing"

	"github.com/sharedcode/keydb"
)

// TestLiveServer runs the commit/recover cycle against a real server.
func TestLiveServer(t *testing.T) {
	if os.Getenv("KEYDB_REDIS_TEST") != "1" {
		t.Skip("skipping Redis integration test; set KEYDB_REDIS_TEST=1 to run")
	}
	opts := keydb.DefaultOptions()
	if url := os.Getenv("KEYDB_REDIS_URL"); url != "" {
		opts.URL = url
	}
	opts.HeightKey = "/__INTERNAL/keydb-live-test-height"

	a, err := Open(ctx, opts)
	if err != nil {
		t.Skipf("skipping Redis integration test; Redis not reachable: %v", err)
	}
	defer a.Close()

	start, err := a.RecoverHeight(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	a.SetHeight(start + 1)
	b := a.NewBatch()
	b.Put([]byte("keydb-live-test"), []byte("v"))
	if err := a.Write(ctx, b); err != nil {
		t.Fatal(err)
	}
	defer a.Delete(ctx, []byte("keydb-live-test"))

	h, err := a.RecoverHeight(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if h != start+1 {
		t.Errorf("recovered %d, want %d", h, start+1)
	}
	v, found, err := a.Get(ctx, []byte("keydb-live-test"))
	if err != nil || !found || string(v) != "v" {
		t.Errorf("Get = %q, %v, %v", v, found, err)
	}
}
