package redis

import (
	"context"
	"fmt"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/keydb"
)

// QueryHeight reads the height stored under key. An absent key, an empty value or any read
// error yields start: the engine then replays from its own starting point. A value that is
// not exactly 4 bytes is returned as a MalformedHeightData error.
func QueryHeight(ctx context.Context, conn *Connection, key string, start uint32) (uint32, error) {
	if conn == nil || conn.Client == nil {
		log.Warn("No connection to read height from, using start height", "start", start)
		return start, nil
	}
	if key == "" {
		key = keydb.TipHeightKey
	}
	ba, err := conn.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		log.Debug("No height recorded, using start height", "key", key, "start", start)
		return start, nil
	}
	if err != nil {
		log.Warn("Height read failed, using start height", "key", key, "start", start, "error", err)
		return start, nil
	}
	if len(ba) == 0 {
		return start, nil
	}
	h, err := keydb.DecodeHeight(ba)
	if err != nil {
		return 0, fmt.Errorf("redis height key %s: %w", key, err)
	}
	return h, nil
}
