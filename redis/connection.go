// Package redis implements the keydb store adapter on top of a Redis or KeyDB server.
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/keydb"
)

// Connection wraps a redis.Client and the Options used to create it.
type Connection struct {
	Client  *redis.Client
	Options keydb.Options
}

// restartWatch remembers the server run_id seen by the connections of one handle.
type restartWatch struct {
	lastSeenRunID atomic.Value
	hasRestarted  atomic.Bool
}

// OpenConnection creates a client for options and pings the server so that resolution or
// handshake failures surface here rather than on first use.
func OpenConnection(ctx context.Context, options keydb.Options) (*Connection, error) {
	return openConnection(ctx, options, nil)
}

func openConnection(ctx context.Context, options keydb.Options, watch *restartWatch) (*Connection, error) {
	opts, err := redisOptions(options)
	if err != nil {
		return nil, keydb.Error{Code: keydb.ConnectionFailure, Err: err, UserData: options.Target()}
	}
	if watch != nil {
		opts.OnConnect = watch.onConnect
	}
	c := &Connection{
		Client:  redis.NewClient(opts),
		Options: options,
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		closeConnection(c)
		return nil, keydb.Error{
			Code:     keydb.ConnectionFailure,
			Err:      fmt.Errorf("redis ping failed: %w", err),
			UserData: options.Target(),
		}
	}
	log.Debug("Redis connection opened", "target", options.Target())
	return c, nil
}

func redisOptions(options keydb.Options) (*redis.Options, error) {
	var opts *redis.Options
	if options.URL != "" {
		o, err := redis.ParseURL(options.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = o
	} else {
		if options.Address == "" {
			return nil, fmt.Errorf("redis address is empty")
		}
		opts = &redis.Options{
			Addr:     options.Address,
			Password: options.Password,
			DB:       options.DB,
		}
	}
	if options.DialTimeout > 0 {
		opts.DialTimeout = options.DialTimeout
	}
	if options.ReadTimeout > 0 {
		opts.ReadTimeout = options.ReadTimeout
	}
	if options.WriteTimeout > 0 {
		opts.WriteTimeout = options.WriteTimeout
	}
	return opts, nil
}

// Close closes the underlying client, if not already closed.
func (c *Connection) Close() error {
	return closeConnection(c)
}

func closeConnection(c *Connection) error {
	if c == nil || c.Client == nil {
		return nil
	}
	log.Debug("Closing underlying Redis client")
	err := c.Client.Close()
	c.Client = nil
	return err
}

func (w *restartWatch) onConnect(ctx context.Context, cn *redis.Conn) error {
	// INFO server carries run_id, which changes on restart.
	info, err := cn.Info(ctx, "server").Result()
	if err != nil {
		// Servers that refuse INFO still serve GET/SET; skip detection.
		log.Debug("Redis INFO unavailable, restart detection disabled", "error", err)
		return nil
	}
	runID := parseRunID(info)
	if runID == "" {
		return nil
	}
	var lastID string
	if v := w.lastSeenRunID.Load(); v != nil {
		lastID = v.(string)
	}
	if lastID != "" && runID != lastID {
		log.Warn("Redis server restarted", "old_run_id", lastID, "new_run_id", runID)
		w.hasRestarted.Store(true)
	}
	w.lastSeenRunID.Store(runID)
	return nil
}

// parseRunID extracts run_id from INFO output; lines are of the form key:value.
func parseRunID(info string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if id, ok := strings.CutPrefix(line, "run_id:"); ok {
			return id
		}
	}
	return ""
}
