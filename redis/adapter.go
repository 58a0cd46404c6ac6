package redis

import (
	"context"
	"fmt"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/keydb"
)

// Adapter satisfies keydb.KeyValueStore over one Redis/KeyDB server. Copies made with Clone
// share the connection handle and the height marker.
type Adapter struct {
	options keydb.Options
	handle  *Handle
	height  *keydb.Height
}

var _ keydb.KeyValueStore[*Batch] = (*Adapter)(nil)

// Open connects to the store described by options. The height marker starts at zero; call
// RecoverHeight or SetHeight before the first Write.
func Open(ctx context.Context, options keydb.Options) (*Adapter, error) {
	h, err := NewHandle(ctx, options)
	if err != nil {
		observeOp("open", err)
		return nil, err
	}
	observeOp("open", nil)
	return &Adapter{
		options: options,
		handle:  h,
		height:  keydb.NewHeight(0),
	}, nil
}

// Clone returns an adapter sharing this one's connection handle and height marker.
func (a *Adapter) Clone() *Adapter {
	c := *a
	return &c
}

// Options returns the options the adapter was opened with.
func (a *Adapter) Options() keydb.Options {
	return a.options
}

// NewBatch returns an empty batch for Write.
func (a *Adapter) NewBatch() *Batch {
	return NewBatch()
}

// SetHeight sets the height the next Write stamps.
func (a *Adapter) SetHeight(height uint32) {
	a.height.Store(height)
}

// Height returns the height the next Write stamps.
func (a *Adapter) Height() uint32 {
	return a.height.Load()
}

// Connect opens a brand new connection without touching the shared handle.
// The caller closes it.
func (a *Adapter) Connect(ctx context.Context) (*Connection, error) {
	return a.handle.open(ctx)
}

// IsRestarted reports, once, that the server restarted since it was last seen.
func (a *Adapter) IsRestarted() bool {
	return a.handle.IsRestarted()
}

// Close closes the shared handle for this adapter and all its clones.
func (a *Adapter) Close() error {
	return a.handle.Close()
}

// RecoverHeight reads the committed height (see QueryHeight) and loads it into the height
// marker, so the next Write does not move the stored height backwards.
func (a *Adapter) RecoverHeight(ctx context.Context, start uint32) (uint32, error) {
	s, err := a.handle.acquire()
	if err != nil {
		log.Warn("Height recovery without connection, using start height", "start", start, "error", err)
		a.height.Store(start)
		return start, nil
	}
	h, err := QueryHeight(ctx, s.conn, a.options.ReservedKey(), start)
	a.handle.release(s)
	observeOp("recover_height", err)
	if err != nil {
		return 0, err
	}
	a.height.Store(h)
	log.Info("Height recovered", "height", h, "start", start)
	return h, nil
}

// Get reads key over the shared connection. found is false when the key is absent.
func (a *Adapter) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s, err := a.handle.acquire()
	if err != nil {
		observeOp("get", err)
		return nil, false, err
	}
	defer a.handle.release(s)

	ba, err := s.conn.Client.Get(ctx, string(key)).Bytes()
	if err == redis.Nil {
		observeOp("get", nil)
		return nil, false, nil
	}
	if err != nil {
		err = storeError("get", key, err)
		observeOp("get", err)
		return nil, false, err
	}
	observeOp("get", nil)
	return ba, true, nil
}

// Put writes key over the shared connection, outside any batch.
func (a *Adapter) Put(ctx context.Context, key, value []byte) error {
	if err := a.checkKey(key); err != nil {
		return err
	}
	s, err := a.handle.acquire()
	if err != nil {
		observeOp("put", err)
		return err
	}
	defer a.handle.release(s)

	if err := s.conn.Client.Set(ctx, string(key), value, 0).Err(); err != nil {
		err = storeError("set", key, err)
		observeOp("put", err)
		return err
	}
	observeOp("put", nil)
	return nil
}

// Delete removes key over a connection of its own, closed before returning.
func (a *Adapter) Delete(ctx context.Context, key []byte) error {
	if err := a.checkKey(key); err != nil {
		return err
	}
	conn, err := a.handle.open(ctx)
	if err != nil {
		observeOp("delete", err)
		return err
	}
	defer closeConnection(conn)

	if err := conn.Client.Del(ctx, string(key)).Err(); err != nil {
		err = storeError("delete", key, err)
		observeOp("delete", err)
		return err
	}
	observeOp("delete", nil)
	return nil
}

// Write stamps the batch with the current height and applies it as one MULTI/EXEC group
// over a fresh connection, then replaces the shared connection whatever the outcome.
// The batch is consumed.
//
// A ConnectionFailure returned with an otherwise successful apply means the batch was
// committed but the shared connection could not be replaced; the previous one is kept.
func (a *Adapter) Write(ctx context.Context, batch *Batch) error {
	return a.write(ctx, batch, a.height.Load())
}

// WriteAt is Write stamping height instead of the marker, for callers that commit batches
// concurrently each at its own height. On success the marker is advanced to height; it is
// never lowered.
func (a *Adapter) WriteAt(ctx context.Context, batch *Batch, height uint32) error {
	if err := a.write(ctx, batch, height); err != nil {
		return err
	}
	a.height.Advance(height)
	return nil
}

func (a *Adapter) write(ctx context.Context, batch *Batch, height uint32) error {
	if batch == nil {
		batch = NewBatch()
	}
	err := a.apply(ctx, batch, height)
	// The shared connection is replaced even when the caller's context is already done.
	if rerr := a.handle.Reset(context.WithoutCancel(ctx)); rerr != nil {
		if err == nil {
			err = rerr
		} else {
			log.Error("Redis connection reset after failed write also failed", "batch", batch.ID(), "error", rerr)
		}
	}
	observeOp("write", err)
	return err
}

func (a *Adapter) apply(ctx context.Context, batch *Batch, height uint32) error {
	if batch.consumed {
		return keydb.Error{
			Code:     keydb.BatchConsumed,
			Err:      fmt.Errorf("batch was already submitted"),
			UserData: batch.ID().String(),
		}
	}
	batch.consumed = true
	for _, e := range batch.entries {
		if err := a.checkKey(e.key); err != nil {
			return err
		}
	}

	key := a.options.ReservedKey()
	hb := keydb.EncodeHeight(height)

	if a.options.HeightStamping == keydb.StampBeforeGroup {
		if err := a.stampShared(ctx, key, hb); err != nil {
			return err
		}
	}

	conn, err := a.handle.open(ctx)
	if err != nil {
		return err
	}
	defer closeConnection(conn)

	_, err = conn.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if a.options.HeightStamping == keydb.StampInGroup {
			pipe.Set(ctx, key, hb, 0)
		}
		batch.queue(ctx, pipe)
		return nil
	})
	if err != nil {
		return keydb.Error{
			Code:     keydb.WriteFailure,
			Err:      fmt.Errorf("redis multi/exec failed: %w", err),
			UserData: batch.ID().String(),
		}
	}
	batchSize.Observe(float64(batch.Len()))
	stampedHeight.Set(float64(height))
	log.Debug("Batch committed", "batch", batch.ID(), "entries", batch.Len(), "height", height, "stamping", a.options.HeightStamping)
	return nil
}

// stampShared writes the height with a plain SET on the shared connection.
func (a *Adapter) stampShared(ctx context.Context, key string, hb []byte) error {
	s, err := a.handle.acquire()
	if err != nil {
		return err
	}
	defer a.handle.release(s)
	if err := s.conn.Client.Set(ctx, key, hb, 0).Err(); err != nil {
		return storeError("set", []byte(key), err)
	}
	return nil
}

func (a *Adapter) checkKey(key []byte) error {
	if string(key) == a.options.ReservedKey() {
		return keydb.Error{
			Code:     keydb.ReservedKeyViolation,
			Err:      fmt.Errorf("key %q is reserved for the height marker", key),
			UserData: string(key),
		}
	}
	return nil
}

func storeError(op string, key []byte, err error) error {
	return keydb.Error{
		Code:     keydb.StoreFailure,
		Err:      fmt.Errorf("redis %s failed for key %x: %w", op, key, err),
		UserData: fmt.Sprintf("%x", key),
	}
}
