package redis

import (
	"context"
	"fmt"
	"sync"

	log "log/slog"

	"github.com/sharedcode/keydb"
)

// session is one opened Connection plus the number of operations currently using it.
// A retired session is closed by whoever drops its last reference.
type session struct {
	conn    *Connection
	refs    int
	retired bool
}

// Handle owns the shared session to the store. The mutex guards only which session is
// current and the reference counts; it is never held across a network round trip.
type Handle struct {
	options keydb.Options
	watch   *restartWatch

	mux     sync.Mutex
	current *session
	closed  bool
}

// NewHandle opens the first session for options.
func NewHandle(ctx context.Context, options keydb.Options) (*Handle, error) {
	h := &Handle{
		options: options,
		watch:   &restartWatch{},
	}
	c, err := openConnection(ctx, options, h.watch)
	if err != nil {
		return nil, err
	}
	h.current = &session{conn: c}
	log.Info("Redis connection handle opened", "target", options.Target())
	return h, nil
}

// open creates a session-less connection sharing this handle's restart watch.
func (h *Handle) open(ctx context.Context) (*Connection, error) {
	return openConnection(ctx, h.options, h.watch)
}

// acquire pins the current session. The returned session stays open until released even if
// Reset swaps it out in the meantime.
func (h *Handle) acquire() (*session, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.closed || h.current == nil {
		return nil, keydb.Error{
			Code:     keydb.ConnectionFailure,
			Err:      fmt.Errorf("redis connection handle is closed"),
			UserData: h.options.Target(),
		}
	}
	h.current.refs++
	return h.current, nil
}

func (h *Handle) release(s *session) {
	h.mux.Lock()
	s.refs--
	closeNow := s.retired && s.refs == 0
	h.mux.Unlock()
	if closeNow {
		closeConnection(s.conn)
	}
}

// Reset replaces the shared session with a freshly opened one. On failure the current
// session is kept and the error returned.
func (h *Handle) Reset(ctx context.Context) error {
	c, err := h.open(ctx)
	if err != nil {
		return err
	}
	h.mux.Lock()
	if h.closed {
		h.mux.Unlock()
		closeConnection(c)
		return keydb.Error{
			Code:     keydb.ConnectionFailure,
			Err:      fmt.Errorf("redis connection handle is closed"),
			UserData: h.options.Target(),
		}
	}
	old := h.current
	h.current = &session{conn: c}
	closeOld := false
	if old != nil {
		old.retired = true
		closeOld = old.refs == 0
	}
	h.mux.Unlock()

	resetsTotal.Inc()
	if closeOld {
		closeConnection(old.conn)
	}
	log.Debug("Redis connection handle reset", "target", h.options.Target())
	return nil
}

// IsRestarted reports, once, that the server run_id changed since the previous connect.
func (h *Handle) IsRestarted() bool {
	return h.watch.hasRestarted.Swap(false)
}

// Close retires the current session. Sessions still pinned are closed on release.
func (h *Handle) Close() error {
	h.mux.Lock()
	if h.closed {
		h.mux.Unlock()
		return nil
	}
	h.closed = true
	s := h.current
	h.current = nil
	closeNow := false
	if s != nil {
		s.retired = true
		closeNow = s.refs == 0
	}
	h.mux.Unlock()

	log.Info("Closing Redis connection handle", "target", h.options.Target())
	if closeNow {
		return closeConnection(s.conn)
	}
	return nil
}
