package actor

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/lkv/lib/queue"
	"github.com/ValentinKolb/lkv/lib/store"
)

// handleRefs is shared by all clones of a handle.
type handleRefs struct {
	queue *queue.MPSC[command]
	done  <-chan struct{}
	refs  atomic.Int64
}

// Handle is a reference to an Actor. It implements store.IStore and is safe for concurrent use,
// but the usual pattern is one clone per goroutine (e.g. per connection) that is closed when
// the goroutine is done.
type Handle struct {
	shared *handleRefs
	closed atomic.Bool
}

var _ store.IStore = (*Handle)(nil)

func newHandle(q *queue.MPSC[command], done <-chan struct{}) *Handle {
	shared := &handleRefs{queue: q, done: done}
	shared.refs.Store(1)
	return &Handle{shared: shared}
}

// Clone returns a new handle to the same actor. The clone must be closed independently.
// Cloning a closed handle returns a closed handle, and so does cloning once the last
// reference was dropped, even if that happens while Clone runs.
func (h *Handle) Clone() *Handle {
	c := &Handle{shared: h.shared}
	if h.closed.Load() {
		c.closed.Store(true)
		return c
	}
	for {
		n := h.shared.refs.Load()
		if n <= 0 {
			// the queue is closed already, never count up from zero
			c.closed.Store(true)
			return c
		}
		if h.shared.refs.CompareAndSwap(n, n+1) {
			return c
		}
	}
}

// Close drops this reference. When the last reference is dropped the command queue is closed,
// which lets the actor finish the queued commands and stop. Close is idempotent.
func (h *Handle) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	if h.shared.refs.Add(-1) <= 0 {
		h.shared.queue.Close()
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (h *Handle) Set(ctx context.Context, key, value string) error {
	return h.push(ctx, newSetCommand(key, value))
}

func (h *Handle) Get(ctx context.Context, key string) (string, bool, error) {
	reply := make(chan result, 1)
	if err := h.push(ctx, newGetCommand(key, reply)); err != nil {
		return "", false, err
	}

	select {
	case r := <-reply:
		return r.value, r.found, nil
	case <-h.shared.done:
		// the actor might have answered right before stopping
		select {
		case r := <-reply:
			return r.value, r.found, nil
		default:
		}
		return "", false, store.NewError(store.RetCUnavailable, "store stopped before answering get")
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// push enqueues a command, blocking while the queue is full.
func (h *Handle) push(ctx context.Context, cmd command) error {
	if h.closed.Load() {
		return store.NewError(store.RetCInvalidOperation, "store handle is closed")
	}
	err := h.shared.queue.Push(ctx, cmd)
	if errors.Is(err, queue.ErrClosed) {
		return store.NewError(store.RetCUnavailable, "store is not accepting commands")
	}
	return err
}
