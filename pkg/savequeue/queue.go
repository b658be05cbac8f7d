package savequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/log"
)

// request is one state waiting to be written.
type request struct {
	ctx   context.Context
	conn  docstore.Connector
	state json.RawMessage
}

// Queue serializes writes per key.
//
// Per key the queue is either Idle or Busy. Save on an Idle key starts a
// write and makes it Busy; when the write settles the key returns to Idle,
// or stays Busy and writes the parked state if one arrived meanwhile.
type Queue struct {
	origin   string
	logger   log.Logger
	observer Observer

	mu      sync.Mutex
	busy    map[string]bool
	pending map[string]request
}

// New creates a Queue that stamps origin on every written document.
func New(origin string, opts ...Option) *Queue {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue{
		origin:   origin,
		logger:   o.logger,
		observer: o.observer,
		busy:     make(map[string]bool),
		pending:  make(map[string]request),
	}
}

// Origin returns the tag stamped on written documents.
func (q *Queue) Origin() string {
	return q.origin
}

// Save requests that state be written to the document key in conn.
//
// It never blocks. If no write is in flight for key, one starts in the
// background and the returned channel yields its result once it settles.
// Otherwise state is parked, replacing any state parked earlier, and the
// returned channel is already closed.
func (q *Queue) Save(ctx context.Context, conn docstore.Connector, key string, state json.RawMessage) <-chan error {
	result := make(chan error, 1)
	req := request{ctx: ctx, conn: conn, state: append(json.RawMessage(nil), state...)}

	q.mu.Lock()
	if q.busy[key] {
		if _, parked := q.pending[key]; parked {
			q.observer.Superseded(key)
		}
		q.pending[key] = req
		q.mu.Unlock()
		close(result)
		return result
	}
	q.busy[key] = true
	q.mu.Unlock()

	go q.drain(key, req, result)
	return result
}

// InSync reports whether no key has a write in flight. The answer is
// sampled at call time and may be stale by the time it is used.
func (q *Queue) InSync() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.busy) == 0
}

// Busy returns the keys with a write in flight, sorted.
func (q *Queue) Busy() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make([]string, 0, len(q.busy))
	for k := range q.busy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush waits until no key has a write in flight or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for !q.InSync() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// drain writes req, then keeps writing whatever got parked for key until
// nothing is left. Only the first write's result is reported.
func (q *Queue) drain(key string, req request, result chan<- error) {
	for {
		err := q.write(req.ctx, req.conn, key, req.state)
		if result != nil {
			result <- err
			close(result)
			result = nil
		}

		q.mu.Lock()
		next, ok := q.pending[key]
		if !ok {
			delete(q.busy, key)
			q.mu.Unlock()
			return
		}
		delete(q.pending, key)
		q.mu.Unlock()

		req = next
	}
}

// write performs one read-merge-write cycle. A missing document is
// written fresh.
func (q *Queue) write(ctx context.Context, conn docstore.Connector, key string, state json.RawMessage) (err error) {
	start := time.Now()
	q.observer.WriteStarted(key)
	defer func() {
		q.observer.WriteFinished(key, time.Since(start), err)
		if err != nil {
			q.logger.Error("save failed", log.DocID(key), log.Err(err))
		}
	}()

	doc, err := conn.Get(ctx, key)
	if err != nil {
		if !docstore.IsNotFound(err) {
			return fmt.Errorf("save %s: read: %w", key, err)
		}
		doc = docstore.Document{ID: key}
	}

	doc.Origin = q.origin
	doc.State = state

	rev, err := conn.Put(ctx, doc)
	if err != nil {
		return fmt.Errorf("save %s: write: %w", key, err)
	}

	q.logger.Debug("state saved", log.DocID(key), log.Rev(rev))
	return nil
}
