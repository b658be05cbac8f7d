package docstore

import (
	"context"
	"sync"
)

// Feed delivers changes to a single subscriber. Offered changes are queued
// without blocking the writer and handed to the callback one at a time, in
// order, from the feed's own goroutine.
//
// Connectors create one Feed per Changes call and Offer every write to it;
// the Feed applies the DocIDs filter and strips documents when
// IncludeDocs is unset.
type Feed struct {
	fn       func(Change)
	ids      map[string]struct{}
	withDocs bool
	onCancel func()

	mu       sync.Mutex
	pending  []Change
	closed   bool
	finished bool
	signal   chan struct{} // buffered, size 1; coalesces wakeups
	done     chan struct{}
}

// NewFeed starts a feed for opts. onCancel, if non-nil, runs once when the
// feed is cancelled so the connector can unregister it. The feed is
// cancelled when ctx is done.
func NewFeed(ctx context.Context, opts ChangesOptions, fn func(Change), onCancel func()) *Feed {
	f := &Feed{
		fn:       fn,
		withDocs: opts.IncludeDocs,
		onCancel: onCancel,
		pending:  make([]Change, 0, 16),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if len(opts.DocIDs) > 0 {
		f.ids = make(map[string]struct{}, len(opts.DocIDs))
		for _, id := range opts.DocIDs {
			f.ids[id] = struct{}{}
		}
	}

	go f.run()
	go func() {
		select {
		case <-ctx.Done():
			f.Cancel()
		case <-f.done:
		}
	}()

	return f
}

// Matches reports whether the feed's id filter accepts id.
func (f *Feed) Matches(id string) bool {
	if f.ids == nil {
		return true
	}
	_, ok := f.ids[id]
	return ok
}

// Offer queues c for delivery. It returns false if the change was filtered
// out or the feed no longer accepts changes.
func (f *Feed) Offer(c Change) bool {
	if !f.Matches(c.ID) {
		return false
	}
	if !f.withDocs {
		c.Doc = nil
	} else if c.Doc != nil {
		d := c.Doc.Clone()
		c.Doc = &d
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.finished {
		return false
	}
	f.pending = append(f.pending, c)
	f.wake()
	return true
}

// Finish marks the end of a non-live feed; queued changes are still
// delivered, after which the feed goroutine exits.
func (f *Feed) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.finished {
		return
	}
	f.finished = true
	f.wake()
}

// Cancel stops delivery. Queued changes are dropped. It does not wait for a
// callback that is already running.
func (f *Feed) Cancel() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.pending = nil
	close(f.signal)
	f.mu.Unlock()

	if f.onCancel != nil {
		f.onCancel()
	}
}

// Closed reports whether the feed has been cancelled.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Done is closed when the delivery goroutine has exited.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// wake must be called with mu held.
func (f *Feed) wake() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *Feed) run() {
	defer close(f.done)
	for {
		c, ok := f.next()
		if !ok {
			return
		}
		f.fn(c)
	}
}

// next blocks until a change is available or the feed ends.
func (f *Feed) next() (Change, bool) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return Change{}, false
		}
		if len(f.pending) > 0 {
			c := f.pending[0]
			f.pending[0] = Change{}
			if len(f.pending) == 1 {
				f.pending = f.pending[:0]
			} else {
				f.pending = f.pending[1:]
			}
			f.mu.Unlock()
			return c, true
		}
		if f.finished {
			f.mu.Unlock()
			return Change{}, false
		}
		f.mu.Unlock()

		<-f.signal
	}
}
