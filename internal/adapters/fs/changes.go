package fs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/lifecycle"
	"github.com/bft-labs/slicesync/pkg/log"
)

// watchFeed remembers the last revision delivered per document so a write
// seen both directly and through fsnotify is delivered once.
type watchFeed struct {
	feed *docstore.Feed

	mu   sync.Mutex
	seen map[string]string
}

func (w *watchFeed) offer(c docstore.Change) {
	if !w.feed.Matches(c.ID) {
		return
	}
	w.mu.Lock()
	if w.seen[c.ID] == c.Rev {
		w.mu.Unlock()
		return
	}
	w.seen[c.ID] = c.Rev
	w.mu.Unlock()
	w.feed.Offer(c)
}

// Changes opens a change feed. Without SinceNow the stored documents are
// delivered first, oldest modification first.
func (c *Connector) Changes(ctx context.Context, opts docstore.ChangesOptions, fn func(docstore.Change)) (docstore.Subscription, error) {
	if c.isClosed() {
		return nil, docstore.ErrClosed
	}

	var watcher *fsnotify.Watcher
	if opts.Live {
		var err error
		if watcher, err = fsnotify.NewWatcher(); err != nil {
			return nil, fmt.Errorf("changes: create watcher: %w", err)
		}
		if err := watcher.Add(c.dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("changes: watch %s: %w", c.dir, err)
		}
	}

	feedCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)

	w := &watchFeed{seen: make(map[string]string)}
	w.feed = docstore.NewFeed(feedCtx, opts, fn, func() {
		cancel()
		c.mu.Lock()
		delete(c.feeds, w)
		c.mu.Unlock()
	})

	fail := func(err error) (docstore.Subscription, error) {
		stop()
		if watcher != nil {
			watcher.Close()
		}
		w.feed.Cancel()
		return nil, err
	}

	c.mu.Lock()
	docs, err := c.list()
	if err != nil {
		c.mu.Unlock()
		return fail(err)
	}
	for i := range docs {
		d := docs[i]
		if opts.SinceNow {
			w.seen[d.ID] = d.Rev
			continue
		}
		c.seq++
		w.offer(docstore.Change{Seq: c.seq, ID: d.ID, Rev: d.Rev, Doc: &d})
	}

	if !opts.Live {
		c.mu.Unlock()
		stop()
		w.feed.Finish()
		return w.feed, nil
	}
	if c.closed {
		c.mu.Unlock()
		return fail(docstore.ErrClosed)
	}
	c.feeds[w] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer stop()
		defer watcher.Close()
		defer func() {
			c.mu.Lock()
			delete(c.feeds, w)
			c.mu.Unlock()
		}()
		c.watch(feedCtx, w, watcher)
	}()
	return w.feed, nil
}

// watch turns file events into changes. Events are collected until the
// directory has been quiet for the debounce delay, then every touched
// document is read once.
func (c *Connector) watch(ctx context.Context, w *watchFeed, watcher *fsnotify.Watcher) {
	dirty := make(map[string]struct{})
	var quiet <-chan time.Time
	backoff := lifecycle.NewBackoff(c.opts.debounce, time.Second)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.feed.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			id, ok := idFromFile(event.Name)
			if !ok || !w.feed.Matches(id) {
				continue
			}
			dirty[id] = struct{}{}
			quiet = time.After(c.opts.debounce)

		case <-quiet:
			quiet = nil
			for id := range dirty {
				doc, err := c.read(id)
				if err != nil {
					if docstore.IsNotFound(err) {
						delete(dirty, id)
						continue
					}
					// Partially visible write on some platforms; retry.
					c.logger.Debug("re-reading document", log.DocID(id), log.Err(err))
					continue
				}
				delete(dirty, id)
				w.offer(docstore.Change{Seq: c.nextSeq(), ID: doc.ID, Rev: doc.Rev, Doc: &doc})
			}
			if len(dirty) > 0 {
				quiet = time.After(backoff.Next())
			} else {
				backoff.Reset()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("change feed watcher error", log.Err(err))
		}
	}
}
