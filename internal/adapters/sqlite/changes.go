package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/lifecycle"
	"github.com/bft-labs/slicesync/pkg/log"
)

// Changes opens a change feed. Without SinceNow the current documents are
// delivered first, in write order. Each document appears once per poll
// with its latest revision, so rapid successive writes may be observed as
// one change.
func (c *Connector) Changes(ctx context.Context, opts docstore.ChangesOptions, fn func(docstore.Change)) (docstore.Subscription, error) {
	if c.isClosed() {
		return nil, docstore.ErrClosed
	}

	var since uint64
	if opts.SinceNow {
		if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM documents`).Scan(&since); err != nil {
			return nil, fmt.Errorf("changes: read head: %w", err)
		}
	}

	wake := make(chan struct{}, 1)
	feedCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)

	f := docstore.NewFeed(feedCtx, opts, fn, func() {
		cancel()
		c.mu.Lock()
		delete(c.wakeups, wake)
		c.mu.Unlock()
	})

	if !opts.Live {
		_, err := c.deliver(feedCtx, f, opts, since)
		stop()
		if err != nil {
			f.Cancel()
			return nil, err
		}
		f.Finish()
		return f, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		f.Cancel()
		stop()
		return nil, docstore.ErrClosed
	}
	c.wakeups[wake] = struct{}{}
	c.feeds.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.feeds.Done()
		defer stop()
		c.poll(feedCtx, f, opts, since, wake)
	}()
	return f, nil
}

// poll delivers new rows until ctx is done or the feed is cancelled.
func (c *Connector) poll(ctx context.Context, f *docstore.Feed, opts docstore.ChangesOptions, since uint64, wake <-chan struct{}) {
	ticker := time.NewTicker(c.opts.poll)
	defer ticker.Stop()
	backoff := lifecycle.NewBackoff(c.opts.poll, 10*c.opts.poll)

	for {
		next, err := c.deliver(ctx, f, opts, since)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("change feed poll failed", log.Err(err), log.Duration("retry_in", backoff.Current()))
			if backoff.Wait(ctx) != nil {
				return
			}
			continue
		}
		backoff.Reset()
		since = next

		select {
		case <-ctx.Done():
			return
		case <-f.Done():
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}

// deliver offers every document written after since and returns the
// highest seq seen.
func (c *Connector) deliver(ctx context.Context, f *docstore.Feed, opts docstore.ChangesOptions, since uint64) (uint64, error) {
	query := `SELECT id, rev, origin, state, seq FROM documents WHERE seq > ?`
	args := []any{since}
	if len(opts.DocIDs) > 0 {
		query += ` AND id IN (?` + strings.Repeat(`, ?`, len(opts.DocIDs)-1) + `)`
		for _, id := range opts.DocIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY seq`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return since, fmt.Errorf("changes: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc   docstore.Document
			state []byte
			seq   uint64
		)
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Origin, &state, &seq); err != nil {
			return since, fmt.Errorf("changes: scan: %w", err)
		}
		doc.State = state
		f.Offer(docstore.Change{Seq: seq, ID: doc.ID, Rev: doc.Rev, Doc: &doc})
		since = seq
	}
	if err := rows.Err(); err != nil {
		return since, fmt.Errorf("changes: rows: %w", err)
	}
	return since, nil
}
