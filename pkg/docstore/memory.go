package docstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Connector. It is safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]memoryEntry
	seq   uint64
	feeds map[*Feed]struct{}
}

type memoryEntry struct {
	doc Document
	seq uint64
}

// NewMemory returns an empty in-memory connector.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]memoryEntry),
		feeds: make(map[*Feed]struct{}),
	}
}

// Get returns a copy of the stored document.
func (m *Memory) Get(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.docs[id]
	if !ok {
		return Document{}, NotFound(id)
	}
	return e.doc.Clone(), nil
}

// Put stores doc if its revision is current and notifies change feeds.
func (m *Memory) Put(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.docs[doc.ID]
	if err := CheckRevision(doc, cur.doc.Rev, exists); err != nil {
		return "", err
	}

	stored := doc.Clone()
	stored.Rev = NextRev(cur.doc.Rev)
	m.seq++
	m.docs[doc.ID] = memoryEntry{doc: stored, seq: m.seq}

	change := Change{Seq: m.seq, ID: stored.ID, Rev: stored.Rev, Doc: &stored}
	for f := range m.feeds {
		f.Offer(change)
	}
	return stored.Rev, nil
}

// Changes opens a change feed. Without SinceNow the current documents are
// delivered first, in write order.
func (m *Memory) Changes(ctx context.Context, opts ChangesOptions, fn func(Change)) (Subscription, error) {
	var f *Feed
	f = NewFeed(ctx, opts, fn, func() {
		m.mu.Lock()
		delete(m.feeds, f)
		m.mu.Unlock()
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if !opts.SinceNow {
		for _, c := range m.backlog() {
			f.Offer(c)
		}
	}
	if !opts.Live {
		f.Finish()
		return f, nil
	}
	if f.Closed() {
		return f, nil
	}
	m.feeds[f] = struct{}{}
	return f, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// backlog must be called with mu held.
func (m *Memory) backlog() []Change {
	out := make([]Change, 0, len(m.docs))
	for _, e := range m.docs {
		d := e.doc
		out = append(out, Change{Seq: e.seq, ID: d.ID, Rev: d.Rev, Doc: &d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
