// Package fs implements docstore.Connector on a directory of JSON files,
// one file per document.
//
// Writes go to a temporary file that is renamed over the document, so
// readers never see a partial document. Live change feeds watch the
// directory with fsnotify and pick up writes made by other processes;
// writes made through the same Connector are delivered directly.
// Revision checks are serialized within one Connector only: two processes
// writing the same document at the same instant can both succeed.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/log"
)

const docExt = ".json"

// DefaultDebounce is how long a live feed waits after a file event before
// reading the file.
const DefaultDebounce = 20 * time.Millisecond

// Option configures a Connector.
type Option func(*options)

type options struct {
	debounce time.Duration
	logger   log.Logger
}

// WithDebounce sets the delay between a file event and reading the file.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// Connector stores documents as files under a directory.
type Connector struct {
	dir    string
	opts   options
	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // serializes writes and guards the fields below
	seq    uint64
	closed bool
	feeds  map[*watchFeed]struct{}
	wg     sync.WaitGroup
}

// Open returns a connector for dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Connector, error) {
	o := options{debounce: DefaultDebounce, logger: log.NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Connector{
		dir:    dir,
		opts:   o,
		logger: o.logger,
		ctx:    ctx,
		cancel: cancel,
		feeds:  make(map[*watchFeed]struct{}),
	}, nil
}

// Dir returns the document directory.
func (c *Connector) Dir() string {
	return c.dir
}

// Close stops every change feed.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

// Get returns the document stored under id.
func (c *Connector) Get(ctx context.Context, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	if c.isClosed() {
		return docstore.Document{}, docstore.ErrClosed
	}
	return c.read(id)
}

// Put writes doc if doc.Rev matches the stored revision.
func (c *Connector) Put(ctx context.Context, doc docstore.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", docstore.ErrClosed
	}

	cur, err := c.read(doc.ID)
	exists := err == nil
	if err != nil && !docstore.IsNotFound(err) {
		return "", fmt.Errorf("put %s: %w", doc.ID, err)
	}
	if err := docstore.CheckRevision(doc, cur.Rev, exists); err != nil {
		return "", err
	}

	stored := doc.Clone()
	stored.Rev = docstore.NextRev(cur.Rev)
	if !stored.HasState() {
		stored.State = nil
	}
	if err := c.write(stored); err != nil {
		return "", fmt.Errorf("put %s: %w", doc.ID, err)
	}

	c.seq++
	change := docstore.Change{Seq: c.seq, ID: stored.ID, Rev: stored.Rev, Doc: &stored}
	for f := range c.feeds {
		f.offer(change)
	}
	c.logger.Debug("document written", log.DocID(stored.ID), log.Rev(stored.Rev))
	return stored.Rev, nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connector) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Connector) path(id string) string {
	return filepath.Join(c.dir, url.PathEscape(id)+docExt)
}

// idFromFile maps a file name back to a document id. Temporary and
// foreign files are rejected.
func idFromFile(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, docExt) {
		return "", false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(base, docExt))
	if err != nil {
		return "", false
	}
	return id, true
}

func (c *Connector) read(id string) (docstore.Document, error) {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return docstore.Document{}, docstore.NotFound(id)
		}
		return docstore.Document{}, fmt.Errorf("read %s: %w", id, err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s: %w", id, err)
	}
	doc.ID = id
	return doc, nil
}

// write persists doc atomically: temp file, then rename.
func (c *Connector) write(doc docstore.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := c.path(doc.ID)
	tmp := filepath.Join(c.dir, "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// list returns every stored document, oldest modification first.
func (c *Connector) list() ([]docstore.Document, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	type item struct {
		doc docstore.Document
		mod time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		id, ok := idFromFile(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		doc, err := c.read(id)
		if err != nil {
			c.logger.Warn("skipping unreadable document", log.DocID(id), log.Err(err))
			continue
		}
		items = append(items, item{doc: doc, mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].mod.Equal(items[j].mod) {
			return items[i].mod.Before(items[j].mod)
		}
		return items[i].doc.ID < items[j].doc.ID
	})

	docs := make([]docstore.Document, len(items))
	for i, it := range items {
		docs[i] = it.doc
	}
	return docs, nil
}
