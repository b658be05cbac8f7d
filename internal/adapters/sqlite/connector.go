// Package sqlite implements docstore.Connector on a SQLite database.
//
// Writes are revision-checked inside a transaction and appended to a
// changes log. Live change feeds poll the documents table for rows with a
// higher seq than the last one delivered; writes made through the same
// Connector wake the pollers immediately, writes from other processes are
// picked up on the next poll.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/log"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - no schema
// 1 - documents and changes tables
const currentSchemaVersion = 1

// DefaultPollInterval is how often live feeds look for foreign writes.
const DefaultPollInterval = 250 * time.Millisecond

// Option configures a Connector.
type Option func(*options)

type options struct {
	poll   time.Duration
	logger log.Logger
}

// WithPollInterval sets the live feed poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// Connector is a SQLite-backed docstore.Connector.
type Connector struct {
	db     *sql.DB
	opts   options
	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	wakeups map[chan struct{}]struct{}
	feeds   sync.WaitGroup
}

// Open creates or opens the database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode so pollers can read while a write is in progress
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string, opts ...Option) (*Connector, error) {
	o := options{poll: DefaultPollInterval, logger: log.NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Connector{
		db:      db,
		opts:    o,
		logger:  o.logger,
		ctx:     ctx,
		cancel:  cancel,
		wakeups: make(map[chan struct{}]struct{}),
	}, nil
}

// Close stops every change feed and closes the database.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.feeds.Wait()
	return c.db.Close()
}

// Get returns the stored document with the given id.
func (c *Connector) Get(ctx context.Context, id string) (docstore.Document, error) {
	if c.isClosed() {
		return docstore.Document{}, docstore.ErrClosed
	}

	var (
		doc   = docstore.Document{ID: id}
		state []byte
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT rev, origin, state FROM documents WHERE id = ?`, id,
	).Scan(&doc.Rev, &doc.Origin, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.NotFound(id)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", id, err)
	}
	doc.State = state
	return doc, nil
}

// Put writes doc if doc.Rev matches the stored revision.
func (c *Connector) Put(ctx context.Context, doc docstore.Document) (string, error) {
	if c.isClosed() {
		return "", docstore.ErrClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put %s: begin: %w", doc.ID, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT rev FROM documents WHERE id = ?`, doc.ID).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("put %s: read revision: %w", doc.ID, err)
	}
	if err := docstore.CheckRevision(doc, current, exists); err != nil {
		return "", err
	}

	rev := docstore.NextRev(current)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO changes (id, rev, origin, written_at) VALUES (?, ?, ?, ?)`,
		doc.ID, rev, doc.Origin, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("put %s: append change: %w", doc.ID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("put %s: change seq: %w", doc.ID, err)
	}

	var state []byte
	if doc.HasState() {
		state = doc.State
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, rev, origin, state, seq) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rev = excluded.rev,
			origin = excluded.origin,
			state = excluded.state,
			seq = excluded.seq`,
		doc.ID, rev, doc.Origin, state, seq,
	)
	if err != nil {
		return "", fmt.Errorf("put %s: write document: %w", doc.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("put %s: commit: %w", doc.ID, err)
	}

	c.logger.Debug("document written", log.DocID(doc.ID), log.Rev(rev), log.Uint64("seq", uint64(seq)))
	c.wakeAll()
	return rev, nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// wakeAll nudges every poller after a local write.
func (c *Connector) wakeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.wakeups {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the tables if they don't exist and records the
// schema version. It is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
