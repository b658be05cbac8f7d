package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/slicesync/pkg/docstore"
)

func openTest(t *testing.T, path string) *Connector {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "docs.db")
	}
	c, err := Open(path, WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type recorder struct {
	mu      sync.Mutex
	changes []docstore.Change
}

func (r *recorder) add(c docstore.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) snapshot() []docstore.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]docstore.Change(nil), r.changes...)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	for i := 0; i < 3; i++ {
		c, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, c.Close())
	}

	c := openTest(t, path)
	var version int
	require.NoError(t, c.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestConnector_GetMissing(t *testing.T) {
	c := openTest(t, "")
	_, err := c.Get(context.Background(), "nope")
	assert.True(t, docstore.IsNotFound(err))
}

func TestConnector_PutAndGet(t *testing.T) {
	c := openTest(t, "")
	ctx := context.Background()

	rev1, err := c.Put(ctx, docstore.Document{ID: "counter", Origin: "a", State: json.RawMessage(`{"x":5}`)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), docstore.RevGeneration(rev1))

	doc, err := c.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, rev1, doc.Rev)
	assert.Equal(t, "a", doc.Origin)
	assert.JSONEq(t, `{"x":5}`, string(doc.State))

	doc.State = json.RawMessage(`{"x":6}`)
	rev2, err := c.Put(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), docstore.RevGeneration(rev2))
}

func TestConnector_StaleRevisionConflicts(t *testing.T) {
	c := openTest(t, "")
	ctx := context.Background()

	rev, err := c.Put(ctx, docstore.Document{ID: "counter", State: json.RawMessage(`1`)})
	require.NoError(t, err)
	_, err = c.Put(ctx, docstore.Document{ID: "counter", Rev: rev, State: json.RawMessage(`2`)})
	require.NoError(t, err)

	_, err = c.Put(ctx, docstore.Document{ID: "counter", Rev: rev, State: json.RawMessage(`3`)})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	_, err = c.Put(ctx, docstore.Document{ID: "counter", State: json.RawMessage(`3`)})
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func TestConnector_PlaceholderDocument(t *testing.T) {
	c := openTest(t, "")
	ctx := context.Background()

	_, err := c.Put(ctx, docstore.Document{ID: "counter", State: json.RawMessage(`null`)})
	require.NoError(t, err)

	doc, err := c.Get(ctx, "counter")
	require.NoError(t, err)
	assert.False(t, doc.HasState())
}

func TestConnector_NonLiveBacklog(t *testing.T) {
	c := openTest(t, "")
	ctx := context.Background()
	for _, id := range []string{"a", "b", "a"} {
		doc, err := c.Get(ctx, id)
		if err != nil {
			doc = docstore.Document{ID: id}
		}
		doc.State = json.RawMessage(`{}`)
		_, err = c.Put(ctx, doc)
		require.NoError(t, err)
	}

	var rec recorder
	sub, err := c.Changes(ctx, docstore.ChangesOptions{IncludeDocs: true}, rec.add)
	require.NoError(t, err)
	<-sub.Done()

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, uint64(2), docstore.RevGeneration(got[1].Rev))
}

func TestConnector_LiveFeedFromSecondConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	reader := openTest(t, path)
	writer := openTest(t, path)
	ctx := context.Background()

	_, err := writer.Put(ctx, docstore.Document{ID: "old", State: json.RawMessage(`1`)})
	require.NoError(t, err)

	var rec recorder
	sub, err := reader.Changes(ctx, docstore.ChangesOptions{
		Live:        true,
		IncludeDocs: true,
		SinceNow:    true,
		DocIDs:      []string{"counter"},
	}, rec.add)
	require.NoError(t, err)
	defer sub.Cancel()

	_, err = writer.Put(ctx, docstore.Document{ID: "other", State: json.RawMessage(`1`)})
	require.NoError(t, err)
	_, err = writer.Put(ctx, docstore.Document{ID: "counter", Origin: "w", State: json.RawMessage(`{"x":7}`)})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	got := rec.snapshot()[0]
	assert.Equal(t, "counter", got.ID)
	require.NotNil(t, got.Doc)
	assert.Equal(t, "w", got.Doc.Origin)
	assert.JSONEq(t, `{"x":7}`, string(got.Doc.State))
}

func TestConnector_CancelStopsFeed(t *testing.T) {
	c := openTest(t, "")
	ctx := context.Background()

	var rec recorder
	sub, err := c.Changes(ctx, docstore.ChangesOptions{Live: true, SinceNow: true}, rec.add)
	require.NoError(t, err)
	sub.Cancel()
	<-sub.Done()

	_, err = c.Put(ctx, docstore.Document{ID: "a", State: json.RawMessage(`1`)})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestConnector_Closed(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Get(context.Background(), "a")
	assert.ErrorIs(t, err, docstore.ErrClosed)
	_, err = c.Put(context.Background(), docstore.Document{ID: "a"})
	assert.ErrorIs(t, err, docstore.ErrClosed)
	_, err = c.Changes(context.Background(), docstore.ChangesOptions{Live: true}, func(docstore.Change) {})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}
