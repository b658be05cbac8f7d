package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers changes delivered by a feed.
type collector struct {
	mu      sync.Mutex
	changes []Change
}

func (c *collector) add(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ch)
}

func (c *collector) snapshot() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.changes...)
}

func (c *collector) waitFor(t *testing.T, n int) []Change {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return c.snapshot()
}

func TestMemory_GetNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestMemory_PutAssignsRevisions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rev1, err := m.Put(ctx, Document{ID: "counter", State: json.RawMessage(`{"x":5}`)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), RevGeneration(rev1))

	doc, err := m.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, rev1, doc.Rev)
	assert.JSONEq(t, `{"x":5}`, string(doc.State))

	doc.State = json.RawMessage(`{"x":6}`)
	rev2, err := m.Put(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), RevGeneration(rev2))
}

func TestMemory_PutStaleRevisionConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Put(ctx, Document{ID: "a", State: json.RawMessage(`1`)})
	require.NoError(t, err)

	_, err = m.Put(ctx, Document{ID: "a", State: json.RawMessage(`2`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "a", ce.ID)

	_, err = m.Put(ctx, Document{ID: "b", Rev: "3-abc"})
	assert.True(t, errors.Is(err, ErrConflict), "new document with a revision must conflict")
}

func TestMemory_ChangesLiveFiltered(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Put(ctx, Document{ID: "a", State: json.RawMessage(`0`)})
	require.NoError(t, err)

	var got collector
	sub, err := m.Changes(ctx, ChangesOptions{Live: true, IncludeDocs: true, SinceNow: true, DocIDs: []string{"a"}}, got.add)
	require.NoError(t, err)
	defer sub.Cancel()

	a, err := m.Get(ctx, "a")
	require.NoError(t, err)
	a.State = json.RawMessage(`1`)
	_, err = m.Put(ctx, a)
	require.NoError(t, err)
	_, err = m.Put(ctx, Document{ID: "b", State: json.RawMessage(`1`)})
	require.NoError(t, err)

	changes := got.waitFor(t, 1)
	require.Len(t, changes, 1)
	assert.Equal(t, "a", changes[0].ID)
	require.NotNil(t, changes[0].Doc)
	assert.JSONEq(t, `1`, string(changes[0].Doc.State))
}

func TestMemory_ChangesBacklogNotLive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, id := range []string{"x", "y", "z"} {
		_, err := m.Put(ctx, Document{ID: id, State: json.RawMessage(`true`)})
		require.NoError(t, err)
	}

	var got collector
	sub, err := m.Changes(ctx, ChangesOptions{}, got.add)
	require.NoError(t, err)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("non-live feed did not finish")
	}

	changes := got.snapshot()
	require.Len(t, changes, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{changes[0].ID, changes[1].ID, changes[2].ID})
	assert.Nil(t, changes[0].Doc, "documents are only attached with IncludeDocs")
}

func TestMemory_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got collector
	sub, err := m.Changes(ctx, ChangesOptions{Live: true, SinceNow: true}, got.add)
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	<-sub.Done()

	_, err = m.Put(ctx, Document{ID: "a"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, got.snapshot())
}

func TestMemory_ContextCancelEndsFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	sub, err := m.Changes(ctx, ChangesOptions{Live: true}, func(Change) {})
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed still running after context cancellation")
	}
}

func TestDocument_HasState(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{"", false},
		{"null", false},
		{" null ", false},
		{`{"x":1}`, true},
		{`0`, true},
	}
	for _, tt := range tests {
		d := Document{ID: "a", State: json.RawMessage(tt.state)}
		if got := d.HasState(); got != tt.want {
			t.Errorf("HasState(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRevGeneration(t *testing.T) {
	tests := []struct {
		rev  string
		want uint64
	}{
		{"", 0},
		{"garbage", 0},
		{"x-1", 0},
		{"7-abc", 7},
	}
	for _, tt := range tests {
		if got := RevGeneration(tt.rev); got != tt.want {
			t.Errorf("RevGeneration(%q) = %d, want %d", tt.rev, got, tt.want)
		}
	}
	if got := RevGeneration(NextRev("41-zzz")); got != 42 {
		t.Errorf("NextRev generation = %d, want 42", got)
	}
}
