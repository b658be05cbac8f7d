package docstore

import (
	"bytes"
	"context"
	"encoding/json"
)

// Document is the durable representation of one state slice.
type Document struct {
	// ID equals the slice name.
	ID string `json:"_id"`

	// Rev is the storage-assigned revision. Empty for documents not yet written.
	Rev string `json:"_rev,omitempty"`

	// Origin identifies the process that wrote the document.
	Origin string `json:"origin,omitempty"`

	// State is the encoded slice state.
	State json.RawMessage `json:"state,omitempty"`
}

// HasState reports whether the document carries a state payload.
// Placeholder documents (no state field, or an explicit null) do not.
func (d Document) HasState() bool {
	s := bytes.TrimSpace(d.State)
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

// Clone returns a copy that shares no memory with d.
func (d Document) Clone() Document {
	if d.State != nil {
		d.State = append(json.RawMessage(nil), d.State...)
	}
	return d
}

// Change describes one document write observed on a change feed.
type Change struct {
	// Seq orders changes within one connector.
	Seq uint64

	// ID is the changed document's id.
	ID string

	// Rev is the revision produced by the write.
	Rev string

	// Doc is the full document, present when ChangesOptions.IncludeDocs is set.
	Doc *Document
}

// ChangesOptions filters and shapes a change feed.
type ChangesOptions struct {
	// Live keeps the subscription open for future writes. Without it, the
	// feed delivers the backlog and ends.
	Live bool

	// IncludeDocs attaches the full document to every change.
	IncludeDocs bool

	// SinceNow skips the backlog of existing documents.
	SinceNow bool

	// DocIDs restricts the feed to the given ids. Empty means all documents.
	DocIDs []string
}

// Subscription is an open change feed.
type Subscription interface {
	// Cancel stops delivery. Safe to call more than once.
	Cancel()

	// Done is closed once the delivery goroutine has exited.
	Done() <-chan struct{}
}

// Connector is the document database capability consumed by slicesync.
type Connector interface {
	// Get returns the document with the given id, or an error satisfying
	// errors.Is(err, ErrNotFound).
	Get(ctx context.Context, id string) (Document, error)

	// Put writes doc and returns its new revision. doc.Rev must equal the
	// stored revision (empty for new documents) or the write fails with an
	// error satisfying errors.Is(err, ErrConflict).
	Put(ctx context.Context, doc Document) (string, error)

	// Changes opens a change feed that calls fn for every matching change.
	Changes(ctx context.Context, opts ChangesOptions, fn func(Change)) (Subscription, error)
}
