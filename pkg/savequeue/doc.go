// Package savequeue serializes document writes per key.
//
// At most one write per key is in flight at any time. Requests that arrive
// while a write is in flight are parked in a single pending slot; a newer
// request replaces an older parked one, so after the in-flight write settles
// only the latest requested state is written. Every write stamps the
// queue's origin tag on the document so change-feed listeners can tell
// their own writes from foreign ones.
//
// # Usage
//
//	q := savequeue.New(origin, savequeue.WithLogger(logger))
//	done := q.Save(ctx, conn, "counter", json.RawMessage(`{"x":6}`))
//	// done yields the write's result; it is already closed if the
//	// request was parked behind an in-flight write.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package savequeue
