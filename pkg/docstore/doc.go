// Package docstore defines the document database capability that slicesync
// persists state slices into.
//
// A Connector reads and writes whole documents addressed by id and offers a
// change feed. Every write must carry the latest known revision; stale
// writes fail with ErrConflict. Reads of absent documents fail with
// ErrNotFound.
//
// # Change feeds
//
// Changes opens a subscription that calls back once per matching document
// write. Callbacks for one subscription are delivered sequentially, in write
// order, from a goroutine owned by the subscription. Cancel stops delivery
// without waiting for an in-progress callback to return.
//
// # Implementations
//
// Memory is an in-process connector suitable for tests and single-process
// use. The sqlite and fs adapters under internal/adapters provide durable
// connectors.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package docstore
