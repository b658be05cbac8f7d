// Package slicesync keeps named slices of container state in sync with a
// document database.
//
// Each slice reducer is wrapped with Wrap. The wrapper passes ordinary
// actions to the inner reducer and, once the slice has been loaded from
// storage, enqueues every state that differs from the previous one on a
// per-key save queue. A live change feed per slice brings foreign writes
// (replication, other processes, manual edits) back into the container as
// SetSliceState actions, while writes stamped with the registry's own
// origin tag are ignored.
//
// # Wiring
//
// A Registry is the capability owned by one state container: it holds the
// slice registrations, the initialized map used for readiness, the save
// queue and the global options.
//
//	reg := slicesync.NewRegistry(slicesync.WithConnector(db))
//	root := container.Combine(map[string]container.Reducer{
//	    "counter": slicesync.Wrap("counter", counterReducer,
//	        slicesync.WithSliceCodec(slicesync.JSONCodec[Counter]())),
//	})
//	store, err := container.New(root, container.WithEnhancer(reg.Enhancer()))
//
// The enhancer dispatches Bootstrap right after the store is created.
// Configuration errors (no connector, duplicate slice names, a wrapper or
// registry already bound to another store) make container.New fail.
//
// # Control actions
//
//   - Bootstrap binds slices to the registry and loads them.
//   - Reinit reloads all slices, or one slice by name (Registry.Reinit).
//   - SetSliceState replaces a slice's state with data read from storage.
//     It is emitted by the loader and the change feed.
//   - Pause and Resume (PauseSaving, ResumeSaving) suspend persistence.
//     Resume writes the in-memory state if it drifted while paused.
//
// # Threading
//
// Reducers run under the container's dispatch lock. Storage I/O, the
// OnInit, OnSave and OnReady hooks and connector factories run on
// background goroutines and may dispatch. OnUpdate runs inside the reducer
// and must not dispatch synchronously.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package slicesync
