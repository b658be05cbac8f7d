// Package container is a small state container that hosts reducers.
//
// A Store holds one state value, replaced on every Dispatch by running the
// root Reducer. Dispatches are serialized; a reducer must not call
// Dispatch on its own store. Enhancers run once after the store is built
// and may dispatch.
//
// Combine builds a root reducer from named slice reducers, producing a
// map[string]any state.
package container
