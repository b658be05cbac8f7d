package slicesync

import (
	"context"
	"sync"

	"github.com/bft-labs/slicesync/pkg/container"
	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/log"
)

// slice is the persistence state behind one wrapped reducer.
//
// Reducer calls are serialized by the host; mu guards the fields that the
// loader and change-feed goroutines also touch. Lock order is slice.mu
// before Registry.mu.
type slice struct {
	name    string
	reducer container.Reducer
	opts    sliceOptions

	mu          sync.Mutex
	reg         *Registry
	host        Host
	conn        docstore.Connector
	initial     any
	current     any
	persisted   any
	rev         string
	initialized bool
	paused      bool
	gen         uint64
	sub         docstore.Subscription
}

// Wrap returns a reducer that persists the slice produced by reducer under
// the document id name. Ordinary actions reach reducer unchanged.
func Wrap(name string, reducer container.Reducer, opts ...SliceOption) container.Reducer {
	s := &slice{name: name, reducer: reducer}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s.reduce
}

func (s *slice) reduce(state any, action container.Action) any {
	switch a := action.(type) {
	case Bootstrap:
		return s.bootstrap(state, a)
	case Reinit:
		if a.Slice != "" && a.Slice != s.name {
			return state
		}
		return s.reinit(state)
	case SetSliceState:
		if a.Slice == s.name && a.State != nil {
			return s.setState(a)
		}
		return s.reduceDefault(state, action)
	case Pause:
		s.mu.Lock()
		s.paused = true
		s.mu.Unlock()
		return s.reduceDefault(state, action)
	case Resume:
		s.mu.Lock()
		s.paused = false
		s.mu.Unlock()
		next := s.reduceDefault(state, action)
		s.saveIfDrifted()
		return next
	default:
		return s.reduceDefault(state, action)
	}
}

// bootstrap binds the slice to the registry and then reinitializes it.
func (s *slice) bootstrap(state any, a Bootstrap) any {
	reg := a.Registry
	if reg == nil {
		return state
	}

	s.mu.Lock()
	bound := s.reg != nil && s.reg != reg
	s.mu.Unlock()
	if bound {
		reg.fail(errAlreadyBound(s.name, "slice"))
		return state
	}
	if err := reg.register(s); err != nil {
		reg.fail(err)
		return state
	}
	if !s.hasConnector(reg) {
		reg.fail(errNoConnector(s.name))
		return state
	}

	s.mu.Lock()
	s.reg = reg
	s.host = a.Host
	s.mu.Unlock()

	return s.reinit(state)
}

// reinit cancels the current change feed, marks the slice uninitialized,
// starts a fresh load and resets the slice to its initial state.
func (s *slice) reinit(state any) any {
	s.mu.Lock()
	if s.reg == nil {
		s.mu.Unlock()
		return state
	}
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.gen++
	gen := s.gen
	s.initialized = false
	s.reg.setInitialized(s.name, false)
	if s.initial == nil {
		s.initial = state
	}
	initial := s.initial
	s.current = initial
	reg := s.reg
	s.mu.Unlock()

	reg.spawn(func() { s.load(reg.ctx, gen, initial) })
	return initial
}

// setState adopts a state read from storage. The inner reducer gets the
// chance to normalize it; nothing is written back.
func (s *slice) setState(a SetSliceState) any {
	next := s.reducer(a.State, a)

	s.mu.Lock()
	s.current = next
	s.persisted = next
	s.rev = a.Rev
	host := s.host
	reg := s.reg
	s.mu.Unlock()

	s.opts.hooks.update(s.name, next, host)
	if reg != nil {
		reg.opts.hooks.update(s.name, next, host)
	}
	return next
}

// reduceDefault runs the inner reducer and saves the result when the slice
// is initialized, not paused and the state changed.
func (s *slice) reduceDefault(state any, action container.Action) any {
	next := s.reducer(state, action)

	s.mu.Lock()
	if s.initial == nil && next != nil {
		s.initial = next
	}
	prev := s.current
	s.current = next
	shouldSave := s.reg != nil && s.initialized && !s.paused && !s.codec().Equal(next, prev)
	s.mu.Unlock()

	if shouldSave {
		s.save(next)
	}
	return next
}

// saveIfDrifted writes the current state if it differs from what storage
// is known to hold.
func (s *slice) saveIfDrifted() {
	s.mu.Lock()
	drifted := s.reg != nil && s.initialized && !s.paused && !s.codec().Equal(s.current, s.persisted)
	cur := s.current
	s.mu.Unlock()

	if drifted {
		s.save(cur)
	}
}

// save encodes state and hands it to the registry's save queue. OnSave
// hooks run once the queue reports the write settled.
func (s *slice) save(state any) {
	s.mu.Lock()
	reg, host, conn := s.reg, s.host, s.conn
	codec := s.codec()
	s.mu.Unlock()
	if reg == nil || conn == nil {
		return
	}

	raw, err := codec.Encode(state)
	if err != nil {
		reg.logger.Error("encode failed", log.Slice(s.name), log.Err(err))
		return
	}

	s.mu.Lock()
	s.persisted = state
	s.mu.Unlock()

	done := reg.queue.Save(reg.ctx, conn, s.name, raw)
	reg.spawn(func() {
		if err := <-done; err != nil {
			return
		}
		s.fireSave(reg, host, state)
	})
}

func (s *slice) fireSave(reg *Registry, host Host, state any) {
	s.opts.hooks.save(s.name, state, host)
	reg.opts.hooks.save(s.name, state, host)
}

// load reads the slice document, or creates it from initial, then opens
// the change feed and marks the slice initialized. A newer reinit makes
// gen stale, at which point the load gives up quietly.
func (s *slice) load(ctx context.Context, gen uint64, initial any) {
	s.mu.Lock()
	reg, host := s.reg, s.host
	s.mu.Unlock()

	conn, err := s.resolveConnector(reg, host)
	if err != nil {
		reg.logger.Error("resolve connector failed", log.Slice(s.name), log.Err(err))
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.conn = conn
	codec := s.codec()
	s.mu.Unlock()

	doc, err := conn.Get(ctx, s.name)
	switch {
	case err == nil && doc.HasState():
		state, derr := codec.Decode(doc.State)
		if derr != nil {
			reg.logger.Error("load failed", log.Slice(s.name), log.Err(derr))
			return
		}
		if s.stale(gen) {
			return
		}
		host.Dispatch(SetSliceState{Slice: s.name, State: state, Rev: doc.Rev})

	case err == nil || docstore.IsNotFound(err):
		// Absent or placeholder document: store the initial state.
		raw, eerr := codec.Encode(initial)
		if eerr != nil {
			reg.logger.Error("load failed", log.Slice(s.name), log.Err(eerr))
			return
		}
		s.mu.Lock()
		s.persisted = initial
		s.mu.Unlock()
		if serr := <-reg.queue.Save(ctx, conn, s.name, raw); serr == nil {
			s.fireSave(reg, host, initial)
		}

	default:
		reg.logger.Error("load failed", log.Slice(s.name), log.Err(err))
		return
	}

	sub, err := conn.Changes(ctx, docstore.ChangesOptions{
		Live:        true,
		IncludeDocs: true,
		SinceNow:    true,
		DocIDs:      []string{s.name},
	}, func(c docstore.Change) { s.onChange(gen, c) })
	if err != nil {
		reg.logger.Error("open change feed failed", log.Slice(s.name), log.Err(err))
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.sub = sub
	s.initialized = true
	becameReady := reg.setInitialized(s.name, true)
	current := s.current
	s.mu.Unlock()

	reg.logger.Debug("slice initialized", log.Slice(s.name))
	s.opts.hooks.init(s.name, current, host)
	reg.opts.hooks.init(s.name, current, host)
	if becameReady {
		reg.fireReady(host)
	}
	// Actions dispatched while loading were not saved.
	s.saveIfDrifted()
}

// onChange merges a change-feed notification. Our own writes are ignored;
// a document without state gets the in-memory state written back; a
// foreign state that differs from memory is dispatched.
func (s *slice) onChange(gen uint64, c docstore.Change) {
	if c.Doc == nil || s.stale(gen) {
		return
	}

	s.mu.Lock()
	reg, host := s.reg, s.host
	current, paused := s.current, s.paused
	codec := s.codec()
	s.mu.Unlock()

	if c.Doc.Origin == reg.Origin() {
		return
	}

	if !c.Doc.HasState() {
		if paused {
			return
		}
		reg.logger.Info("document lost its state, writing it back", log.Slice(s.name), log.Rev(c.Rev))
		s.save(current)
		return
	}

	state, err := codec.Decode(c.Doc.State)
	if err != nil {
		reg.logger.Warn("ignoring undecodable change", log.Slice(s.name), log.Rev(c.Rev), log.Err(err))
		return
	}
	if codec.Equal(state, current) {
		return
	}

	reg.logger.Debug("applying foreign change", log.Slice(s.name), log.Rev(c.Rev), log.String("origin", c.Doc.Origin))
	host.Dispatch(SetSliceState{Slice: s.name, State: state, Rev: c.Rev})
}

// stop cancels the change feed and invalidates any running load.
func (s *slice) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}

func (s *slice) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// codec must be called with mu held.
func (s *slice) codec() Codec {
	if !s.opts.codec.isZero() {
		return s.opts.codec
	}
	if s.reg != nil {
		return s.reg.opts.codec
	}
	return DefaultCodec()
}

func (s *slice) hasConnector(reg *Registry) bool {
	return s.opts.connector != nil || s.opts.factory != nil ||
		reg.opts.connector != nil || reg.opts.factory != nil
}

// resolveConnector prefers the slice's own connector or factory over the
// registry's; a factory wins over a static connector at the same level.
func (s *slice) resolveConnector(reg *Registry, host Host) (docstore.Connector, error) {
	switch {
	case s.opts.factory != nil:
		return s.opts.factory(s.name, host)
	case s.opts.connector != nil:
		return s.opts.connector, nil
	case reg.opts.factory != nil:
		return reg.opts.factory(s.name, host)
	case reg.opts.connector != nil:
		return reg.opts.connector, nil
	}
	return nil, errNoConnector(s.name)
}
