package container

import (
	"fmt"
	"sort"
	"sync"
)

// Enhancer runs once after a Store has been created and initialized.
// Returning an error makes New fail.
type Enhancer func(s *Store) error

// Option configures a Store.
type Option func(*options)

type options struct {
	initial   any
	enhancers []Enhancer
}

// WithInitialState seeds the store's state before the Init action.
func WithInitialState(state any) Option {
	return func(o *options) {
		o.initial = state
	}
}

// WithEnhancer adds an enhancer. Enhancers run in the order given.
func WithEnhancer(e Enhancer) Option {
	return func(o *options) {
		o.enhancers = append(o.enhancers, e)
	}
}

// Store holds application state.
type Store struct {
	reducer Reducer

	mu    sync.Mutex // serializes dispatch
	state any

	lmu       sync.Mutex
	listeners map[int]func()
	nextID    int
}

// New creates a Store, dispatches Init, then runs enhancers.
func New(reducer Reducer, opts ...Option) (*Store, error) {
	if reducer == nil {
		return nil, fmt.Errorf("container: nil reducer")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		reducer:   reducer,
		state:     o.initial,
		listeners: make(map[int]func()),
	}
	s.Dispatch(Init)

	for _, e := range o.enhancers {
		if err := e(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dispatch runs the reducer with action and notifies subscribers.
// It returns the action.
func (s *Store) Dispatch(action Action) Action {
	s.mu.Lock()
	s.state = s.reducer(s.state, action)
	s.mu.Unlock()

	s.lmu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return action
}

// State returns the current state.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every dispatch. The returned
// function removes it.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}
