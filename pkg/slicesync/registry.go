package slicesync

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/slicesync/pkg/container"
	"github.com/bft-labs/slicesync/pkg/log"
	"github.com/bft-labs/slicesync/pkg/savequeue"
)

// Registry is owned by exactly one state container. It tracks which slices
// exist and which are initialized, owns the save queue and carries the
// global options handed to slices at Bootstrap.
type Registry struct {
	opts   options
	logger log.Logger
	queue  *savequeue.Queue

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	host        Host
	slices      map[string]*slice
	initialized map[string]bool
	ready       bool
	closed      bool
	errs        *multierror.Error
	workers     sync.WaitGroup
}

// NewRegistry creates a registry. Attach it to a store with Enhancer or
// Attach.
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	qopts := []savequeue.Option{savequeue.WithLogger(o.logger)}
	if o.observer != nil {
		qopts = append(qopts, savequeue.WithObserver(o.observer))
	}

	ctx, cancel := context.WithCancel(o.ctx)
	return &Registry{
		opts:        o,
		logger:      o.logger,
		queue:       savequeue.New(o.origin, qopts...),
		ctx:         ctx,
		cancel:      cancel,
		slices:      make(map[string]*slice),
		initialized: make(map[string]bool),
	}
}

// Enhancer returns a container enhancer that attaches the registry to the
// store being created.
func (r *Registry) Enhancer() container.Enhancer {
	return func(s *container.Store) error {
		return r.Attach(s)
	}
}

// Attach binds the registry to host and dispatches Bootstrap. It returns
// every configuration error raised by the slices while bootstrapping.
func (r *Registry) Attach(host Host) error {
	r.mu.Lock()
	if r.host != nil && r.host != host {
		r.mu.Unlock()
		return errAlreadyBound("", "registry")
	}
	r.host = host
	r.mu.Unlock()

	host.Dispatch(Bootstrap{Registry: r, Host: host})
	return r.takeErrors()
}

// Reinit returns an action that reloads the named slice, or every slice
// when name is empty. Unknown names are a configuration error.
func (r *Registry) Reinit(name string) (container.Action, error) {
	if name == "" {
		return Reinit{}, nil
	}
	r.mu.Lock()
	_, ok := r.slices[name]
	r.mu.Unlock()
	if !ok {
		return nil, errUnknownSlice(name)
	}
	return Reinit{Slice: name}, nil
}

// IsSynced reports whether no write is in flight. The answer is sampled
// and may be stale immediately.
func (r *Registry) IsSynced() bool {
	return r.queue.InSync()
}

// Flush waits until no write is in flight or ctx is done.
func (r *Registry) Flush(ctx context.Context) error {
	return r.queue.Flush(ctx)
}

// Ready reports whether every registered slice is initialized.
func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Origin returns the tag stamped on this registry's writes.
func (r *Registry) Origin() string {
	return r.queue.Origin()
}

// Slices returns the registered slice names, sorted.
func (r *Registry) Slices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.slices))
	for name := range r.slices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close cancels every change feed and storage operation and waits for the
// background loaders to exit. Writes already in flight are abandoned.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	slices := make([]*slice, 0, len(r.slices))
	for _, s := range r.slices {
		slices = append(slices, s)
	}
	r.mu.Unlock()

	r.cancel()
	for _, s := range slices {
		s.stop()
	}
	r.workers.Wait()
	return nil
}

// register records s under its name. Registering the same wrapper twice is
// a no-op; a different wrapper with the same name is an error.
func (r *Registry) register(s *slice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.slices[s.name]; ok && existing != s {
		return errDuplicateSlice(s.name)
	}
	r.slices[s.name] = s
	if _, ok := r.initialized[s.name]; !ok {
		r.initialized[s.name] = false
		r.ready = false
	}
	return nil
}

// setInitialized records the slice's state and reports whether the
// registry just became ready.
func (r *Registry) setInitialized(name string, v bool) (becameReady bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized[name] = v
	if !v {
		r.ready = false
		return false
	}
	for _, ok := range r.initialized {
		if !ok {
			return false
		}
	}
	if r.ready {
		return false
	}
	r.ready = true
	return true
}

// fail records a configuration error for Attach to return.
func (r *Registry) fail(err error) {
	r.logger.Error("configuration error", log.Err(err))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = multierror.Append(r.errs, err)
}

func (r *Registry) takeErrors() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.errs.ErrorOrNil()
	r.errs = nil
	return err
}

// spawn runs fn on a tracked goroutine unless the registry is closed.
func (r *Registry) spawn(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		fn()
	}()
	return true
}

func (r *Registry) fireReady(host Host) {
	r.logger.Info("all slices initialized")
	r.opts.hooks.ready(host)
}
