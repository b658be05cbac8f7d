package savequeue

import (
	"time"

	"github.com/bft-labs/slicesync/pkg/log"
)

// Observer receives write lifecycle notifications. Implementations must be
// safe for concurrent use.
type Observer interface {
	// WriteStarted is called when a write for key begins.
	WriteStarted(key string)

	// WriteFinished is called when a write for key settles. err is nil on success.
	WriteFinished(key string, elapsed time.Duration, err error)

	// Superseded is called when a parked state is replaced by a newer one
	// before it was written.
	Superseded(key string)
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	logger   log.Logger
	observer Observer
}

func defaultOptions() options {
	return options{
		logger:   log.NoopLogger{},
		observer: noopObserver{},
	}
}

// WithLogger sets the logger used to report failed writes.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// WithObserver sets an Observer, e.g. for metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

type noopObserver struct{}

func (noopObserver) WriteStarted(string)                       {}
func (noopObserver) WriteFinished(string, time.Duration, error) {}
func (noopObserver) Superseded(string)                          {}
