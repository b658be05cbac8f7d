package slicesync

import (
	"context"

	"github.com/google/uuid"

	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/log"
	"github.com/bft-labs/slicesync/pkg/savequeue"
)

// ConnectorFactory resolves the connector for a slice. It is called from
// the slice's load goroutine on every (re)initialization and may inspect
// the host.
type ConnectorFactory func(slice string, host Host) (docstore.Connector, error)

// processOrigin tags every write made by this process unless a registry
// overrides it.
var processOrigin = uuid.NewString()

// ProcessOrigin returns the origin tag shared by registries in this
// process that do not set WithOriginTag.
func ProcessOrigin() string {
	return processOrigin
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	ctx       context.Context
	connector docstore.Connector
	factory   ConnectorFactory
	codec     Codec
	hooks     Hooks
	logger    log.Logger
	origin    string
	observer  savequeue.Observer
}

func defaultOptions() options {
	return options{
		ctx:    context.Background(),
		codec:  DefaultCodec(),
		logger: log.NoopLogger{},
		origin: processOrigin,
	}
}

// WithConnector sets the connector used by slices without their own.
func WithConnector(conn docstore.Connector) Option {
	return func(o *options) {
		o.connector = conn
	}
}

// WithConnectorFactory sets a factory used by slices without their own
// connector. It takes precedence over WithConnector.
func WithConnectorFactory(f ConnectorFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithCodec sets the codec used by slices without their own.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c.withDefaults()
	}
}

// WithHooks sets registry-level hooks. They fire for every slice.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// WithOriginTag overrides the process origin tag. Two registries sharing a
// database must use different tags to see each other's writes.
func WithOriginTag(origin string) Option {
	return func(o *options) {
		if origin != "" {
			o.origin = origin
		}
	}
}

// WithObserver forwards save queue events, e.g. to metrics.
func WithObserver(obs savequeue.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithContext sets the parent context for storage I/O and change feeds.
// Cancelling it has the same effect as Registry.Close.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// SliceOption configures one wrapped slice. Slice options override the
// registry's.
type SliceOption func(*sliceOptions)

type sliceOptions struct {
	connector docstore.Connector
	factory   ConnectorFactory
	codec     Codec
	hooks     Hooks
}

// WithSliceConnector sets the slice's connector.
func WithSliceConnector(conn docstore.Connector) SliceOption {
	return func(o *sliceOptions) {
		o.connector = conn
	}
}

// WithSliceConnectorFactory sets the slice's connector factory.
func WithSliceConnectorFactory(f ConnectorFactory) SliceOption {
	return func(o *sliceOptions) {
		o.factory = f
	}
}

// WithSliceCodec sets the slice's codec.
func WithSliceCodec(c Codec) SliceOption {
	return func(o *sliceOptions) {
		o.codec = c.withDefaults()
	}
}

// WithSliceHooks sets the slice's hooks.
func WithSliceHooks(h Hooks) SliceOption {
	return func(o *sliceOptions) {
		o.hooks = h
	}
}
