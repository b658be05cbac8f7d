// Package slicesync keeps named slices of application state in sync with a
// document store.
//
// Example usage:
//
//	db, err := slicesync.OpenSQLite("state.db", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg := slicesync.NewRegistry(slicesync.WithConnector(db))
//	store, err := container.New(
//	    slicesync.Wrap("counter", counterReducer),
//	    container.WithEnhancer(reg.Enhancer()),
//	)
//
// The engine lives in pkg/slicesync; this package re-exports it together
// with the bundled connectors.
package slicesync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/slicesync/internal/adapters/fs"
	"github.com/bft-labs/slicesync/internal/adapters/sqlite"
	"github.com/bft-labs/slicesync/internal/cliconfig"
	"github.com/bft-labs/slicesync/pkg/container"
	"github.com/bft-labs/slicesync/pkg/docstore"
	"github.com/bft-labs/slicesync/pkg/log"
	engine "github.com/bft-labs/slicesync/pkg/slicesync"
)

// Registry tracks the slices of one store. See pkg/slicesync.
type Registry = engine.Registry

// Option configures a Registry.
type Option = engine.Option

// SliceOption configures one wrapped slice.
type SliceOption = engine.SliceOption

// Hooks are optional lifecycle callbacks.
type Hooks = engine.Hooks

// Codec bridges slice states and document state.
type Codec = engine.Codec

// Connector is the document store capability.
type Connector = docstore.Connector

// NewRegistry creates a registry.
func NewRegistry(opts ...Option) *Registry {
	return engine.NewRegistry(opts...)
}

// Wrap returns a reducer whose slice is persisted under name.
func Wrap(name string, reducer container.Reducer, opts ...SliceOption) container.Reducer {
	return engine.Wrap(name, reducer, opts...)
}

// PauseSaving returns an action that suspends persistence.
func PauseSaving() container.Action { return engine.PauseSaving() }

// ResumeSaving returns an action that resumes persistence.
func ResumeSaving() container.Action { return engine.ResumeSaving() }

// Registry options.
var (
	WithConnector        = engine.WithConnector
	WithConnectorFactory = engine.WithConnectorFactory
	WithCodec            = engine.WithCodec
	WithHooks            = engine.WithHooks
	WithLogger           = engine.WithLogger
	WithOriginTag        = engine.WithOriginTag
	WithObserver         = engine.WithObserver
	WithContext          = engine.WithContext
)

// Slice options.
var (
	WithSliceConnector        = engine.WithSliceConnector
	WithSliceConnectorFactory = engine.WithSliceConnectorFactory
	WithSliceCodec            = engine.WithSliceCodec
	WithSliceHooks            = engine.WithSliceHooks
)

// NewMemory returns an in-process connector.
func NewMemory() *docstore.Memory {
	return docstore.NewMemory()
}

// OpenSQLite opens a SQLite-backed connector. A zero poll uses the
// default interval. Close it when done.
func OpenSQLite(path string, poll time.Duration) (*sqlite.Connector, error) {
	return sqlite.Open(path, sqlite.WithPollInterval(poll))
}

// OpenDir opens a connector storing one JSON file per document under dir.
// Close it when done.
func OpenDir(dir string) (*fs.Connector, error) {
	return fs.Open(dir)
}

// Logger returns a console logger suitable for WithLogger.
func Logger() log.Logger {
	return log.NewZerologAdapterWithLogger(cliconfig.Logger())
}

// LoggerFrom adapts an existing zerolog logger.
func LoggerFrom(l zerolog.Logger) log.Logger {
	return log.NewZerologAdapterWithLogger(l)
}
