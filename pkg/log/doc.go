// Package log provides the logging abstraction used across slicesync.
//
// Components accept a Logger and never import a concrete logging library.
// A zerolog adapter is provided for production use and a no-op logger is
// the default when none is configured.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	reg := slicesync.NewRegistry(slicesync.WithLogger(logger))
//
// Fields are built with the helpers in this package:
//
//	logger.Warn("save failed", log.Slice("counter"), log.Err(err))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
