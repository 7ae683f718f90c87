// Package logging provides a minimal logging interface and adapters for routemesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, classifiers and runner use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RouteMeshLogger with session/level context and routing helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh := routemesh.New(func(o *routemesh.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
