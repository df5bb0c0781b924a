// Package logging provides a minimal logging interface and adapters for AgentPlay.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, runner and server use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - AgentPlayLogger with json, text and colored console (tint) output
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, logging.FormatConsole, false)
//	eng := engine.New(adapters, tools, executor, func(o *engine.Options) { o.Logger = logger })
//
// Args passed to the logging methods are slog key/value pairs.
package logging
