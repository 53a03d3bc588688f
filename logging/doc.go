// Package logging provides a minimal logging interface and adapters for embedmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the gate, renderer, orchestrator and modal use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - EmbedMeshLogger with contextual cloning and render-specific helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh := embedmesh.New(doc, page, dialog, func(o *embedmesh.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
