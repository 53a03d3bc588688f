// Package registry houses concrete implementations of core.Registry.
// The interface itself (and the Entry snapshot) live in the core package so
// the renderer, orchestrator and modal depend only on the contract.
//
// The in-memory store is the only backend: render state is never persisted,
// a target's record lives exactly as long as it stays in the visible window.
package registry
