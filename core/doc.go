// Package core provides the foundational domain types and interfaces used by
// embedmesh. It defines the core abstractions for:
//
//   - Items and Targets (the upstream content list and the placeholders it maps to)
//   - Generations (monotonic tags that invalidate stale asynchronous completions)
//   - Readiness (the outcome of waiting for the external widget capability)
//   - Host contracts (Document, Widget, Slot, SlotProvider, Dialog, Scheduler)
//   - The Registry that records per-target render state
//
// The package intentionally keeps implementation concerns (DOM access, HTTP,
// concrete stores, orchestration) out of scope, exposing small interfaces so
// the same rendering pipeline runs against a real browser page, an in-memory
// document or a test double.
package core
