package core

import "errors"

var (
	// ErrScriptUnavailable is reported when the widget script never became
	// ready within its timeout. Targets degrade to the static placeholder.
	ErrScriptUnavailable = errors.New("widget script unavailable")

	// ErrEmbedCreationFailed is returned for a single rejected attempt.
	ErrEmbedCreationFailed = errors.New("embed creation failed")

	// ErrAttemptTimeout is returned when an attempt did not settle in time.
	ErrAttemptTimeout = errors.New("embed attempt timed out")

	// ErrAllAttemptsExhausted marks a target whose fallback chain ended in the
	// static placeholder.
	ErrAllAttemptsExhausted = errors.New("all embed attempts exhausted")

	// ErrStaleGeneration is returned when work belongs to a superseded pass.
	// It is an expected race, not a fault.
	ErrStaleGeneration = errors.New("stale generation")

	// ErrAlreadyStarted is returned by BeginRender for duplicate starts.
	ErrAlreadyStarted = errors.New("render already started for generation")

	// ErrNotRendering is returned by Commit when no render is in flight.
	ErrNotRendering = errors.New("target is not rendering")

	// ErrInvalidTarget is returned for targets without a primary id.
	ErrInvalidTarget = errors.New("invalid embed target")

	// ErrAttemptBudgetExceeded is returned when a chain tries more attempts
	// than its limiter allows.
	ErrAttemptBudgetExceeded = errors.New("attempt budget exceeded")
)
