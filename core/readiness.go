package core

import "context"

// Phase is the process-wide lifecycle of the widget script.
type Phase int

const (
	// PhaseNotRequested means nobody asked for the capability yet.
	PhaseNotRequested Phase = iota
	// PhaseRequesting means the script was injected (or found) and callers are waiting.
	PhaseRequesting
	// PhaseReady means the embed-creation capability is available.
	PhaseReady
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNotRequested:
		return "not_requested"
	case PhaseRequesting:
		return "requesting"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ReadinessStatus is the resolved value of the readiness signal.
type ReadinessStatus int

const (
	// Ready means Widget is usable.
	Ready ReadinessStatus = iota
	// TimedOut means the capability did not appear in time; render static fallbacks.
	TimedOut
)

// String returns the status name.
func (s ReadinessStatus) String() string {
	if s == Ready {
		return "ready"
	}
	return "timed_out"
}

// Readiness is what every caller of the gate receives. Widget is nil unless
// Status is Ready; Err explains a TimedOut status.
type Readiness struct {
	Status ReadinessStatus
	Widget Widget
	Err    error
}

// IsReady reports whether the capability can be used.
func (r Readiness) IsReady() bool { return r.Status == Ready && r.Widget != nil }

// Gate guarantees the external widget script is loaded at most once and
// hands out a shared readiness signal. Implementations must always resolve,
// even when the script never loads.
type Gate interface {
	EnsureReady(ctx context.Context) Readiness
}

// Script identifies the externally hosted widget script. The element id makes
// repeated injection attempts detectable.
type Script struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// DefaultScript is the widgets.js script used by the social embed provider.
var DefaultScript = Script{
	ID:  "twitter-wjs",
	URL: "https://platform.twitter.com/widgets.js",
}
