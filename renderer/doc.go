// Package renderer turns one embed target into rendered output through a
// bounded, ordered fallback chain:
//
//  1. wait for the widget capability (readiness gate)
//  2. dual-context only: render the parent item into its own child container
//     without blocking, then the primary with the parent thread hidden
//  3. the primary alone with the full conversation, then with provider defaults
//  4. a static link-style placeholder when every attempt failed or the
//     capability never appeared
//
// Every attempt is raced against its own timeout because the widget library
// offers no cancellation. Generation tags are re-checked after every await
// and before every slot write; work for a superseded pass returns
// core.ErrStaleGeneration without touching the slot.
//
// After the chain concludes the outcome is committed to the registry and an
// alignment pass is scheduled for the next paint.
package renderer
