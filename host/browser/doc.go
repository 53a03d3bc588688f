// Package browser is the real host: a page driven over the DevTools
// protocol with go-rod. The widget script runs in the page, and every
// capability call is a JavaScript evaluation awaited under the caller's
// context, so a cancelled attempt aborts the protocol round trip.
//
// Slots are addressed by CSS selectors; child containers carry a generated
// data-embedmesh-slot attribute.
package browser
