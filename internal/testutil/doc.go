// Package testutil contains helper builders and test doubles used across
// tests to reduce boilerplate when exercising the render pipeline: a
// scriptable widget, a recording slot, a controllable document and item
// builders. They are not intended for production usage.
package testutil
