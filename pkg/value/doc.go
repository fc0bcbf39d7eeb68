// Package value defines the typed values that flow through the query
// engine: the closed set of storage value kinds (TypedValue), the result
// cell representation (Binding), and the ordered attribute map produced
// by pull (StructuredMap).
//
// The value kinds form a fixed, closed set. New kinds are a schema
// evolution event, so TypedValue is a sealed interface with one encode
// and one decode routine per kind rather than an open registry.
package value
