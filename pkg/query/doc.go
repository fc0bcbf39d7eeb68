// Package query defines the structured find/where AST the algebrizer
// consumes. Surface syntax parsing is out of scope for this engine;
// callers construct the AST directly (or decode it from a structured
// document, as the CLI does).
//
// The interfaces here are sealed with marker methods so that backend
// compilers can type-switch exhaustively: FindSpec over the four result
// shapes, Element over variables and aggregates, Clause over patterns
// and predicates, and Place over variables, constants, idents, and the
// wildcard.
package query
