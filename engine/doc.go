// Package engine drives one collaboratively edited markdown document. A
// Session owns the block array, the authoritative selection, the registry
// of mounted block trees, and the merge controller that defers remote
// changes while the user is typing and debounces outgoing saves.
//
// Every entry point serializes on one mutex, including re-entry from
// timers, so the joined blocks always equal the document text whenever
// control returns to the caller.
package engine
