// Package engine is the transport-agnostic service surface of mnemo.
//
// It composes the router, ledger, projector, state reconstructor, narrative
// compiler, clarity engine and behavioral reactor behind one type. Adapters
// (the CLI, scenario harness, any future HTTP layer) call Engine and never the
// components directly.
//
// Errors returned by Engine are always *model.Error. Store failures surface as
// PERSISTENCE_FAILURE, which callers may retry; the engine itself never
// retries.
//
// Days are passed as YYYY-MM-DD strings. An empty day means today in UTC
// according to the engine's clock.
package engine
