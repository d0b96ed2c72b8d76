// Package pipeline routes a single track through separation: pick an
// engine, consult the cache, run the job under ledger bookkeeping, score
// the stems, and take at most one quality-triggered fallback hop.
//
// The fallback sequence is an explicit state machine (attempt, evaluate,
// fallback, finalize) so the control flow admits exactly one extra attempt
// and can never chain further.
package pipeline
