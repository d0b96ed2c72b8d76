// Package batch drives the pipeline over a priority-ordered set of tracks.
//
// Processing is sequential at the file level: one track's full separation,
// including any fallback hop, finishes before the next begins. The dominant
// engine is bound to a single accelerator that cannot be time-sliced, so
// scheduler-level parallelism would only thrash it. A per-track failure is
// recorded and never aborts the run.
package batch
