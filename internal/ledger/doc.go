// Package ledger persists track identities, separation jobs, and per-stem
// quality scores in SQLite.
//
// The ledger is the durable record of what has been processed: tracks are
// keyed by content hash, each separation attempt becomes a job row, and job
// status transitions only move forward (pending, processing, then completed
// or failed). A file lock next to the database serializes writers across
// processes; concurrent readers go through WAL.
package ledger
