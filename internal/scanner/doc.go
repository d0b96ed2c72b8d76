// Package scanner discovers audio files under a library root, reads their
// tags, and orders them for batch processing.
//
// Ordering is deterministic: tracks sort by priority tier first, then by
// display name using locale-aware collation, so two scans of the same
// library always produce the same batch order.
package scanner
