// Package outputs owns the on-disk layout for separated stems: one
// deterministically named directory per track containing the four canonical
// stem files plus a metadata sidecar.
//
// Track identity is the whole-file SHA-256 content hash; the same digest
// keys the ledger and the stem cache so all three "already done" signals
// agree on what "same file" means.
package outputs
