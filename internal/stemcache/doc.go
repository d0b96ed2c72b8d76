// Package stemcache stores separated stems keyed by (content hash, engine)
// so the same file separated by the same engine is never processed twice.
//
// Each entry is a directory named "{hash}_{engine}" holding the four
// canonical stem files plus a cache_meta.json sidecar. Writes go through a
// staging directory and commit with a single rename, so readers never
// observe a half-written entry. Entries that fail validation on read are
// purged and reported as misses.
package stemcache
