// Package cache provides a file-based key-value cache with per-entry TTL.
//
// Each entry lives in its own JSON file inside a single flat directory. The
// file name is the SHA-256 digest of the key, so arbitrary keys map to safe,
// fixed-length names. Expiry is checked lazily on access; there is no
// background janitor. Callers that want to bound disk usage run
// ClearOlderThan periodically.
//
// Storage faults never surface as errors from lookups or writes: a missing,
// expired, truncated or otherwise unreadable entry is a miss, and a failed
// write is reported as false. Only construction fails loudly.
package cache
