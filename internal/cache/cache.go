package cache

import "time"

// Store defines a key-value cache API with an optional TTL per entry.
// Lookups never report storage errors: a missing, expired or unreadable
// entry is simply a miss.
type Store interface {
	// Get decodes the cached value for key into dst and reports whether it was
	// present and not expired. Numbers decoded into untyped values are
	// json.Number.
	Get(key string, dst any) bool

	// Set stores the value. If ttl <= 0 the store's default TTL applies.
	// It reports whether the entry was written.
	Set(key string, value any, ttl time.Duration) bool

	// Has reports whether a key is present and not expired.
	Has(key string) bool

	// Delete removes a key. It returns false only when an existing entry
	// could not be removed.
	Delete(key string) bool

	// Clear removes all entries and returns how many were removed.
	Clear() int

	// ClearOlderThan removes entries whose backing file was last written more
	// than age ago, regardless of their logical expiry.
	ClearOlderThan(age time.Duration) int

	// Stats summarizes the entries currently stored.
	Stats() Stats
}

// Stats is a point-in-time summary of a store.
type Stats struct {
	TotalFiles     int   `json:"totalFiles"`
	ValidItems     int   `json:"validItems"`
	ExpiredItems   int   `json:"expiredItems"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
}

// Fetch is a typed Get.
func Fetch[T any](s Store, key string) (T, bool) {
	var v T
	if !s.Get(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Remember returns the cached value for key, or calls produce, caches its
// result for ttl and returns it. Errors from produce are returned unchanged
// and nothing is cached. Concurrent callers that miss on the same key each
// call produce; the last write wins.
func Remember[T any](s Store, key string, ttl time.Duration, produce func() (T, error)) (T, error) {
	if v, ok := Fetch[T](s, key); ok {
		return v, nil
	}
	v, err := produce()
	if err != nil {
		return v, err
	}
	s.Set(key, v, ttl)
	return v, nil
}

// Ensure FileCache implements Store at compile time.
var _ Store = (*FileCache)(nil)
