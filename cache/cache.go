package cache

import (
	"context"
	"strings"
)

// KeySeparator delimits the segments of a cache key.
const KeySeparator = "::"

// Key builds the cache key for a point lookup.
func Key(collection, id string) string {
	return collection + KeySeparator + id
}

// SplitKey is the inverse of Key. The second return value is false when the
// key does not follow the collection::id scheme.
func SplitKey(key string) (collection, id string, ok bool) {
	collection, id, ok = strings.Cut(key, KeySeparator)
	return collection, id, ok
}

// Store exposes the cache operations the repository needs for point lookups.
// Implementations handle TTL expiry and capacity eviction internally and must
// be safe for concurrent use.
type Store interface {
	// Get returns the live entry for key. Expired or evicted entries are
	// reported as absent.
	Get(ctx context.Context, key string) (any, bool)

	// Set inserts or replaces the entry for key with the backend's TTL.
	Set(ctx context.Context, key string, value any)

	// Delete removes the entry for key, if present.
	Delete(ctx context.Context, key string)

	// Flush drops every entry.
	Flush(ctx context.Context)

	// Len reports the number of live entries.
	Len(ctx context.Context) int
}
