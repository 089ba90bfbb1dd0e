package cache

import "context"

// BlockKey identifies a fixed-size block of a blob.
type BlockKey struct {
	// Path is the blob name.
	Path string
	// Block is the block index within the blob.
	Block int64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key BlockKey) (b []byte, ok bool)
	// Set caches a block. The caller must treat b as immutable afterwards.
	Set(ctx context.Context, key BlockKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key BlockKey) bool)
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
