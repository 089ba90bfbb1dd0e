// Package cache provides the mutex-guarded LRU caches used at serve time.
//
// # LRU
//
// LRU is a generic cache bounded by entry count and, optionally, by a cost
// budget (bytes). Evicted, replaced and removed values are passed to an
// eviction hook after the lock is released, which is where callers close
// files or cancel producers.
//
// If a resource.Controller is attached, entry costs are also charged
// against the global memory budget; an entry that cannot be charged is not
// admitted.
//
// # Block Cache
//
// ShardedBlockCache spreads fixed-size blob blocks over 64 LRU shards to
// reduce lock contention. It backs blobstore.CachingStore.
package cache
