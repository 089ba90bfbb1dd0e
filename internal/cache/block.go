package cache

import (
	"context"
	"hash/maphash"
	"sync"

	"github.com/hupe1980/wikipack/internal/resource"
)

const numShards = 64

// ShardedBlockCache is a byte-bounded BlockCache split over 64 LRU shards.
type ShardedBlockCache struct {
	shards [numShards]*LRU[BlockKey, []byte]
	seed   maphash.Seed
}

var _ BlockCache = (*ShardedBlockCache)(nil)

func blockCost(b []byte) int64 { return int64(len(b)) }

// NewShardedBlockCache creates a cache holding at most capacity bytes.
// The capacity is divided evenly across all shards.
func NewShardedBlockCache(capacity int64, rc *resource.Controller) *ShardedBlockCache {
	shardCapacity := max(capacity/numShards, 1)

	s := &ShardedBlockCache{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRU[BlockKey, []byte](0,
			WithMaxCost[BlockKey](shardCapacity, blockCost),
			WithResource[BlockKey](rc, blockCost),
		)
	}
	return s
}

func (s *ShardedBlockCache) shard(key BlockKey) *LRU[BlockKey, []byte] {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(key.Path)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(key.Block >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return s.shards[h.Sum64()%numShards]
}

// Get returns a cached block.
func (s *ShardedBlockCache) Get(_ context.Context, key BlockKey) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches a block.
func (s *ShardedBlockCache) Set(_ context.Context, key BlockKey, b []byte) {
	s.shard(key).Add(key, b)
}

// Invalidate removes entries matching the predicate.
// This walks all shards, which is expensive but rare.
func (s *ShardedBlockCache) Invalidate(predicate func(key BlockKey) bool) {
	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range numShards {
		go func(shard *LRU[BlockKey, []byte]) {
			defer wg.Done()
			shard.RemoveFunc(predicate)
		}(s.shards[i])
	}
	wg.Wait()
}

// Stats returns aggregated hit/miss statistics.
func (s *ShardedBlockCache) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the cached bytes across all shards.
func (s *ShardedBlockCache) Size() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].Cost()
	}
	return total
}
