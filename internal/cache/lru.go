package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/wikipack/internal/resource"
)

// Option configures an LRU.
type Option[K comparable, V any] func(*LRU[K, V])

// WithOnEvict installs a hook called for every value leaving the cache.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *LRU[K, V]) { c.onEvict = fn }
}

// WithMaxCost bounds the summed cost of the cached values.
func WithMaxCost[K comparable, V any](maxCost int64, cost func(V) int64) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.maxCost = maxCost
		c.cost = cost
	}
}

// WithResource charges value costs against rc. cost is used unless
// WithMaxCost already set one.
func WithResource[K comparable, V any](rc *resource.Controller, cost func(V) int64) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.rc = rc
		if c.cost == nil {
			c.cost = cost
		}
	}
}

// LRU is a least-recently-used cache safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	maxCost   int64
	size      int64
	items     map[K]*list.Element
	evictList *list.List
	onEvict   func(K, V)
	cost      func(V) int64
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// NewLRU returns a cache holding at most capacity entries.
// capacity <= 0 means the count is unbounded (use WithMaxCost).
func NewLRU[K comparable, V any](capacity int, opts ...Option[K, V]) *LRU[K, V] {
	c := &LRU[K, V]{
		capacity:  capacity,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key and marks it as recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[K, V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Peek returns the value for key without touching recency or stats.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		return ent.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Add inserts or replaces the value for key, evicting old entries as needed.
// It returns false if the value was not admitted (too costly).
func (c *LRU[K, V]) Add(key K, value V) bool {
	var evicted []*entry[K, V]
	admitted := c.add(key, value, &evicted)
	c.notify(evicted)
	return admitted
}

func (c *LRU[K, V]) add(key K, value V, evicted *[]*entry[K, V]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cost int64
	if c.cost != nil {
		cost = c.cost(value)
	}
	if c.maxCost > 0 && cost > c.maxCost {
		return false
	}

	if ent, ok := c.items[key]; ok {
		*evicted = append(*evicted, c.removeElement(ent))
	}

	for c.overflows(1, cost) {
		back := c.evictList.Back()
		if back == nil {
			break
		}
		*evicted = append(*evicted, c.removeElement(back))
	}

	if c.rc != nil && cost > 0 {
		for !c.rc.TryAcquireMemory(cost) {
			back := c.evictList.Back()
			if back == nil {
				return false
			}
			*evicted = append(*evicted, c.removeElement(back))
		}
	}

	ent := &entry[K, V]{key: key, value: value, cost: cost}
	c.items[key] = c.evictList.PushFront(ent)
	c.size += cost
	return true
}

func (c *LRU[K, V]) overflows(extra int, cost int64) bool {
	if c.capacity > 0 && c.evictList.Len()+extra > c.capacity {
		return true
	}
	return c.maxCost > 0 && c.size+cost > c.maxCost
}

// Remove deletes key. It reports whether the key was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	ent, ok := c.items[key]
	var removed *entry[K, V]
	if ok {
		removed = c.removeElement(ent)
	}
	c.mu.Unlock()

	if ok {
		c.notify([]*entry[K, V]{removed})
	}
	return ok
}

// RemoveFunc deletes every entry whose key matches pred.
func (c *LRU[K, V]) RemoveFunc(pred func(K) bool) int {
	c.mu.Lock()
	var removed []*entry[K, V]
	for key, ent := range c.items {
		if pred(key) {
			removed = append(removed, c.removeElement(ent))
		}
	}
	c.mu.Unlock()

	c.notify(removed)
	return len(removed)
}

// Purge empties the cache, calling the eviction hook for every entry.
func (c *LRU[K, V]) Purge() {
	c.RemoveFunc(func(K) bool { return true })
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Cost returns the summed cost of the cached values.
func (c *LRU[K, V]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.evictList.Len())
	for e := c.evictList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[K, V]).key)
	}
	return keys
}

// Stats returns hit and miss counts of Get.
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU[K, V]) removeElement(e *list.Element) *entry[K, V] {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[K, V])
	delete(c.items, kv.key)
	c.size -= kv.cost
	if c.rc != nil && kv.cost > 0 {
		c.rc.ReleaseMemory(kv.cost)
	}
	return kv
}

func (c *LRU[K, V]) notify(evicted []*entry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.key, e.value)
	}
}
