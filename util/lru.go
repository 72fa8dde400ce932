package util

import (
	"fmt"
	"strings"
	"sync"
)

/*
LRU is a byte-capacity LRU cache. Unlike a count-capped cache, each entry
carries an explicit size and eviction triggers when the summed sizes exceed
the configured capacity. An optional eviction callback fires for every entry
that leaves the cache involuntarily (capacity eviction, TrimOldest, Reset) so
callers can keep external accounting, such as a memory budget, in sync.
Remove does not fire the callback: it is the "take ownership back" path.
*/

////////////////////////////////////////////////////////////////////////////////

// LRU is a size-aware LRU cache.
type LRU[K comparable, V any] struct {
	cache      map[K]*lruEntry[K, V]
	head, tail *lruEntry[K, V]
	size       int64
	cap        int64
	onEvict    func(K, V, int64)
	mtx        sync.Mutex
}

type lruEntry[K comparable, V any] struct {
	key        K
	value      V
	size       int64
	prev, next *lruEntry[K, V]
}

// NewLRU returns a new LRU cache with the given byte capacity. The onEvict
// callback may be nil.
func NewLRU[K comparable, V any](capacity int64, onEvict func(K, V, int64)) *LRU[K, V] {
	head, tail := &lruEntry[K, V]{}, &lruEntry[K, V]{}
	head.next = tail
	tail.prev = head
	return &LRU[K, V]{
		cache:   make(map[K]*lruEntry[K, V]),
		head:    head,
		tail:    tail,
		cap:     capacity,
		onEvict: onEvict,
	}
}

// Put adds a key-value pair with the given size to the cache, updating size
// and recency if the key already exists. Entries are evicted from the cold
// end until the cache fits its capacity.
func (lru *LRU[K, V]) Put(key K, value V, size int64) {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	if entry, exists := lru.cache[key]; exists {
		lru.size += size - entry.size
		entry.value = value
		entry.size = size
		lru.moveToFront(entry)
	} else {
		entry := &lruEntry[K, V]{key: key, value: value, size: size}
		lru.cache[key] = entry
		lru.addToFront(entry)
		lru.size += size
	}
	for lru.size > lru.cap {
		if !lru.evict() {
			break
		}
	}
}

// Get returns the value associated with the given key, marking it recently
// used. The second return value is false if the key is absent.
func (lru *LRU[K, V]) Get(key K) (V, bool) {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	if entry, exists := lru.cache[key]; exists {
		lru.moveToFront(entry)
		return entry.value, true
	}
	var v V
	return v, false
}

// Remove takes an entry out of the cache without firing the eviction
// callback, transferring ownership of the value (and whatever external
// accounting it carries) back to the caller.
func (lru *LRU[K, V]) Remove(key K) (V, int64, bool) {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	entry, exists := lru.cache[key]
	if !exists {
		var v V
		return v, 0, false
	}
	lru.unlink(entry)
	delete(lru.cache, key)
	lru.size -= entry.size
	return entry.value, entry.size, true
}

// TrimOldest evicts the least recently used entry, firing the eviction
// callback. It returns false if the cache is empty.
func (lru *LRU[K, V]) TrimOldest() bool {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	return lru.evict()
}

// Reset evicts every entry, firing the eviction callback for each.
func (lru *LRU[K, V]) Reset() {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	for lru.evict() {
	}
}

// Size returns the summed sizes of all cached entries.
func (lru *LRU[K, V]) Size() int64 {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	return lru.size
}

// Len returns the number of cached entries.
func (lru *LRU[K, V]) Len() int {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	return len(lru.cache)
}

func (lru *LRU[K, V]) addToFront(entry *lruEntry[K, V]) {
	entry.next = lru.head.next
	entry.prev = lru.head
	lru.head.next.prev = entry
	lru.head.next = entry
}

func (lru *LRU[K, V]) unlink(entry *lruEntry[K, V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (lru *LRU[K, V]) moveToFront(entry *lruEntry[K, V]) {
	lru.unlink(entry)
	lru.addToFront(entry)
}

func (lru *LRU[K, V]) evict() bool {
	entry := lru.tail.prev
	if entry == lru.head {
		return false
	}
	lru.unlink(entry)
	delete(lru.cache, entry.key)
	lru.size -= entry.size
	if lru.onEvict != nil {
		lru.onEvict(entry.key, entry.value, entry.size)
	}
	return true
}

// String returns a string representation of the cache.
func (lru *LRU[K, V]) String() string {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "(%d entries, %d/%d bytes) [", len(lru.cache), lru.size, lru.cap)
	for entry := lru.head.next; entry != lru.tail; entry = entry.next {
		fmt.Fprintf(sb, "%v:%d", entry.key, entry.size)
		if entry.next != lru.tail {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
