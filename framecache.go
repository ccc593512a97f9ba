package pitchtrack

import (
	"container/list"
	"sync"
)

// CacheStats reports frame cache occupancy and hit/miss counters since
// creation.
type CacheStats struct {
	// OccupiedBytes is the total size of all resident entries
	OccupiedBytes int64
	// BudgetBytes is the configured cache capacity
	BudgetBytes int64
	// Entries is the current resident entry count
	Entries int
	// Hits and Misses count Get outcomes since the cache was created
	Hits   uint64
	Misses uint64
}

// cacheEntry is one resident frame artifact
type cacheEntry struct {
	key      int
	artifact interface{}
	size     int64
}

// FrameCache is a bounded-memory store of recently processed frame artifacts
// such as decoded pixel buffers or precomputed feature maps, evicted in
// strict least-recently-used order.  It is safe for concurrent use from
// multiple workers, a prefetcher may fill entries ahead of the sequential
// pipeline consumer.
type FrameCache struct {
	mu sync.Mutex
	// budget is the maximum total resident bytes
	budget int64
	// occupied is the current total resident bytes
	occupied int64
	// order holds *cacheEntry values, front is most recently used
	order *list.List
	// index maps frame key to its element in order
	index  map[int]*list.Element
	hits   uint64
	misses uint64
}

// NewFrameCache creates a frame cache with the given byte budget.
func NewFrameCache(budgetBytes int64) *FrameCache {
	return &FrameCache{
		budget: budgetBytes,
		order:  list.New(),
		index:  make(map[int]*list.Element),
	}
}

// Put inserts or refreshes the artifact for a frame key and evicts least
// recently used entries until total size is within budget.  An artifact
// larger than the entire budget is rejected silently, the put is a no-op and
// no counters change.
func (fc *FrameCache) Put(key int, artifact interface{}, size int64) {

	if size > fc.budget || size < 0 {
		return
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// refresh in place if the key is already resident
	if elem, exists := fc.index[key]; exists {
		entry := elem.Value.(*cacheEntry)
		fc.occupied += size - entry.size
		entry.artifact = artifact
		entry.size = size
		fc.order.MoveToFront(elem)

	} else {
		entry := &cacheEntry{key: key, artifact: artifact, size: size}
		fc.index[key] = fc.order.PushFront(entry)
		fc.occupied += size
	}

	// evict from the back until within budget
	for fc.occupied > fc.budget {

		oldest := fc.order.Back()

		if oldest == nil {
			break
		}

		fc.removeElement(oldest)
	}
}

// Get returns the artifact for a frame key and marks it most recently used.
// The second return is false on a cache miss, a miss has no side effect
// beyond the counter.
func (fc *FrameCache) Get(key int) (interface{}, bool) {

	fc.mu.Lock()
	defer fc.mu.Unlock()

	elem, exists := fc.index[key]

	if !exists {
		fc.misses++
		return nil, false
	}

	fc.hits++
	fc.order.MoveToFront(elem)

	return elem.Value.(*cacheEntry).artifact, true
}

// Remove drops the entry for a frame key if resident.
func (fc *FrameCache) Remove(key int) {

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if elem, exists := fc.index[key]; exists {
		fc.removeElement(elem)
	}
}

// Stats returns current occupancy and counters.
func (fc *FrameCache) Stats() CacheStats {

	fc.mu.Lock()
	defer fc.mu.Unlock()

	return CacheStats{
		OccupiedBytes: fc.occupied,
		BudgetBytes:   fc.budget,
		Entries:       fc.order.Len(),
		Hits:          fc.hits,
		Misses:        fc.misses,
	}
}

// Reset drops all entries.  Counters are retained.
func (fc *FrameCache) Reset() {

	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.order.Init()
	fc.index = make(map[int]*list.Element)
	fc.occupied = 0
}

// removeElement unlinks an entry, caller holds the lock.
func (fc *FrameCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	fc.order.Remove(elem)
	delete(fc.index, entry.key)
	fc.occupied -= entry.size
}
