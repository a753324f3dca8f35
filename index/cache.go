package index

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// DefaultCacheCapacity is the number of segments kept in memory
const DefaultCacheCapacity = 65536

// CacheStats counts cache activity
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// SegmentCache is a thread-safe LRU of loaded segments
type SegmentCache struct {
	mu       sync.Mutex
	capacity int
	items    map[uuid.UUID]*list.Element
	lruList  *list.List
	stats    CacheStats
}

// NewSegmentCache creates a cache holding at most capacity segments
func NewSegmentCache(capacity int) *SegmentCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &SegmentCache{
		capacity: capacity,
		items:    make(map[uuid.UUID]*list.Element),
		lruList:  list.New(),
	}
}

// Get retrieves a segment and marks it recently used
func (c *SegmentCache) Get(id uuid.UUID) (*Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	c.stats.Hits++
	return elem.Value.(*Segment), true
}

// Put stores a segment, replacing any cached segment of the same
// collection. It returns the segments evicted to make room.
func (c *SegmentCache) Put(seg *Segment) []*Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := seg.CollectionID()
	if elem, ok := c.items[id]; ok {
		elem.Value = seg
		c.lruList.MoveToFront(elem)
		return nil
	}

	var evicted []*Segment
	for c.lruList.Len() >= c.capacity {
		back := c.lruList.Back()
		old := back.Value.(*Segment)
		c.lruList.Remove(back)
		delete(c.items, old.CollectionID())
		c.stats.Evictions++
		evicted = append(evicted, old)
	}

	c.items[id] = c.lruList.PushFront(seg)
	return evicted
}

// Remove drops a segment from the cache
func (c *SegmentCache) Remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[id]; ok {
		c.lruList.Remove(elem)
		delete(c.items, id)
	}
}

// Purge empties the cache and returns what it held, most recent first
func (c *SegmentCache) Purge() []*Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	segments := make([]*Segment, 0, c.lruList.Len())
	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		segments = append(segments, elem.Value.(*Segment))
	}
	c.items = make(map[uuid.UUID]*list.Element)
	c.lruList.Init()
	return segments
}

// Len returns the number of cached segments
func (c *SegmentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Stats returns a copy of the cache statistics
func (c *SegmentCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
