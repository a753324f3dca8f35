package index

import (
	"testing"

	"github.com/dshills/embedbridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentCacheLRU(t *testing.T) {
	cache := NewSegmentCache(2)
	a := NewSegment(testCollection(core.SpaceL2))
	b := NewSegment(testCollection(core.SpaceL2))
	c := NewSegment(testCollection(core.SpaceL2))

	assert.Empty(t, cache.Put(a))
	assert.Empty(t, cache.Put(b))

	// Touch a so that b becomes the eviction candidate
	got, ok := cache.Get(a.CollectionID())
	require.True(t, ok)
	assert.Same(t, a, got)

	evicted := cache.Put(c)
	require.Len(t, evicted, 1)
	assert.Same(t, b, evicted[0])
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get(b.CollectionID())
	assert.False(t, ok)

	// Replacing a segment of the same collection does not evict
	a2 := NewSegment(core.Collection{ID: a.CollectionID()})
	assert.Empty(t, cache.Put(a2))
	got, _ = cache.Get(a.CollectionID())
	assert.Same(t, a2, got)

	cache.Remove(c.CollectionID())
	assert.Equal(t, 1, cache.Len())

	purged := cache.Purge()
	assert.Len(t, purged, 1)
	assert.Zero(t, cache.Len())

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
