// Package cache implements the bounded, size-budgeted cache the PMTiles
// reader uses for leaf directories: "at most one fill per key" is expressed
// with golang.org/x/sync/singleflight rather than a hand-rolled per-key
// mutex, following the concurrency idiom the example pack uses for the same
// problem (golang.org/x/sync also backs the teacher's bulk operations).
package cache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Sized is implemented by values a LimitedCache can evict by aggregate size.
type Sized interface {
	Size() int
}

type entry[K comparable, V Sized] struct {
	key   K
	value V
}

// LimitedCache is a size-bounded LRU cache. GetOrSet guarantees at most one
// concurrent call to fill executes per key; other callers for the same key
// block until it completes and then observe the cached value.
type LimitedCache[K comparable, V Sized] struct {
	mu        sync.Mutex
	maxBytes  int
	usedBytes int
	ll        *list.List
	index     map[K]*list.Element
	group     singleflight.Group

	// Misses counts GetOrSet calls that invoked fill, for test observability
	// (spec.md testable property 5).
	Misses int
}

// WithMaximumSize returns an empty cache bounded to maxBytes of aggregate
// Size() across its entries.
func WithMaximumSize[K comparable, V Sized](maxBytes int) *LimitedCache[K, V] {
	return &LimitedCache[K, V]{
		maxBytes: maxBytes,
		ll:       list.New(),
		index:    make(map[K]*list.Element),
	}
}

// GetOrSet returns the cached value for key, computing and caching it via
// fill on a miss. Concurrent GetOrSet calls for the same key share a single
// fill invocation.
func (c *LimitedCache[K, V]) GetOrSet(key K, fill func() (V, error)) (V, error) {
	c.mu.Lock()
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		v := el.Value.(*entry[K, V]).value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	// singleflight collapses concurrent misses for the same key into one
	// fill call; callers that land here while a fill is in progress share
	// its result instead of invoking fill again.
	v, err, _ := c.group.Do(anyKey(key), func() (interface{}, error) {
		c.mu.Lock()
		if el, ok := c.index[key]; ok {
			v := el.Value.(*entry[K, V]).value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		c.mu.Lock()
		c.Misses++
		c.mu.Unlock()

		value, err := fill()
		if err != nil {
			return value, err
		}
		c.set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *LimitedCache[K, V]) set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		old := el.Value.(*entry[K, V])
		c.usedBytes -= old.value.Size()
		old.value = value
		c.usedBytes += value.Size()
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry[K, V]{key: key, value: value})
		c.index[key] = el
		c.usedBytes += value.Size()
	}

	for c.usedBytes > c.maxBytes && c.ll.Len() > 0 {
		back := c.ll.Back()
		if back == nil {
			break
		}
		ev := back.Value.(*entry[K, V])
		c.usedBytes -= ev.value.Size()
		c.ll.Remove(back)
		delete(c.index, ev.key)
	}
}

// Len returns the number of cached entries.
func (c *LimitedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// anyKey stringifies a comparable key for singleflight.Group.Do, which keys
// on string. String keys are used as they are; every other key type is
// formatted with fmt.Sprintf("%v") via sprintKey.
func anyKey[K comparable](key K) string {
	switch k := any(key).(type) {
	case string:
		return k
	default:
		return sprintKey(k)
	}
}
