package papers

import (
	"container/list"
	"sync"

	"github.com/arxiv-daily/internal/models"
)

// lruCache is a thread-safe LRU cache of parsed days
type lruCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type lruEntry struct {
	key     string
	version int64
	papers  []models.Paper
}

func newLRUCache(capacity int) *lruCache {
	if capacity <= 0 {
		capacity = 64
	}
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// get returns the papers for key when they were stored at version
func (c *lruCache) get(key string, version int64) ([]models.Paper, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*lruEntry)
	if e.version != version {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return e.papers, true
}

func (c *lruCache) put(key string, version int64, papers []models.Paper) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*lruEntry)
		e.version = version
		e.papers = papers
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			delete(c.items, back.Value.(*lruEntry).key)
			c.order.Remove(back)
		}
	}
	c.items[key] = c.order.PushFront(&lruEntry{key: key, version: version, papers: papers})
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
