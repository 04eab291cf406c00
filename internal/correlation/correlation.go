// Package correlation maps job identity to the correlation id propagated
// through every downstream event and follow-up job. The cache is LRU-bounded
// so an abandoned job (crashed before its terminal event) cannot leak an
// entry forever; terminal events evict eagerly.
package correlation

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// DefaultCapacity bounds the cache to roughly the number of jobs that can
// plausibly be in flight at once plus headroom for bursts.
const DefaultCapacity = 4096

type entry struct {
	jobID int64
	id    string
}

// Cache is a concurrency-safe LRU from job id to correlation id.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[int64]*list.Element
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[int64]*list.Element),
	}
}

// Assign returns the correlation id for jobID, minting a fresh uuid on
// first sight. Enqueue calls this; every later stage reads the same value.
func (c *Cache) Assign(jobID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[jobID]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry).id
	}

	id := uuid.NewString()
	c.insert(jobID, id)
	return id
}

// Adopt records an externally supplied correlation id for jobID, used when
// a follow-up job inherits its parent's correlation instead of minting one.
func (c *Cache) Adopt(jobID int64, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[jobID]; ok {
		c.order.MoveToFront(el)
		el.Value.(*entry).id = id
		return
	}
	c.insert(jobID, id)
}

// Get reads without minting.
func (c *Cache) Get(jobID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[jobID]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).id, true
}

// Evict removes the entry for jobID. Called when the terminal event
// (completed or dead-lettered) for the job is observed.
func (c *Cache) Evict(jobID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[jobID]; ok {
		c.order.Remove(el)
		delete(c.entries, jobID)
	}
}

func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// insert assumes c.mu is held.
func (c *Cache) insert(jobID int64, id string) {
	el := c.order.PushFront(&entry{jobID: jobID, id: id})
	c.entries[jobID] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).jobID)
	}
}
