package cache

import (
	"sync"
	"time"
)

// DocumentCache remembers which document ids are already ingested so
// repeat requests against the same document skip chunking, indexing
// and embedding. Bounded: when capacity is exceeded the oldest entry
// is evicted. Entries also expire after the TTL. Process-local by
// design; cleared on restart.
type DocumentCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func NewDocumentCache(maxSize int, ttl time.Duration) *DocumentCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DocumentCache{
		entries: make(map[string]time.Time),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Contains reports whether the document is cached and fresh.
func (c *DocumentCache) Contains(docID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ingestedAt, ok := c.entries[docID]
	if !ok {
		return false
	}
	if c.now().Sub(ingestedAt) > c.ttl {
		delete(c.entries, docID)
		c.removeFromOrder(docID)
		return false
	}
	return true
}

// Put records a freshly ingested document, evicting the oldest entry
// when full. Returns the evicted document id, if any, so the caller
// can drop its index data too.
func (c *DocumentCache) Put(docID string) (evicted string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[docID]; exists {
		c.entries[docID] = c.now()
		return "", false
	}

	if len(c.entries) >= c.maxSize {
		evicted = c.order[0]
		c.order = c.order[1:]
		delete(c.entries, evicted)
		ok = true
	}

	c.entries[docID] = c.now()
	c.order = append(c.order, docID)
	return evicted, ok
}

// Remove forgets a document, e.g. after an explicit re-ingest.
func (c *DocumentCache) Remove(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, docID)
	c.removeFromOrder(docID)
}

func (c *DocumentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DocumentCache) removeFromOrder(docID string) {
	for i, id := range c.order {
		if id == docID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
