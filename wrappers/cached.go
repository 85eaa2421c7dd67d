package wrappers

import (
	"container/list"
	"context"
	"sync"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/types"
)

// lru is a fixed-capacity least-recently-used cache, generalised from the
// teacher's own container/list-backed LRUCache (index/lrucache.go) to the
// document-keyed cache spec §4.9's Cached wrapper needs.
type lru struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[types.DocumentID]*list.Element
}

type lruEntry struct {
	key   types.DocumentID
	value types.Document
}

func newLRU(maxEntries int) *lru {
	return &lru{maxEntries: maxEntries, ll: list.New(), items: make(map[types.DocumentID]*list.Element)}
}

func (c *lru) get(key types.DocumentID) (types.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*lruEntry).value, true
	}
	return types.Document{}, false
}

func (c *lru) add(key types.DocumentID, value types.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*lruEntry).value = value
		return
	}
	el := c.ll.PushFront(&lruEntry{key, value})
	c.items[key] = el
	if c.maxEntries != 0 && c.ll.Len() > c.maxEntries {
		if oldest := c.ll.Back(); oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

func (c *lru) remove(key types.DocumentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// DefaultCacheCapacity matches the teacher's own document-cache sizing
// order of magnitude (index/lrucache_test.go exercises capacities in the
// low thousands).
const DefaultCacheCapacity = 4096

// CachedStorage serves Get from an in-memory LRU populated by Insert/Update
// and evicted by Delete, per spec §4.9: "Insert/update populate; delete
// evicts; get serves hits without touching inner."
type CachedStorage struct {
	inner contracts.Storage
	cache *lru
}

func NewCachedStorage(inner contracts.Storage, capacity int) *CachedStorage {
	return &CachedStorage{inner: inner, cache: newLRU(capacity)}
}

func (c *CachedStorage) Insert(ctx context.Context, doc types.Document) error {
	if err := c.inner.Insert(ctx, doc); err != nil {
		return err
	}
	c.cache.add(doc.ID, doc)
	return nil
}

func (c *CachedStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	if doc, ok := c.cache.get(id); ok {
		return doc, nil
	}
	doc, err := c.inner.Get(ctx, id)
	if err != nil {
		return types.Document{}, err
	}
	c.cache.add(id, doc)
	return doc, nil
}

func (c *CachedStorage) Update(ctx context.Context, doc types.Document) error {
	if err := c.inner.Update(ctx, doc); err != nil {
		return err
	}
	c.cache.add(doc.ID, doc)
	return nil
}

func (c *CachedStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	ok, err := c.inner.Delete(ctx, id)
	if err != nil {
		return ok, err
	}
	c.cache.remove(id)
	return ok, nil
}

func (c *CachedStorage) List(ctx context.Context) ([]types.Document, error) {
	return c.inner.List(ctx)
}

// CacheSize reports the current number of cached entries (test/diagnostic
// use, mirroring the teacher's own lrucache_test.go assertions on Len()).
func (c *CachedStorage) CacheSize() int { return c.cache.len() }

var _ contracts.Storage = (*CachedStorage)(nil)
