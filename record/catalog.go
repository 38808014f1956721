package record

import (
	"github.com/dgraph-io/ristretto/v2"
)

// Catalog is an advisory, ristretto-backed cache of name -> *Table,
// generalizing the teacher's tableIndex map (storage_engine/access/
// heapfile_manager.HeapFileManager.tableIndex) into something with
// bounded memory and real eviction instead of an ever-growing map.
//
// It sits outside the pin-correctness path described in the spec: a
// cache miss simply falls through to OpenTable, so Catalog never
// decides whether a page is resident — it only saves repeated schema-
// header parses for tables looked up by name more than once. This is
// also why it is the one structure in this package allowed to keep its
// own internal synchronization (see bufferpool and pagefile, which may
// not) — ristretto's Cache is safe for concurrent use by design, and a
// catalog may reasonably be shared by callers juggling several tables.
type Catalog struct {
	cache *ristretto.Cache[string, *Table]
}

// NewCatalog builds a Catalog with room for roughly maxTables open
// tables cached at once. Eviction from the cache only drops the cached
// pointer — it does not close the underlying table, so callers must
// still call CloseTable themselves when truly done with a table.
func NewCatalog(maxTables int64) (*Catalog, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *Table]{
		NumCounters: maxTables * 10,
		MaxCost:     maxTables,
		BufferItems: 64,
		// Each table costs exactly 1; without this ristretto adds its own
		// per-item memory cost, which alone exceeds a MaxCost of maxTables.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Catalog{cache: cache}, nil
}

// Get returns the cached *Table for name, opening and caching it on a
// miss. The table is opened fresh (and not shared) on every miss; two
// concurrent misses for the same name may each open their own handle.
func (c *Catalog) Get(name string) (*Table, error) {
	if t, ok := c.cache.Get(name); ok {
		log.WithField("table", name).Debug("catalog hit")
		return t, nil
	}

	log.WithField("table", name).Debug("catalog miss")
	t, err := OpenTable(name)
	if err != nil {
		return nil, err
	}
	c.cache.Set(name, t, 1)
	c.cache.Wait()
	return t, nil
}

// Evict drops name from the cache without closing the underlying table.
func (c *Catalog) Evict(name string) {
	c.cache.Del(name)
}

// Close releases the cache's internal resources. It does not close any
// cached *Table.
func (c *Catalog) Close() {
	c.cache.Close()
}
