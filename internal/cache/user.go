package cache

import "github.com/lighthouse-health/exposure-relay/internal/store"

// UserLookupCache memoizes user document lookups by hashed id (the
// Chain Propagator keys it by hashedInteractionId) within a single
// propagation run, since the same user is resolved once as a
// recipient and again as a node on every chain path passing through
// them.
type UserLookupCache struct {
	c *fifoCache[store.Snapshot]
}

func NewUserLookupCache() *UserLookupCache {
	return &UserLookupCache{c: newFIFOCache[store.Snapshot](DefaultMaxUserEntries)}
}

// Get returns the cached snapshot for hashedID, whether hashedID is
// cached as known-missing, and whether hashedID was in the cache at all.
func (c *UserLookupCache) Get(hashedID string) (snapshot store.Snapshot, knownMissing bool, hit bool) {
	return c.c.get(hashedID)
}

func (c *UserLookupCache) PutFound(hashedID string, snapshot store.Snapshot) {
	c.c.put(hashedID, snapshot, false)
}

func (c *UserLookupCache) PutMissing(hashedID string) {
	c.c.put(hashedID, store.Snapshot{}, true)
}

func (c *UserLookupCache) Len() int { return c.c.len() }
