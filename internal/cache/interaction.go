package cache

import "github.com/lighthouse-health/exposure-relay/internal/store"

// InteractionQueryCache memoizes "interactions where
// partnerAnonymousId == H_I(u)" lookups by the hashed interaction id
// key, so a BFS hop that revisits a node already queried this run
// (a diamond in the contact graph) skips the repeat store round-trip.
type InteractionQueryCache struct {
	c *fifoCache[[]store.Snapshot]
}

func NewInteractionQueryCache() *InteractionQueryCache {
	return &InteractionQueryCache{c: newFIFOCache[[]store.Snapshot](DefaultMaxInteractionEntries)}
}

// Get returns the cached snapshots for hashedInteractionID and whether
// the key was present at all (hit), plus whether it was cached as a
// known-empty result (miss). A caller should treat (hit && !miss) as
// "use these snapshots" and (hit && miss) as "skip the query, there
// were none."
func (c *InteractionQueryCache) Get(hashedInteractionID string) (snapshots []store.Snapshot, isKnownEmpty bool, hit bool) {
	return c.c.get(hashedInteractionID)
}

func (c *InteractionQueryCache) Put(hashedInteractionID string, snapshots []store.Snapshot) {
	c.c.put(hashedInteractionID, snapshots, len(snapshots) == 0)
}

func (c *InteractionQueryCache) Len() int { return c.c.len() }
