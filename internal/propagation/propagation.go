// Package propagation implements the Chain Propagator (C8): a
// multi-source BFS over the interaction graph, bounded to depth D,
// that discovers every user reachable from a reporter and builds the
// chain-visualization data attached to their notification.
//
// The graph is unidirectionally discovered — see queryPartnerEdges —
// which is the privacy gate described in spec.md §4.8: a user is only
// ever notified because someone else recorded an interaction naming
// them, never the reverse.
package propagation

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/lighthouse-health/exposure-relay/internal/cache"
	"github.com/lighthouse-health/exposure-relay/internal/hashing"
	"github.com/lighthouse-health/exposure-relay/internal/incubation"
	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

// MaxDepth is D from spec.md §4.8.
const MaxDepth = models.MaxHopDepth

// Input bundles what the propagator needs from the triggering report.
type Input struct {
	ReporterUID   string
	STITypes      []string
	TestDate      int64
	PrivacyLevel  models.PrivacyLevel
	Now           int64
}

// Notify is one recipient reached by the traversal, ready to become a
// notification write and a push send.
type Notify struct {
	RecipientUID                  string
	RecipientNotificationHashedID string
	HopDepth                      int
	ChainPath                     []string
	ChainPaths                    [][]string // populated only when len > 1
	ChainData                     models.ChainVisualization
	STIType                       []string // privacy-projected; nil unless PrivacyLevel permits
	ExposureDate                  int64    // privacy-projected; zero unless PrivacyLevel permits
}

// node tracks everything learned about one H_I-identified user during
// the traversal.
type node struct {
	depth           int
	interactionDate int64
	paths           [][]string
	canonicalSeen   map[string]bool
}

// Propagator runs BFS traversal over the interaction graph using a
// store and the per-run caches from internal/cache.
type Propagator struct {
	s       store.Store
	iqCache *cache.InteractionQueryCache
	ulCache *cache.UserLookupCache
}

func New(s store.Store, iqCache *cache.InteractionQueryCache, ulCache *cache.UserLookupCache) *Propagator {
	return &Propagator{s: s, iqCache: iqCache, ulCache: ulCache}
}

// Run performs the BFS traversal described in spec.md §4.8 and
// returns one Notify per reached user, privacy-projected per
// in.PrivacyLevel.
func (p *Propagator) Run(ctx context.Context, in Input) ([]Notify, error) {
	reporterHI := hashing.Interaction(in.ReporterUID)
	effectiveDays := incubation.EffectiveDays(in.STITypes)

	nodes := map[string]*node{
		reporterHI: {
			depth:           0,
			interactionDate: in.TestDate,
			paths:           [][]string{{reporterHI}},
			canonicalSeen:   map[string]bool{},
		},
	}
	frontier := []string{reporterHI}

	for hop := 0; hop < MaxDepth && len(frontier) > 0; hop++ {
		var next []string
		for _, u := range frontier {
			un := nodes[u]
			ws, we := incubation.Window(un.interactionDate, effectiveDays, in.Now)

			edges, err := p.queryPartnerEdges(ctx, u, ws, we)
			if err != nil {
				return nil, fmt.Errorf("propagation: querying edges for hop %d: %w", hop, err)
			}

			for _, e := range edges {
				v := e.OwnerID
				if v == reporterHI {
					continue // no self-notification
				}
				newPath := appendPath(un.paths, v)
				vn, seen := nodes[v]
				switch {
				case seen && vn.depth < hop+1:
					// already reached at a shorter depth; skip
				case seen && vn.depth == hop+1:
					addCanonicalPaths(vn, newPath)
				default:
					vn = &node{
						depth:           hop + 1,
						interactionDate: e.RecordedAt,
						canonicalSeen:   map[string]bool{},
					}
					addCanonicalPaths(vn, newPath)
					nodes[v] = vn
					next = append(next, v)
				}
			}
		}
		frontier = next
	}

	delete(nodes, reporterHI)

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic output order for tests

	var out []Notify
	for _, hI := range ids {
		n := nodes[hI]
		notify, ok, err := p.buildNotify(ctx, hI, n, in)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, notify)
		}
	}
	return out, nil
}

// appendPath produces the candidate paths reaching v, one for each
// path recorded at the node that discovered it, each extended by v. In practice a
// node is reached via exactly one upstream edge per BFS step, but the
// upstream node itself may carry multiple minimum-length paths (a
// prior group-event fan-in); every one of them extends to v.
func appendPath(upstreamPaths [][]string, v string) [][]string {
	out := make([][]string, len(upstreamPaths))
	for i, up := range upstreamPaths {
		extended := make([]string, len(up)+1)
		copy(extended, up)
		extended[len(up)] = v
		out[i] = extended
	}
	return out
}

// addCanonicalPaths appends every path in newPaths to n.paths, after
// group-event canonicalization: two paths sharing the same first and
// last node and the same *set* of intermediates collapse to one
// stored representative, per spec.md §4.8.
func addCanonicalPaths(n *node, newPaths [][]string) {
	for _, path := range newPaths {
		key := canonicalKey(path)
		if n.canonicalSeen[key] {
			continue
		}
		n.canonicalSeen[key] = true
		n.paths = append(n.paths, path)
	}
}

func canonicalKey(path []string) string {
	if len(path) < 2 {
		return "single:" + path[0]
	}
	middle := append([]string(nil), path[1:len(path)-1]...)
	sort.Strings(middle)
	return path[0] + "|" + fmt.Sprint(middle) + "|" + path[len(path)-1]
}

// partnerEdge is one candidate contact discovered from the interaction
// collection: the owner of an interaction that named the queried node
// as its partner.
type partnerEdge struct {
	OwnerID    string
	RecordedAt int64
}

// queryPartnerEdges fetches every interaction naming partnerHI as its
// partner (the unidirectional discovery gate), then filters to the
// rolling window locally — the store's Query only supports
// field-equality, so range filtering happens app-side.
func (p *Propagator) queryPartnerEdges(ctx context.Context, partnerHI string, ws, we int64) ([]partnerEdge, error) {
	var snaps []store.Snapshot
	if cached, knownEmpty, hit := p.iqCache.Get(partnerHI); hit {
		if knownEmpty {
			return nil, nil
		}
		snaps = cached
	} else {
		queried, err := p.s.Query(ctx, store.Interactions, "partnerAnonymousId", partnerHI, store.QueryOptions{})
		if err != nil {
			return nil, err
		}
		p.iqCache.Put(partnerHI, queried)
		snaps = queried
	}

	var edges []partnerEdge
	for _, snap := range snaps {
		var interaction models.Interaction
		if err := snap.Unmarshal(&interaction); err != nil {
			log.Printf("propagation: skipping malformed interaction %s: %v", snap.ID, err)
			continue // malformed doc: log-and-skip, per spec.md §7
		}
		if interaction.RecordedAt < ws || interaction.RecordedAt > we {
			continue
		}
		edges = append(edges, partnerEdge{OwnerID: interaction.OwnerID, RecordedAt: interaction.RecordedAt})
	}
	return edges, nil
}

// resolveUser looks up the user document whose hashedInteractionId ==
// hI, through the per-run UserLookupCache.
func (p *Propagator) resolveUser(ctx context.Context, hI string) (models.User, bool, error) {
	if snap, knownMissing, hit := p.ulCache.Get(hI); hit {
		if knownMissing {
			return models.User{}, false, nil
		}
		var u models.User
		if err := snap.Unmarshal(&u); err != nil {
			return models.User{}, false, err
		}
		return u, true, nil
	}

	snaps, err := p.s.Query(ctx, store.Users, "hashedInteractionId", hI, store.QueryOptions{})
	if err != nil {
		return models.User{}, false, err
	}
	if len(snaps) == 0 {
		p.ulCache.PutMissing(hI)
		return models.User{}, false, nil
	}
	p.ulCache.PutFound(hI, snaps[0])
	var u models.User
	if err := snaps[0].Unmarshal(&u); err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

// buildNotify resolves every node's identity along v's representative
// path and constructs its Notify, applying the reporter's privacy
// projection. Returns ok=false if v's user document can't be
// resolved (e.g. deleted mid-run) — the caller should skip it.
func (p *Propagator) buildNotify(ctx context.Context, hI string, n *node, in Input) (Notify, bool, error) {
	recipient, ok, err := p.resolveUser(ctx, hI)
	if err != nil {
		return Notify{}, false, fmt.Errorf("propagation: resolving recipient: %w", err)
	}
	if !ok {
		return Notify{}, false, nil
	}

	primary := n.paths[0]
	chainPath := make([]string, len(primary))
	for i, h := range primary {
		chainPath[i] = hashing.ChainLink(h)
	}

	var chainPaths [][]string
	if len(n.paths) > 1 {
		chainPaths = make([][]string, len(n.paths))
		for i, path := range n.paths {
			links := make([]string, len(path))
			for j, h := range path {
				links[j] = hashing.ChainLink(h)
			}
			chainPaths[i] = links
		}
	}

	nodes, err := p.buildChainNodes(ctx, primary, n.interactionDate, in.TestDate)
	if err != nil {
		return Notify{}, false, err
	}

	notify := Notify{
		RecipientUID:                  recipient.UID,
		RecipientNotificationHashedID: recipient.HashedNotificationID,
		HopDepth:                      n.depth,
		ChainPath:                     chainPath,
		ChainPaths:                    chainPaths,
		ChainData:                     models.ChainVisualization{Nodes: nodes},
	}
	if in.PrivacyLevel.IncludeSTI() {
		notify.STIType = in.STITypes
	}
	if in.PrivacyLevel.IncludeDate() {
		notify.ExposureDate = in.TestDate
	}
	return notify, true, nil
}

// buildChainNodes resolves username/date for every H_I id on the
// representative path. The reporter (index 0) is always POSITIVE and
// dated by the report's testDate; every other node is UNKNOWN at
// creation time and dated by terminalDate, the recordedAt of the edge
// that first reached the path's last node. Intermediate nodes carry
// that same terminalDate, not the recordedAt of their own hop.
func (p *Propagator) buildChainNodes(ctx context.Context, path []string, terminalDate, reportTestDate int64) ([]models.ChainNode, error) {
	nodes := make([]models.ChainNode, len(path))
	for i, hI := range path {
		user, ok, err := p.resolveUser(ctx, hI)
		if err != nil {
			return nil, fmt.Errorf("propagation: resolving chain node %d: %w", i, err)
		}
		username := ""
		if ok {
			username = user.Username
		}
		date := terminalDate
		if i == 0 {
			date = reportTestDate
		}
		status := models.NodeUnknown
		if i == 0 {
			status = models.NodePositive
		}
		nodes[i] = models.ChainNode{
			Username:      username,
			TestStatus:    status,
			Date:          date,
			IsCurrentUser: i == len(path)-1,
		}
	}
	return nodes, nil
}
