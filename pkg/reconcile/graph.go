package reconcile

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/marmos91/regsweep/internal/logger"
)

// Version is one ledger record: a package version with its numeric id, its
// content digest and the tags attached to it. A record with tags is a
// multi-platform image index; a record without tags is either a constituent
// of some index or an orphan.
type Version struct {
	ID        int64
	Digest    digest.Digest
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DigestInfo is one node of the reconciliation graph.
//
// ID is zero until the digest shows up in the ledger enumeration; a node
// still at zero after the fetch join is a dangling reference (an index names
// a digest the ledger does not have). Nodes start as orphans and lose that
// status when evidence arrives: their own tags, or a parent index.
type DigestInfo struct {
	Digest         digest.Digest
	ID             int64
	Tags           []string
	IndexDigest    digest.Digest
	Orphan         bool
	DeletionTarget bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsIndex reports whether the node is a tagged image index.
func (n *DigestInfo) IsIndex() bool {
	return len(n.Tags) > 0
}

// InconsistencyError reports a node whose flags contradict each other. It is
// fatal: the reconciliation logic itself produced an impossible state.
type InconsistencyError struct {
	Digest digest.Digest
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent graph node %s: %s", e.Digest, e.Detail)
}

// Graph is the in-memory reconciliation state: one node per digest plus the
// tag table. Fetch resolutions land on scheduler workers while enumeration
// continues, so every mutation and read goes through one mutex.
type Graph struct {
	mu    sync.Mutex
	nodes map[digest.Digest]*DigestInfo
	tags  *TagTable

	versions   int // ledger records enumerated
	tagTotal   int // tags across all records, duplicates included
	sharedRefs int // constituents claimed by more than one index
}

// NewGraph returns an empty graph with the tag table seeded.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[digest.Digest]*DigestInfo),
		tags:  NewTagTable(),
	}
}

// node returns the entry for d, creating it as an orphan when missing.
// Callers must hold mu.
func (g *Graph) node(d digest.Digest) *DigestInfo {
	n, ok := g.nodes[d]
	if !ok {
		n = &DigestInfo{Digest: d, Orphan: true}
		g.nodes[d] = n
	}
	return n
}

// ObserveVersion folds one enumerated ledger record into the graph. Tagged
// records are indexes: their tags merge into the tag table here,
// synchronously, so grouping is complete before any fetch is scheduled. The
// resulting group is returned; untagged records return nil and stay orphans
// until an index claims them.
func (g *Graph) ObserveVersion(v Version) *TagGroup {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.versions++
	g.tagTotal += len(v.Tags)

	n := g.node(v.Digest)
	n.ID = v.ID
	n.CreatedAt = v.CreatedAt
	n.UpdatedAt = v.UpdatedAt

	if len(v.Tags) == 0 {
		return nil
	}

	group := g.tags.Merge(v.Tags)
	n.Tags = append([]string(nil), v.Tags...)
	n.IndexDigest = v.Digest
	n.Orphan = false
	return group
}

// SetDeletionTarget marks or clears the deletion flag on d's node.
func (g *Graph) SetDeletionTarget(d digest.Digest, target bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.node(d).DeletionTarget = target
}

// ApplyIndex folds a fetched manifest list into the graph: every digest in
// digests (the index's own digest included) is claimed by index and inherits
// its deletion flag. A digest already claimed by a different index is logged
// as a potential ledger inconsistency and counted; the last writer wins.
func (g *Graph) ApplyIndex(index digest.Digest, digests []digest.Digest, target bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, d := range digests {
		n := g.node(d)
		if n.IndexDigest != "" && n.IndexDigest != index && d != index {
			g.sharedRefs++
			logger.Warn("digest referenced by multiple indexes, keeping the last",
				logger.KeyDigest, d.String(),
				logger.KeyIndexDigest, index.String(),
				"previous_index", n.IndexDigest.String())
		}
		n.Orphan = false
		n.IndexDigest = index
		n.DeletionTarget = target
	}
}

// Dangling returns the digests referenced by some index but never seen in
// the ledger enumeration, sorted for stable output.
func (g *Graph) Dangling() []digest.Digest {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []digest.Digest
	for d, n := range g.nodes {
		if n.ID == 0 {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CheckConsistency verifies that no node claims to be an orphan while
// carrying tags or a parent index. Such a node cannot come from any valid
// fold order, so hitting one is fatal.
func (g *Graph) CheckConsistency() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for d, n := range g.nodes {
		if !n.Orphan {
			continue
		}
		if len(n.Tags) > 0 {
			return &InconsistencyError{Digest: d, Detail: "orphan with tags"}
		}
		if n.IndexDigest != "" {
			return &InconsistencyError{Digest: d, Detail: "orphan with an index reference"}
		}
	}
	return nil
}

// Nodes returns value copies of all nodes sorted by digest.
func (g *Graph) Nodes() []DigestInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]DigestInfo, 0, len(g.nodes))
	for _, n := range g.nodes {
		c := *n
		c.Tags = append([]string(nil), n.Tags...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Digest < out[j].Digest })
	return out
}

// Node returns a value copy of d's node.
func (g *Graph) Node(d digest.Digest) (DigestInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[d]
	if !ok {
		return DigestInfo{}, false
	}
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	return c, true
}

// Tags returns the tag table. Treat it as read-only once fetches joined.
func (g *Graph) Tags() *TagTable {
	return g.tags
}

// Versions returns how many ledger records were enumerated.
func (g *Graph) Versions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.versions
}

// TagTotal returns the number of tags across all records, duplicates
// included.
func (g *Graph) TagTotal() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tagTotal
}

// SharedRefs returns how many double-referenced constituents were seen.
func (g *Graph) SharedRefs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sharedRefs
}
