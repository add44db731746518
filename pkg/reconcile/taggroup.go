package reconcile

import (
	"sort"

	"github.com/marmos91/regsweep/internal/logger"
)

// UnknownGroupName is the reserved bucket that collects untagged orphans in
// listings. It is seeded at construction and never merged with data groups.
const UnknownGroupName = "Unknown"

// TagGroup is one equivalence class of tags. Tags that co-occur on a ledger
// record belong to the same group, transitively. Members keep first-seen
// order; the head (first member) is the canonical reference used when
// fetching the group's manifest index.
type TagGroup struct {
	members []string
	set     map[string]struct{}
	seq     int // creation order, decides which head survives a merge
}

// Head returns the group's canonical tag.
func (g *TagGroup) Head() string {
	return g.members[0]
}

// Members returns the group's tags in first-seen order.
func (g *TagGroup) Members() []string {
	return append([]string(nil), g.members...)
}

// Len returns the number of tags in the group.
func (g *TagGroup) Len() int {
	return len(g.members)
}

// Contains reports whether tag belongs to the group.
func (g *TagGroup) Contains(tag string) bool {
	_, ok := g.set[tag]
	return ok
}

// Matches reports whether any member of the group is in filter.
func (g *TagGroup) Matches(filter map[string]struct{}) bool {
	for tag := range filter {
		if g.Contains(tag) {
			return true
		}
	}
	return false
}

// TagTable tracks tag equivalence with a union-find over parent pointers,
// path-compressed on lookup. Roots map to their TagGroup, so two lookups
// that land on the same root return the same group object.
type TagTable struct {
	parent  map[string]string
	groups  map[string]*TagGroup
	unknown *TagGroup
	nextSeq int
}

// NewTagTable returns a table with the reserved Unknown group seeded.
func NewTagTable() *TagTable {
	return &TagTable{
		parent: make(map[string]string),
		groups: make(map[string]*TagGroup),
		unknown: &TagGroup{
			members: []string{UnknownGroupName},
			set:     map[string]struct{}{UnknownGroupName: {}},
		},
	}
}

// Merge records that all of tags belong to one group and returns it. Tags
// named like the reserved bucket cannot join a data group; they are logged
// and skipped. When nothing usable remains the reserved group is returned so
// the caller still has a head to fetch by.
func (t *TagTable) Merge(tags []string) *TagGroup {
	usable := tags[:0:0]
	for _, tag := range tags {
		if tag == UnknownGroupName {
			logger.Warn("tag collides with the reserved group name, not grouped",
				logger.KeyTag, tag)
			continue
		}
		usable = append(usable, tag)
	}
	if len(usable) == 0 {
		return t.unknown
	}

	for _, tag := range usable {
		t.add(tag)
	}
	first := usable[0]
	for _, tag := range usable[1:] {
		t.union(first, tag)
	}

	return t.groups[t.find(first)]
}

// Lookup returns the group a tag belongs to. The reserved name always
// resolves to the Unknown group.
func (t *TagTable) Lookup(tag string) (*TagGroup, bool) {
	if tag == UnknownGroupName {
		return t.unknown, true
	}
	if _, ok := t.parent[tag]; !ok {
		return nil, false
	}
	return t.groups[t.find(tag)], true
}

// Unknown returns the reserved orphan bucket.
func (t *TagTable) Unknown() *TagGroup {
	return t.unknown
}

// Groups returns all data groups sorted by head tag. The reserved group is
// not included; callers that want it use Unknown.
func (t *TagTable) Groups() []*TagGroup {
	out := make([]*TagGroup, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Head() < out[j].Head() })
	return out
}

// add seeds a singleton group for tag if it is not known yet.
func (t *TagTable) add(tag string) {
	if _, ok := t.parent[tag]; ok {
		return
	}
	t.parent[tag] = tag
	t.nextSeq++
	t.groups[tag] = &TagGroup{
		members: []string{tag},
		set:     map[string]struct{}{tag: {}},
		seq:     t.nextSeq,
	}
}

// find returns the root of tag's set, compressing the path walked.
func (t *TagTable) find(tag string) string {
	root := tag
	for t.parent[root] != root {
		root = t.parent[root]
	}
	for t.parent[tag] != root {
		tag, t.parent[tag] = t.parent[tag], root
	}
	return root
}

// union joins the sets of a and b. The earlier-created group keeps its head;
// the other group's members are appended in their own order.
func (t *TagTable) union(a, b string) {
	ra, rb := t.find(a), t.find(b)
	if ra == rb {
		return
	}

	ga, gb := t.groups[ra], t.groups[rb]
	if gb.seq < ga.seq {
		ra, rb = rb, ra
		ga, gb = gb, ga
	}

	t.parent[rb] = ra
	delete(t.groups, rb)

	for _, tag := range gb.members {
		if _, ok := ga.set[tag]; ok {
			continue
		}
		ga.members = append(ga.members, tag)
		ga.set[tag] = struct{}{}
	}
}
