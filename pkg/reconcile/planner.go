package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/regsweep/internal/logger"
	"github.com/marmos91/regsweep/internal/telemetry"
	"github.com/marmos91/regsweep/pkg/abort"
)

// ListVersion is one ledger-backed version row in a listing.
type ListVersion struct {
	ID        int64     `json:"id" yaml:"id"`
	Digest    string    `json:"digest" yaml:"digest"`
	Role      string    `json:"role" yaml:"role"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Version roles in listings.
const (
	RoleIndex    = "index"
	RoleManifest = "manifest"
	RoleOrphan   = "orphan"
)

// ListGroup is one tag group with its versions. Orphans land in the group
// named after the reserved Unknown bucket.
type ListGroup struct {
	Head     string        `json:"head" yaml:"head"`
	Tags     []string      `json:"tags" yaml:"tags"`
	Versions []ListVersion `json:"versions" yaml:"versions"`
}

// Report holds the self-consistency counts of one reconciled graph.
type Report struct {
	Package         string `json:"package" yaml:"package"`
	Versions        int    `json:"versions" yaml:"versions"`
	Digests         int    `json:"digests" yaml:"digests"`
	Tags            int    `json:"tags" yaml:"tags"`
	TagGroups       int    `json:"tag_groups" yaml:"tag_groups"`
	Orphans         int    `json:"orphans" yaml:"orphans"`
	DeletionTargets int    `json:"deletion_targets" yaml:"deletion_targets"`
	Dangling        int    `json:"dangling" yaml:"dangling"`
	SharedRefs      int    `json:"shared_refs" yaml:"shared_refs"`
}

// DeleteReason says why a version is in a deletion plan.
type DeleteReason string

const (
	// ReasonTagMatch marks versions swept in by the tag filter, directly or
	// through their index.
	ReasonTagMatch DeleteReason = "tag-match"
	// ReasonOrphan marks untagged, unreferenced versions deleted on request.
	ReasonOrphan DeleteReason = "orphan"
)

// Deletion is one planned ledger delete.
type Deletion struct {
	ID     int64         `json:"id" yaml:"id"`
	Digest digest.Digest `json:"digest" yaml:"digest"`
	Reason DeleteReason  `json:"reason" yaml:"reason"`
}

// Planner derives listings, reports and deletion batches from a reconciled
// graph. It must only be used after Engine.Reconcile returned without error.
type Planner struct {
	graph   *Graph
	ledger  Ledger
	signal  *abort.Signal
	metrics Metrics
	pkg     string
	filter  map[string]struct{}
}

// NewPlanner wires a planner over graph. deleteTags must be the same filter
// the engine reconciled with; metrics may be nil.
func NewPlanner(graph *Graph, ledger Ledger, signal *abort.Signal, metrics Metrics, pkg string, deleteTags []string) *Planner {
	filter := make(map[string]struct{}, len(deleteTags))
	for _, tag := range deleteTags {
		filter[tag] = struct{}{}
	}
	return &Planner{
		graph:   graph,
		ledger:  ledger,
		signal:  signal,
		metrics: metrics,
		pkg:     pkg,
		filter:  filter,
	}
}

// List returns tag groups sorted by head tag, each with its versions, and
// the Unknown bucket of orphans last. With a non-empty filter only groups
// intersecting it are returned and the Unknown bucket is left out.
func (p *Planner) List(filterTags []string) []ListGroup {
	filter := make(map[string]struct{}, len(filterTags))
	for _, tag := range filterTags {
		filter[tag] = struct{}{}
	}

	tags := p.graph.Tags()
	byGroup := make(map[*TagGroup][]ListVersion)

	for _, n := range p.graph.Nodes() {
		if n.ID == 0 {
			// Dangling references are not ledger versions; the report
			// carries them.
			continue
		}
		group, role := p.classify(n, tags)
		byGroup[group] = append(byGroup[group], ListVersion{
			ID:        n.ID,
			Digest:    n.Digest.String(),
			Role:      role,
			UpdatedAt: n.UpdatedAt,
		})
	}

	var out []ListGroup
	for _, g := range tags.Groups() {
		if len(filter) > 0 && !g.Matches(filter) {
			continue
		}
		out = append(out, ListGroup{
			Head:     g.Head(),
			Tags:     g.Members(),
			Versions: byGroup[g],
		})
	}
	if len(filter) == 0 {
		unknown := tags.Unknown()
		out = append(out, ListGroup{
			Head:     unknown.Head(),
			Tags:     unknown.Members(),
			Versions: byGroup[unknown],
		})
	}
	return out
}

// classify resolves the group and listing role of one node.
func (p *Planner) classify(n DigestInfo, tags *TagTable) (*TagGroup, string) {
	if n.IsIndex() {
		if g, ok := tags.Lookup(n.Tags[0]); ok {
			return g, RoleIndex
		}
		return tags.Unknown(), RoleIndex
	}
	if n.IndexDigest != "" {
		if parent, ok := p.graph.Node(n.IndexDigest); ok && parent.IsIndex() {
			if g, ok := tags.Lookup(parent.Tags[0]); ok {
				return g, RoleManifest
			}
		}
		return tags.Unknown(), RoleManifest
	}
	return tags.Unknown(), RoleOrphan
}

// BuildReport computes the graph's self-consistency counts. When the filter
// is empty but deletion targets exist the graph contradicts its own inputs,
// which is fatal.
func (p *Planner) BuildReport() (*Report, error) {
	report := &Report{
		Package:    p.pkg,
		Versions:   p.graph.Versions(),
		Tags:       p.graph.TagTotal(),
		TagGroups:  len(p.graph.Tags().Groups()),
		SharedRefs: p.graph.SharedRefs(),
	}

	for _, n := range p.graph.Nodes() {
		if n.ID == 0 {
			report.Dangling++
			continue
		}
		report.Digests++
		if n.Orphan {
			report.Orphans++
		}
		if n.DeletionTarget {
			report.DeletionTargets++
		}
	}

	if len(p.filter) == 0 && report.DeletionTargets > 0 {
		return nil, fmt.Errorf("%d deletion targets with no tag filter: graph contradicts its inputs", report.DeletionTargets)
	}
	return report, nil
}

// PlanDeletions returns the versions to delete in digest order: every
// ledger-backed deletion target, plus every orphan when deleteOrphans is
// set. A node that claims to be an orphan while carrying tags or an index
// reference is refused, fatally, before anything is deleted.
func (p *Planner) PlanDeletions(deleteOrphans bool) ([]Deletion, error) {
	var out []Deletion
	for _, n := range p.graph.Nodes() {
		if n.ID == 0 {
			continue
		}
		switch {
		case n.DeletionTarget:
			out = append(out, Deletion{ID: n.ID, Digest: n.Digest, Reason: ReasonTagMatch})
		case deleteOrphans && n.Orphan:
			if len(n.Tags) > 0 || n.IndexDigest != "" {
				return nil, &InconsistencyError{Digest: n.Digest, Detail: "orphan candidate has tags or an index reference"}
			}
			out = append(out, Deletion{ID: n.ID, Digest: n.Digest, Reason: ReasonOrphan})
		}
	}
	return out, nil
}

// ExecuteDeletions deletes the planned versions with at most parallel
// in-flight calls. A failed deletion is logged and does not stop the rest,
// but any failure fails the run. An abort observed between deletions stops
// scheduling new ones and returns the retained reason.
func (p *Planner) ExecuteDeletions(ctx context.Context, deletions []Deletion, parallel int) error {
	if parallel <= 0 {
		parallel = DefaultWorkers
	}

	var group errgroup.Group
	group.SetLimit(parallel)

	var failed atomic.Int64
	for _, del := range deletions {
		if err := p.signal.Err(); err != nil {
			break
		}
		del := del
		group.Go(func() error {
			if err := p.signal.Err(); err != nil {
				return nil
			}
			ctx, span := telemetry.StartDeleteSpan(ctx, del.ID, del.Digest.String())
			defer span.End()
			if err := p.ledger.DeleteVersion(ctx, del.ID); err != nil {
				failed.Add(1)
				if p.metrics != nil {
					p.metrics.Deletion(OutcomeError)
				}
				telemetry.RecordError(ctx, err)
				logger.Error("version deletion failed",
					logger.KeyVersionID, del.ID,
					logger.KeyDigest, del.Digest.String(),
					logger.KeyError, err.Error())
				return nil
			}
			if p.metrics != nil {
				p.metrics.Deletion(OutcomeOK)
			}
			logger.Info("version deleted",
				logger.KeyVersionID, del.ID,
				logger.KeyDigest, del.Digest.String(),
				logger.KeyOutcome, string(del.Reason))
			return nil
		})
	}
	_ = group.Wait()

	if reason := p.signal.Err(); reason != nil {
		return reason
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d deletions failed", n, len(deletions))
	}
	return nil
}
