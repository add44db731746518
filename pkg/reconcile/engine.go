// Package reconcile rebuilds the digest graph of one container package: it
// enumerates the ledger's version records, fetches the manifest list behind
// every tagged index, and folds both into an in-memory graph that the
// planner turns into listings, reports and deletion batches.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/marmos91/regsweep/internal/logger"
	"github.com/marmos91/regsweep/internal/telemetry"
	"github.com/marmos91/regsweep/pkg/abort"
)

// Ledger enumerates and deletes package versions. EachVersion walks records
// in ledger order, one callback at a time; a callback error stops the walk
// and is returned as-is. The walk is not restartable.
type Ledger interface {
	EachVersion(ctx context.Context, fn func(Version) error) error
	DeleteVersion(ctx context.Context, id int64) error
}

// Registry resolves a manifest reference to the digests its image index
// lists. Implementations return the document's digests exactly; the engine
// is the one that adds the index's own digest to its constituent set.
type Registry interface {
	ManifestDigests(ctx context.Context, reference string) ([]digest.Digest, error)
}

// Metrics receives counting hooks from the engine and planner. Implementations
// must be safe for concurrent use; a nil Metrics disables recording.
type Metrics interface {
	VersionScanned()
	IndexFetch(outcome string)
	Deletion(outcome string)
}

// Metric outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// EmptyIndexError reports a tagged index whose manifest list has no entries.
// The ledger and the registry disagree about the package's shape, so the run
// aborts rather than plan deletions off a graph known to be wrong.
type EmptyIndexError struct {
	Reference string
	Index     digest.Digest
}

func (e *EmptyIndexError) Error() string {
	return fmt.Sprintf("manifest list for %q (%s) is empty", e.Reference, e.Index)
}

// Options configures a reconciliation run.
type Options struct {
	// Package is the OWNER/PACKAGE identifier, used in logs.
	Package string
	// DeleteTags is the deletion filter. A tagged index whose group
	// intersects it becomes a deletion target, along with everything its
	// index references.
	DeleteTags []string
	// Workers bounds concurrent manifest fetches. Zero means DefaultWorkers.
	Workers int
	// QueueSize is the fetch queue capacity. Zero means DefaultQueueSize.
	QueueSize int
}

// Engine drives one reconciliation run.
type Engine struct {
	ledger   Ledger
	registry Registry
	signal   *abort.Signal
	metrics  Metrics
	opts     Options
	filter   map[string]struct{}
}

// NewEngine wires an engine. metrics may be nil.
func NewEngine(ledger Ledger, registry Registry, signal *abort.Signal, metrics Metrics, opts Options) *Engine {
	filter := make(map[string]struct{}, len(opts.DeleteTags))
	for _, tag := range opts.DeleteTags {
		filter[tag] = struct{}{}
	}
	return &Engine{
		ledger:   ledger,
		registry: registry,
		signal:   signal,
		metrics:  metrics,
		opts:     opts,
		filter:   filter,
	}
}

// Reconcile enumerates every version record, fetches every tagged index and
// returns the folded graph. The returned graph is complete only when err is
// nil; on abort the retained reason comes back and the graph holds whatever
// was folded before the abort.
//
// Checkpoints: the abort signal is observed between enumerated records,
// before each fetch starts, and once after the fetch join.
func (e *Engine) Reconcile(ctx context.Context) (*Graph, error) {
	start := time.Now()
	graph := NewGraph()
	sched := NewScheduler(e.signal, e.opts.Workers, e.opts.QueueSize)

	logger.Info("reconciling package",
		logger.KeyPackage, e.opts.Package,
		logger.KeyWorkers, e.opts.Workers,
		logger.KeyTags, e.opts.DeleteTags)

	enumErr := e.ledger.EachVersion(ctx, func(v Version) error {
		if err := e.signal.Err(); err != nil {
			return err
		}
		e.observe(graph, sched, v)
		return nil
	})

	// Single join: every accepted fetch has completed or been dropped after
	// this returns.
	sched.Join()

	if enumErr != nil && !e.signal.Aborted() {
		e.signal.Abort(fmt.Errorf("enumerate package versions: %w", enumErr))
	}
	if reason := e.signal.Err(); reason != nil {
		return graph, reason
	}

	for _, d := range graph.Dangling() {
		logger.Error("index references a digest the ledger does not have",
			logger.KeyDigest, d.String())
	}
	if err := graph.CheckConsistency(); err != nil {
		return graph, err
	}

	logger.Info("reconciliation complete",
		logger.KeyPackage, e.opts.Package,
		logger.KeyVersions, graph.Versions(),
		logger.KeyDurationMs, logger.Duration(start))
	return graph, nil
}

// observe folds one enumerated record and, for tagged indexes, schedules the
// manifest fetch. Grouping happens here, before the fetch is submitted, so
// the tag table never races a fetch resolution.
func (e *Engine) observe(graph *Graph, sched *Scheduler, v Version) {
	if e.metrics != nil {
		e.metrics.VersionScanned()
	}

	group := graph.ObserveVersion(v)

	logger.Debug("version enumerated",
		logger.KeyVersionID, v.ID,
		logger.KeyDigest, v.Digest.String(),
		logger.KeyTags, v.Tags)

	if group == nil {
		return
	}

	target := group.Matches(e.filter)
	graph.SetDeletionTarget(v.Digest, target)

	head := group.Head()
	index := v.Digest
	submitted := sched.Submit(func(ctx context.Context) {
		e.fetchIndex(ctx, graph, index, head, target)
	})
	if !submitted {
		logger.Debug("fetch not scheduled, run aborted",
			logger.KeyReference, head,
			logger.KeyIndexDigest, index.String())
	}
}

// fetchIndex resolves one index's manifest list and folds it into the graph.
// Any fetch failure is fatal, a missing manifest included: a tag the ledger
// lists must resolve. An empty manifest list is fatal too.
func (e *Engine) fetchIndex(ctx context.Context, graph *Graph, index digest.Digest, ref string, target bool) {
	if e.signal.Aborted() {
		return
	}

	ctx, span := telemetry.StartFetchSpan(ctx, ref, telemetry.Digest(index.String()))
	defer span.End()

	start := time.Now()
	digests, err := e.registry.ManifestDigests(ctx, ref)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IndexFetch(OutcomeError)
		}
		telemetry.RecordError(ctx, err)
		if e.signal.Aborted() {
			// The request unwound because some earlier abort tripped the
			// context; keep that first reason.
			return
		}
		e.signal.Abort(fmt.Errorf("fetch manifest index %q: %w", ref, err))
		return
	}
	if len(digests) == 0 {
		if e.metrics != nil {
			e.metrics.IndexFetch(OutcomeError)
		}
		err := &EmptyIndexError{Reference: ref, Index: index}
		telemetry.RecordError(ctx, err)
		e.signal.Abort(err)
		return
	}

	// The index belongs to its own constituent set. The client returns only
	// what the document lists, so the self reference is added here, once.
	all := make([]digest.Digest, 0, len(digests)+1)
	all = append(all, digests...)
	all = append(all, index)

	graph.ApplyIndex(index, all, target)

	if e.metrics != nil {
		e.metrics.IndexFetch(OutcomeOK)
	}
	telemetry.SetAttributes(ctx, telemetry.Constituents(len(all)))
	logger.Debug("manifest index resolved",
		logger.KeyReference, ref,
		logger.KeyIndexDigest, index.String(),
		logger.KeyManifests, len(digests),
		logger.KeyDurationMs, logger.Duration(start))
}
