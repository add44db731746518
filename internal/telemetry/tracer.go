package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for reconciliation spans.
const (
	AttrPackage      = "package.name"
	AttrOperation    = "regsweep.operation" // list, report, delete
	AttrReference    = "manifest.reference"
	AttrDigest       = "manifest.digest"
	AttrConstituents = "manifest.constituents"
	AttrVersionID    = "version.id"
	AttrTags         = "version.tags"
	AttrDryRun       = "delete.dry_run"
	AttrPlanned      = "delete.planned"
)

// Span names.
// Format: regsweep.<phase>.
const (
	// Root span for one reconciliation run
	SpanReconcile = "regsweep.reconcile"

	// One manifest index fetch on a worker
	SpanFetchIndex = "regsweep.fetch_index"

	// One ledger version deletion
	SpanDeleteVersion = "regsweep.delete_version"
)

// Package returns the package name attribute (OWNER/PACKAGE).
func Package(pkg string) attribute.KeyValue {
	return attribute.String(AttrPackage, pkg)
}

// Operation returns the run operation attribute.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Reference returns the manifest reference attribute (a tag).
func Reference(ref string) attribute.KeyValue {
	return attribute.String(AttrReference, ref)
}

// Digest returns the manifest digest attribute.
func Digest(d string) attribute.KeyValue {
	return attribute.String(AttrDigest, d)
}

// Constituents returns the constituent-count attribute of a fetched index.
func Constituents(n int) attribute.KeyValue {
	return attribute.Int(AttrConstituents, n)
}

// VersionID returns the ledger version id attribute.
func VersionID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrVersionID, id)
}

// Tags returns the version tags attribute.
func Tags(tags []string) attribute.KeyValue {
	return attribute.StringSlice(AttrTags, tags)
}

// DryRun returns the dry-run flag attribute.
func DryRun(dry bool) attribute.KeyValue {
	return attribute.Bool(AttrDryRun, dry)
}

// Planned returns the planned-deletions count attribute.
func Planned(n int) attribute.KeyValue {
	return attribute.Int(AttrPlanned, n)
}

// StartReconcileSpan starts the root span for one run.
func StartReconcileSpan(ctx context.Context, pkg, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Package(pkg), Operation(operation)}, attrs...)
	return StartSpan(ctx, SpanReconcile, trace.WithAttributes(all...))
}

// StartFetchSpan starts a span for one manifest index fetch.
func StartFetchSpan(ctx context.Context, reference string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Reference(reference)}, attrs...)
	return StartSpan(ctx, SpanFetchIndex, trace.WithAttributes(all...))
}

// StartDeleteSpan starts a span for one version deletion.
func StartDeleteSpan(ctx context.Context, id int64, d string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{VersionID(id), Digest(d)}, attrs...)
	return StartSpan(ctx, SpanDeleteVersion, trace.WithAttributes(all...))
}
