package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so runs can be
// correlated and filtered in log aggregation.
const (
	// Run identification
	KeyRunID   = "run_id"  // Unique id for one invocation
	KeyPackage = "package" // OWNER/PACKAGE being swept
	KeyCommand = "command" // Subcommand name: list, report, delete

	// Ledger (package versions API)
	KeyVersionID = "version_id" // Numeric ledger version id
	KeyPage      = "page"       // Pagination page number
	KeyVersions  = "versions"   // Number of versions in scope

	// Registry (manifest graph)
	KeyDigest      = "digest"       // Content digest (sha256:...)
	KeyIndexDigest = "index_digest" // Digest of the referencing image index
	KeyReference   = "reference"    // Manifest reference (tag or digest)
	KeyMediaType   = "media_type"   // Manifest media type
	KeyManifests   = "manifests"    // Entries in a manifest list

	// Tag grouping
	KeyTag      = "tag"       // Single tag
	KeyTags     = "tags"      // Tag list
	KeyTagGroup = "tag_group" // Head tag of a tag group

	// Scheduling
	KeyWorkers   = "workers"   // Worker pool size
	KeySubmitted = "submitted" // Tasks submitted
	KeyCompleted = "completed" // Tasks completed
	KeyDropped   = "dropped"   // Tasks dropped on abort

	// Outcomes
	KeyStatus     = "status"      // HTTP status code
	KeyOutcome    = "outcome"     // Operation outcome: ok, error, skipped
	KeyError      = "error"       // Error message
	KeyReason     = "reason"      // Abort reason
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyAttempt    = "attempt"     // Retry attempt number
)

// Field constructors for type safety.

// RunID returns a slog.Attr for the run identifier
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// Package returns a slog.Attr for the OWNER/PACKAGE identifier
func Package(pkg string) slog.Attr {
	return slog.String(KeyPackage, pkg)
}

// Command returns a slog.Attr for the subcommand name
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// VersionID returns a slog.Attr for a ledger version id
func VersionID(id int64) slog.Attr {
	return slog.Int64(KeyVersionID, id)
}

// Page returns a slog.Attr for a pagination page number
func Page(n int) slog.Attr {
	return slog.Int(KeyPage, n)
}

// Digest returns a slog.Attr for a content digest
func Digest(d string) slog.Attr {
	return slog.String(KeyDigest, d)
}

// IndexDigest returns a slog.Attr for the digest of a referencing index
func IndexDigest(d string) slog.Attr {
	return slog.String(KeyIndexDigest, d)
}

// Reference returns a slog.Attr for a manifest reference
func Reference(ref string) slog.Attr {
	return slog.String(KeyReference, ref)
}

// MediaType returns a slog.Attr for a manifest media type
func MediaType(mt string) slog.Attr {
	return slog.String(KeyMediaType, mt)
}

// Tag returns a slog.Attr for a single tag
func Tag(t string) slog.Attr {
	return slog.String(KeyTag, t)
}

// Tags returns a slog.Attr for a tag list
func Tags(ts []string) slog.Attr {
	return slog.Any(KeyTags, ts)
}

// TagGroup returns a slog.Attr for a tag group's head tag
func TagGroup(head string) slog.Attr {
	return slog.String(KeyTagGroup, head)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Outcome returns a slog.Attr for an operation outcome
func Outcome(o string) slog.Attr {
	return slog.String(KeyOutcome, o)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
