// Package segment implements a content-addressed segment store: segments
// are keyed by (symbol, sha) and reference-counted via the set of versions
// that point to them, so identical bytes written by concurrent writers
// converge on one stored copy.
package segment

import (
	"context"

	"chronovault/internal/chunking"
)

// VersionID identifies the version a segment write is scoped to, before
// the version document itself is durable. It is generated client-side so
// segments can be written before the version row exists.
type VersionID string

// Stored is a persisted segment record.
type Stored struct {
	Symbol         string
	Sha            chunking.Sha
	SegmentIndex   int
	Compressed     []byte
	ParentVersions []VersionID
}

// Store is the content-addressed segment store. Implementations must make
// PutSegment idempotent and safe under concurrent writers targeting the
// same (symbol, sha).
type Store interface {
	// PutSegment inserts the segment if (symbol, sha) is absent, otherwise
	// appends versionID to the existing record's ParentVersions. Idempotent:
	// calling it twice with the same versionID is a no-op on the second call.
	// wasNew reports whether this call inserted a fresh record rather than
	// attaching to an existing one.
	PutSegment(ctx context.Context, symbol string, seg chunking.Segment, versionID VersionID) (wasNew bool, err error)

	// GetSegments returns the segments for symbol matching shas, in the
	// order requested. Returns chronoerr.ErrCorruptedData if any sha is
	// missing.
	GetSegments(ctx context.Context, symbol string, shas []chunking.Sha) ([]chunking.Segment, error)

	// Release removes versionID from every segment of symbol that
	// references it. Returns the shas whose ParentVersions became empty
	// (eligible for deletion by the caller, e.g. library.PrunePreviousVersion).
	Release(ctx context.Context, symbol string, versionID VersionID) ([]chunking.Sha, error)

	// DeleteOrphans deletes the segments in shas unconditionally. Callers
	// must only pass shas already confirmed to have empty ParentVersions
	// (via Release, or fsck).
	DeleteOrphans(ctx context.Context, symbol string, shas []chunking.Sha) error

	// ListShas enumerates every sha currently stored for symbol, along
	// with its ParentVersions, for consistency checking (package fsck).
	ListShas(ctx context.Context, symbol string) ([]Stored, error)
}
