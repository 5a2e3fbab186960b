// Package snapshot implements named, immutable point-in-time markers: a
// snapshot pins a version number per symbol, identified by a human-chosen
// name that must be unique across the whole library.
package snapshot

import (
	"context"
	"time"
)

// Snapshot is a named pin of one version per symbol at creation time. Once
// created it never changes; deleting it only removes the pin, never the
// versions or segments it references.
type Snapshot struct {
	Name      string
	CreatedAt time.Time
	Versions  map[string]int64 // symbol -> version number, as of creation
	Metadata  map[string]any
}

// Index persists snapshots. Implementations must enforce name uniqueness;
// Create returns chronoerr.ErrDuplicateSnapshot on collision.
type Index interface {
	// Create durably records s. Fails with chronoerr.ErrDuplicateSnapshot
	// if a snapshot with s.Name already exists.
	Create(ctx context.Context, s Snapshot) error

	// Get returns the named snapshot, or chronoerr.ErrNoDataFound if it
	// does not exist.
	Get(ctx context.Context, name string) (Snapshot, error)

	// Delete removes the named snapshot's pin. Idempotent: deleting an
	// absent name is not an error.
	Delete(ctx context.Context, name string) error

	// List returns every snapshot, ordered by CreatedAt ascending.
	List(ctx context.Context) ([]Snapshot, error)

	// VersionOf returns the version number symbol was pinned to by the
	// named snapshot, or chronoerr.ErrNoDataFound if the snapshot doesn't
	// exist or didn't include symbol.
	VersionOf(ctx context.Context, name, symbol string) (int64, error)

	// ReferencedVersions returns the set of version numbers of symbol
	// pinned by any snapshot, used by library.PrunePreviousVersion to
	// honor "no snapshot-referenced version is ever removed".
	ReferencedVersions(ctx context.Context, symbol string) (map[int64]bool, error)
}
