// Package memhub is an in-memory hub.Backend, for tests and for running
// chronovault without a MongoDB connection. It builds every library on top
// of the memstore implementations of segment.Store, version.Index,
// snapshot.Index, and tickstore.Store.
package memhub

import (
	"context"
	"fmt"
	"sync"

	"chronovault/internal/chronoerr"
	"chronovault/internal/hub"
	"chronovault/internal/library"
	"chronovault/internal/quota"
	segmentmem "chronovault/internal/segment/memstore"
	snapshotmem "chronovault/internal/snapshot/memstore"
	"chronovault/internal/tickstore"
	tickmem "chronovault/internal/tickstore/memstore"
	versionmem "chronovault/internal/version/memstore"
)

// Backend is a hub.Backend over in-memory stores, keyed by library name.
// Renaming or deleting a library only touches this bookkeeping map: the
// underlying memstore instances are symbol-scoped, not name-scoped.
type Backend struct {
	mu sync.Mutex

	byName map[string]kindedStore

	// usageBytes lets tests fix a library's sampled usage; absent entries
	// sample as zero.
	usageBytes map[string]int64

	resets int
}

type kindedStore struct {
	kind hub.Kind
}

var _ hub.Backend = (*Backend)(nil)

// New creates an empty in-memory Backend.
func New() *Backend {
	return &Backend{
		byName:     make(map[string]kindedStore),
		usageBytes: make(map[string]int64),
	}
}

// SetUsageBytes fixes the sampled usage QuotaSampler reports for name,
// for exercising quota enforcement in tests.
func (b *Backend) SetUsageBytes(name string, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usageBytes[name] = bytes
}

// Resets reports how many times Reset has been called.
func (b *Backend) Resets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets
}

func (b *Backend) NewVersionStore(ctx context.Context, name string, opts library.Options) (*library.Store, error) {
	store := library.New(segmentmem.New(), versionmem.New(), snapshotmem.New(), opts)
	b.mu.Lock()
	b.byName[name] = kindedStore{kind: hub.KindVersionStore}
	b.mu.Unlock()
	return store, nil
}

func (b *Backend) NewTickStore(ctx context.Context, name string, opts tickstore.Options) (*tickstore.Library, error) {
	lib := tickstore.New(tickmem.New(), opts)
	b.mu.Lock()
	b.byName[name] = kindedStore{kind: hub.KindTickStore}
	b.mu.Unlock()
	return lib, nil
}

func (b *Backend) RenameLibrary(ctx context.Context, oldName, newName string, kind hub.Kind) error {
	if kind == hub.KindTopLevelTickStore {
		// A top-level tick store is a routing table with no backing
		// collection of its own; Hub keeps its own bookkeeping.
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.byName[oldName]
	if !ok {
		return fmt.Errorf("memhub: rename %s: %w", oldName, chronoerr.ErrLibraryNotFound)
	}
	delete(b.byName, oldName)
	b.byName[newName] = e
	delete(b.usageBytes, oldName)
	return nil
}

func (b *Backend) DeleteLibrary(ctx context.Context, name string, kind hub.Kind) error {
	if kind == hub.KindTopLevelTickStore {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byName[name]; !ok {
		return fmt.Errorf("memhub: delete %s: %w", name, chronoerr.ErrLibraryNotFound)
	}
	delete(b.byName, name)
	delete(b.usageBytes, name)
	return nil
}

func (b *Backend) QuotaSampler(ctx context.Context, name string) (quota.Sampler, error) {
	return quotaSampler{backend: b, name: name}, nil
}

func (b *Backend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
	return nil
}

// quotaSampler implements quota.Sampler by reading Backend.usageBytes.
type quotaSampler struct {
	backend *Backend
	name    string
}

func (s quotaSampler) SampleBytes(ctx context.Context) (int64, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	return s.backend.usageBytes[s.name], nil
}
