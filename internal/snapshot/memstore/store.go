// Package memstore is an in-memory snapshot.Index, for tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chronovault/internal/chronoerr"
	"chronovault/internal/snapshot"
)

// Store is a thread-safe, in-memory snapshot.Index.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]snapshot.Snapshot
}

var _ snapshot.Index = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{snapshots: make(map[string]snapshot.Snapshot)}
}

// Create implements snapshot.Index.
func (s *Store) Create(_ context.Context, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[snap.Name]; exists {
		return fmt.Errorf("snapshot: %s: %w", snap.Name, chronoerr.ErrDuplicateSnapshot)
	}
	s.snapshots[snap.Name] = snap
	return nil
}

// Get implements snapshot.Index.
func (s *Store) Get(_ context.Context, name string) (snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot: %s: %w", name, chronoerr.ErrNoDataFound)
	}
	return snap, nil
}

// Delete implements snapshot.Index.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, name)
	return nil
}

// List implements snapshot.Index.
func (s *Store) List(_ context.Context) ([]snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]snapshot.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// VersionOf implements snapshot.Index.
func (s *Store) VersionOf(_ context.Context, name, symbol string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return 0, fmt.Errorf("snapshot: %s: %w", name, chronoerr.ErrNoDataFound)
	}
	n, ok := snap.Versions[symbol]
	if !ok {
		return 0, fmt.Errorf("snapshot: %s does not include symbol %s: %w", name, symbol, chronoerr.ErrNoDataFound)
	}
	return n, nil
}

// ReferencedVersions implements snapshot.Index.
func (s *Store) ReferencedVersions(_ context.Context, symbol string) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]bool)
	for _, snap := range s.snapshots {
		if n, ok := snap.Versions[symbol]; ok {
			out[n] = true
		}
	}
	return out, nil
}
