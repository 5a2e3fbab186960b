// Package memstore is an in-memory segment.Store, intended for tests and
// for callers that don't need cross-process durability.
package memstore

import (
	"context"
	"slices"
	"sync"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/segment"
)

type key struct {
	symbol string
	sha    chunking.Sha
}

type record struct {
	compressed []byte
	parents    []segment.VersionID
}

// Store is a thread-safe, in-memory segment.Store.
type Store struct {
	mu      sync.Mutex
	records map[key]*record
}

var _ segment.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[key]*record)}
}

// PutSegment implements segment.Store.
func (s *Store) PutSegment(_ context.Context, symbol string, seg chunking.Segment, versionID segment.VersionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{symbol: symbol, sha: seg.Sha}
	r, ok := s.records[k]
	if !ok {
		s.records[k] = &record{
			compressed: slices.Clone(seg.Compressed),
			parents:    []segment.VersionID{versionID},
		}
		return true, nil
	}
	if slices.Contains(r.parents, versionID) {
		return false, nil
	}
	r.parents = append(r.parents, versionID)
	return false, nil
}

// GetSegments implements segment.Store.
func (s *Store) GetSegments(_ context.Context, symbol string, shas []chunking.Sha) ([]chunking.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chunking.Segment, len(shas))
	for i, sha := range shas {
		r, ok := s.records[key{symbol: symbol, sha: sha}]
		if !ok {
			return nil, chronoerr.ErrCorruptedData
		}
		out[i] = chunking.Segment{Index: i, Sha: sha, Compressed: slices.Clone(r.compressed)}
	}
	return out, nil
}

// Release implements segment.Store.
func (s *Store) Release(_ context.Context, symbol string, versionID segment.VersionID) ([]chunking.Sha, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emptied []chunking.Sha
	for k, r := range s.records {
		if k.symbol != symbol {
			continue
		}
		idx := slices.Index(r.parents, versionID)
		if idx == -1 {
			continue
		}
		r.parents = slices.Delete(r.parents, idx, idx+1)
		if len(r.parents) == 0 {
			emptied = append(emptied, k.sha)
		}
	}
	return emptied, nil
}

// DeleteOrphans implements segment.Store.
func (s *Store) DeleteOrphans(_ context.Context, symbol string, shas []chunking.Sha) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sha := range shas {
		delete(s.records, key{symbol: symbol, sha: sha})
	}
	return nil
}

// ListShas implements segment.Store.
func (s *Store) ListShas(_ context.Context, symbol string) ([]segment.Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []segment.Stored
	for k, r := range s.records {
		if k.symbol != symbol {
			continue
		}
		out = append(out, segment.Stored{
			Symbol:         symbol,
			Sha:            k.sha,
			Compressed:     slices.Clone(r.compressed),
			ParentVersions: slices.Clone(r.parents),
		})
	}
	return out, nil
}

// Count returns the number of distinct (symbol, sha) records currently
// stored, for tests asserting deduplication.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
