// Package memstore is an in-memory version.Index, for tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chronovault/internal/chronoerr"
	"chronovault/internal/version"
)

// Store is a thread-safe, in-memory version.Index.
type Store struct {
	mu       sync.Mutex
	counters map[string]int64
	versions map[string][]version.Version // sorted ascending by Number
}

var _ version.Index = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		counters: make(map[string]int64),
		versions: make(map[string][]version.Version),
	}
}

// NextVersionNumber implements version.Index.
func (s *Store) NextVersionNumber(_ context.Context, symbol string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[symbol]++
	return s.counters[symbol], nil
}

// CurrentCounter implements version.Index.
func (s *Store) CurrentCounter(_ context.Context, symbol string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[symbol], nil
}

// AdvanceCounterTo implements version.Index.
func (s *Store) AdvanceCounterTo(_ context.Context, symbol string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[symbol] < n {
		s.counters[symbol] = n
	}
	return nil
}

// Insert implements version.Index.
func (s *Store) Insert(_ context.Context, v version.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.versions[v.Symbol]
	for _, existing := range list {
		if existing.Number == v.Number {
			return fmt.Errorf("version: symbol %s version %d already exists", v.Symbol, v.Number)
		}
	}
	list = append(list, v)
	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	s.versions[v.Symbol] = list
	return nil
}

// Read implements version.Index.
func (s *Store) Read(_ context.Context, symbol string, asOf version.AsOf) (version.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.versions[symbol]
	if len(list) == 0 {
		return version.Version{}, fmt.Errorf("version: symbol %s: %w", symbol, chronoerr.ErrNoDataFound)
	}

	switch asOf.Kind {
	case version.AsOfLatest:
		return list[len(list)-1], nil
	case version.AsOfNumber:
		for _, v := range list {
			if v.Number == asOf.Number {
				return v, nil
			}
		}
		return version.Version{}, fmt.Errorf("version: symbol %s version %d: %w", symbol, asOf.Number, chronoerr.ErrNoDataFound)
	case version.AsOfTimestamp:
		var best *version.Version
		for i := range list {
			v := list[i]
			if !v.Timestamp.After(asOf.Timestamp) {
				if best == nil || v.Timestamp.After(best.Timestamp) {
					best = &list[i]
				}
			}
		}
		if best == nil {
			return version.Version{}, fmt.Errorf("version: symbol %s as of %s: %w", symbol, asOf.Timestamp, chronoerr.ErrNoDataFound)
		}
		return *best, nil
	default:
		return version.Version{}, fmt.Errorf("version: unknown AsOfKind %d", asOf.Kind)
	}
}

// ListVersions implements version.Index.
func (s *Store) ListVersions(_ context.Context, symbol string) ([]version.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]version.Version, len(s.versions[symbol]))
	copy(out, s.versions[symbol])
	return out, nil
}

// DeleteVersion implements version.Index.
func (s *Store) DeleteVersion(_ context.Context, symbol string, number int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[symbol]
	for i, v := range list {
		if v.Number == number {
			s.versions[symbol] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListSymbols implements version.Index.
func (s *Store) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.versions))
	for sym, list := range s.versions {
		if len(list) > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MaxVersionNumber implements version.Index.
func (s *Store) MaxVersionNumber(_ context.Context, symbol string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[symbol]
	if len(list) == 0 {
		return 0, nil
	}
	return list[len(list)-1].Number, nil
}
