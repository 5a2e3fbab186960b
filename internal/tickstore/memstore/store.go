// Package memstore is an in-memory tickstore.Store, used by tests and by
// library tests that don't need a Mongo deployment.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/tickstore"
)

// Store is a mutex-guarded, process-local tickstore.Store.
type Store struct {
	mu     sync.RWMutex
	chunks map[string][]tickstore.Chunk // symbol -> chunks, kept sorted by Start
}

// New builds an empty Store.
func New() *Store {
	return &Store{chunks: make(map[string][]tickstore.Chunk)}
}

// PutChunk implements tickstore.Store.
func (s *Store) PutChunk(ctx context.Context, c tickstore.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.chunks[c.Symbol]
	list = append(list, c)
	sort.Slice(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	s.chunks[c.Symbol] = list
	return nil
}

// ListChunks implements tickstore.Store.
func (s *Store) ListChunks(ctx context.Context, symbol string, from, to time.Time) ([]tickstore.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []tickstore.Chunk
	for _, c := range s.chunks[symbol] {
		if !from.IsZero() && c.End.Before(from) {
			continue
		}
		if !to.IsZero() && c.Start.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// MinDate implements tickstore.Store.
func (s *Store) MinDate(ctx context.Context, symbol string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.chunks[symbol]
	if len(list) == 0 {
		return time.Time{}, fmt.Errorf("tickstore: symbol %q: %w", symbol, chronoerr.ErrNoDataFound)
	}
	return list[0].Start, nil
}

// MaxDate implements tickstore.Store.
func (s *Store) MaxDate(ctx context.Context, symbol string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.chunks[symbol]
	if len(list) == 0 {
		return time.Time{}, fmt.Errorf("tickstore: symbol %q: %w", symbol, chronoerr.ErrNoDataFound)
	}
	max := list[0].End
	for _, c := range list[1:] {
		if c.End.After(max) {
			max = c.End
		}
	}
	return max, nil
}

// ListSymbols implements tickstore.Store.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.chunks))
	for symbol, list := range s.chunks {
		if len(list) > 0 {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSymbol implements tickstore.Store.
func (s *Store) DeleteSymbol(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, symbol)
	return nil
}
