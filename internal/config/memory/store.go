// Package memory provides an in-memory config.Store implementation.
// Intended for tests; configuration is not persisted across restarts.
package memory

import (
	"context"
	"sync"

	"chronovault/internal/config"
)

// Store is an in-memory config.Store.
type Store struct {
	mu  sync.RWMutex
	cfg *config.Config
}

var _ config.Store = (*Store)(nil)

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return &Store{}
}

// Load implements config.Store.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, nil
	}
	cp := *s.cfg
	cp.Libraries = append([]config.LibraryConfig(nil), s.cfg.Libraries...)
	return &cp, nil
}

// Save implements config.Store.
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	cp.Libraries = append([]config.LibraryConfig(nil), cfg.Libraries...)
	s.cfg = &cp
	return nil
}
