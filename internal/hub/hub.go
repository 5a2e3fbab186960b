// Package hub implements the Arctic Hub: the connection owner and library
// registry that every client request against chronovault goes through. It
// uses a registry-of-components pattern (sync.RWMutex-guarded maps,
// component-scoped logging) over the three library flavors.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chronovault/internal/authprovider"
	"chronovault/internal/chronoerr"
	"chronovault/internal/config"
	"chronovault/internal/library"
	"chronovault/internal/logging"
	"chronovault/internal/quota"
	"chronovault/internal/tickstore"
	"chronovault/internal/toplevel"
)

// Kind identifies which of the three library flavors a name resolves to.
type Kind int

const (
	KindVersionStore Kind = iota
	KindTickStore
	KindTopLevelTickStore
)

func (k Kind) String() string {
	switch k {
	case KindVersionStore:
		return "version"
	case KindTickStore:
		return "tick"
	case KindTopLevelTickStore:
		return "toplevel"
	default:
		return "unknown"
	}
}

// Namespace returns the "db" part of a "db.base" library name, or "" if
// name carries no namespace separator.
func Namespace(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// InitOptions configures a newly initialized library, overriding the hub's
// bootstrap defaults.
type InitOptions struct {
	Kind Kind

	// Quota is the library's byte quota; nil uses the hub default.
	Quota *int64

	// GracePeriod overrides library.Options.PruneGracePeriod for
	// KindVersionStore libraries.
	GracePeriod *time.Duration

	// SegmentTargetSize overrides chunking's target size for
	// KindVersionStore libraries.
	SegmentTargetSize *int

	// TickGroupMode selects tickstore's chunk grouping strategy for
	// KindTickStore libraries (a `segment: day/month` option).
	TickGroupMode tickstore.GroupMode

	// TickTargetRowCount overrides tickstore's row-count grouping target.
	TickTargetRowCount int

	// TopLevelDropUnrouted restores the legacy silent-drop behavior for
	// KindTopLevelTickStore libraries instead of failing fast on unrouted rows.
	TopLevelDropUnrouted bool
}

// Backend constructs the storage-backed pieces a library needs, keyed by
// its full "namespace.base" name, and owns the underlying connection. A
// production Backend wraps a *mongo.Client; tests use an in-memory one.
type Backend interface {
	NewVersionStore(ctx context.Context, name string, opts library.Options) (*library.Store, error)
	NewTickStore(ctx context.Context, name string, opts tickstore.Options) (*tickstore.Library, error)
	RenameLibrary(ctx context.Context, oldName, newName string, kind Kind) error
	DeleteLibrary(ctx context.Context, name string, kind Kind) error

	// QuotaSampler builds the byte-usage sampler backing name's quota
	// accountant (a Mongo dbStats sampler in production, a fake in tests).
	QuotaSampler(ctx context.Context, name string) (quota.Sampler, error)

	// Reset discards any cached connection/credential state. Existing
	// library handles continue to work: a Backend implementation is
	// expected to hand out handles that resolve the live connection
	// indirectly (e.g. through a pointer it can swap), rather than ones
	// wired directly to a connection snapshot.
	Reset(ctx context.Context) error
}

// Handle is the tagged-variant capability set Library(name) resolves to:
// exactly one of the three pointers is non-nil, matching Kind.
type Handle struct {
	Kind              Kind
	VersionStore      *library.Store
	TickStore         *tickstore.Library
	TopLevelTickStore *toplevel.Store
}

type entry struct {
	name   string
	handle Handle
}

// Options configures a Hub.
type Options struct {
	// ConfigStore persists bootstrap defaults across restarts. Nil means
	// defaults are in-memory only for this process's lifetime.
	ConfigStore config.Store

	// Auth caches the connection credentials Backend authenticates with.
	// Nil means the Backend resolves its own credentials and Reset only
	// invalidates the Backend's connection, not a separate cache.
	Auth *authprovider.Cache

	Logger *slog.Logger
}

// Hub is the library registry and connection owner.
type Hub struct {
	mu       sync.RWMutex
	backend  Backend
	libs     map[string]*entry
	toplevel map[string]*toplevel.Store // KindTopLevelTickStore children need mutable Add access

	defaultQuota             int64
	defaultGracePeriod       time.Duration
	defaultSegmentTargetSize int
	defaultTickTargetRows    int

	cfgStore config.Store
	auth     *authprovider.Cache
	logger   *slog.Logger
}

// New builds a Hub over backend. If opts.ConfigStore has a saved Config,
// its defaults are loaded; otherwise package config's defaults apply.
func New(ctx context.Context, backend Backend, opts Options) (*Hub, error) {
	logger := logging.Default(opts.Logger).With("component", "hub")

	h := &Hub{
		backend:  backend,
		libs:     make(map[string]*entry),
		toplevel: make(map[string]*toplevel.Store),
		cfgStore: opts.ConfigStore,
		auth:     opts.Auth,
		logger:   logger,
	}

	cfg := config.DefaultConfig()
	if opts.ConfigStore != nil {
		loaded, err := opts.ConfigStore.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("hub: load bootstrap config: %w", err)
		}
		if loaded != nil {
			cfg = loaded
		}
	}
	h.defaultQuota = cfg.DefaultQuotaBytes
	h.defaultGracePeriod = time.Duration(cfg.DefaultGracePeriodSeconds) * time.Second
	h.defaultSegmentTargetSize = cfg.DefaultSegmentTargetSize
	h.defaultTickTargetRows = cfg.DefaultTickTargetRowCount

	return h, nil
}

func (h *Hub) saveConfig(ctx context.Context) error {
	if h.cfgStore == nil {
		return nil
	}
	libs := make([]config.LibraryConfig, 0, len(h.libs))
	for name, e := range h.libs {
		libs = append(libs, config.LibraryConfig{Name: name, Kind: e.handle.Kind.String()})
	}
	cfg := &config.Config{
		DefaultQuotaBytes:         h.defaultQuota,
		DefaultGracePeriodSeconds: int64(h.defaultGracePeriod / time.Second),
		DefaultSegmentTargetSize:  h.defaultSegmentTargetSize,
		DefaultTickTargetRowCount: h.defaultTickTargetRows,
		Libraries:                 libs,
	}
	return h.cfgStore.Save(ctx, cfg)
}

// InitializeLibrary creates the library descriptor and type-specific
// collections/indexes.
func (h *Hub) InitializeLibrary(ctx context.Context, name string, opts InitOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.libs[name]; ok {
		return fmt.Errorf("hub: initialize %s: %w", name, chronoerr.ErrDuplicateLibrary)
	}

	q := h.defaultQuota
	if opts.Quota != nil {
		q = *opts.Quota
	}

	var handle Handle
	handle.Kind = opts.Kind

	switch opts.Kind {
	case KindVersionStore:
		grace := h.defaultGracePeriod
		if opts.GracePeriod != nil {
			grace = *opts.GracePeriod
		}
		segSize := h.defaultSegmentTargetSize
		if opts.SegmentTargetSize != nil {
			segSize = *opts.SegmentTargetSize
		}
		accountant, err := h.newAccountant(ctx, name, q)
		if err != nil {
			return fmt.Errorf("hub: initialize version store %s: %w", name, err)
		}
		store, err := h.backend.NewVersionStore(ctx, name, library.Options{
			SegmentTargetSize: segSize,
			PruneGracePeriod:  grace,
			Quota:             accountant,
			Logger:            h.logger,
		})
		if err != nil {
			return fmt.Errorf("hub: initialize version store %s: %w", name, err)
		}
		handle.VersionStore = store

	case KindTickStore:
		targetRows := h.defaultTickTargetRows
		if opts.TickTargetRowCount > 0 {
			targetRows = opts.TickTargetRowCount
		}
		accountant, err := h.newAccountant(ctx, name, q)
		if err != nil {
			return fmt.Errorf("hub: initialize tick store %s: %w", name, err)
		}
		store, err := h.backend.NewTickStore(ctx, name, tickstore.Options{
			GroupMode:      opts.TickGroupMode,
			TargetRowCount: targetRows,
			Quota:          accountant,
			Logger:         h.logger,
		})
		if err != nil {
			return fmt.Errorf("hub: initialize tick store %s: %w", name, err)
		}
		handle.TickStore = store

	case KindTopLevelTickStore:
		// Resolve children live against h.libs rather than snapshotting it,
		// so a tick-store library initialized after this top-level store
		// still resolves once a route names it.
		resolve := func(childName string) (*tickstore.Library, bool) {
			h.mu.RLock()
			defer h.mu.RUnlock()
			e, ok := h.libs[childName]
			if !ok || e.handle.Kind != KindTickStore {
				return nil, false
			}
			return e.handle.TickStore, true
		}
		top := toplevel.New(resolve, toplevel.Options{DropUnrouted: opts.TopLevelDropUnrouted, Logger: h.logger})
		handle.TopLevelTickStore = top
		h.toplevel[name] = top

	default:
		return fmt.Errorf("hub: initialize %s: unknown kind %d", name, opts.Kind)
	}

	h.libs[name] = &entry{name: name, handle: handle}
	h.logger.Info("initialized library", "name", name, "kind", handle.Kind)
	return h.saveConfig(ctx)
}

func (h *Hub) newAccountant(ctx context.Context, name string, bytesLimit int64) (*quota.Accountant, error) {
	sampler, err := h.backend.QuotaSampler(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("quota sampler: %w", err)
	}
	return quota.NewAccountant(name, sampler, quota.Quota{MaxBytes: bytesLimit}, time.Minute), nil
}

// RenameLibrary renames a library, only within the same namespace.
func (h *Hub) RenameLibrary(ctx context.Context, oldName, newName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.libs[oldName]
	if !ok {
		return fmt.Errorf("hub: rename %s: %w", oldName, chronoerr.ErrLibraryNotFound)
	}
	if Namespace(oldName) != Namespace(newName) {
		return fmt.Errorf("hub: rename %s to %s: %w", oldName, newName, chronoerr.ErrInvalidRename)
	}
	if _, ok := h.libs[newName]; ok {
		return fmt.Errorf("hub: rename %s to %s: %w", oldName, newName, chronoerr.ErrDuplicateLibrary)
	}

	if err := h.backend.RenameLibrary(ctx, oldName, newName, e.handle.Kind); err != nil {
		return fmt.Errorf("hub: rename %s to %s: %w", oldName, newName, err)
	}

	delete(h.libs, oldName)
	e.name = newName
	h.libs[newName] = e
	if top, ok := h.toplevel[oldName]; ok {
		delete(h.toplevel, oldName)
		h.toplevel[newName] = top
	}
	h.logger.Info("renamed library", "old", oldName, "new", newName)
	return h.saveConfig(ctx)
}

// DeleteLibrary drops all collections belonging to name without affecting
// sibling libraries in the same namespace.
func (h *Hub) DeleteLibrary(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.libs[name]
	if !ok {
		return fmt.Errorf("hub: delete %s: %w", name, chronoerr.ErrLibraryNotFound)
	}
	if err := h.backend.DeleteLibrary(ctx, name, e.handle.Kind); err != nil {
		return fmt.Errorf("hub: delete %s: %w", name, err)
	}
	delete(h.libs, name)
	delete(h.toplevel, name)
	h.logger.Info("deleted library", "name", name)
	return h.saveConfig(ctx)
}

// Reset discards the current connection and credentials cache. Existing
// library handles remain valid; the Backend implementation is responsible
// for routing them through the refreshed connection lazily.
func (h *Hub) Reset(ctx context.Context) error {
	h.logger.Info("resetting connection")
	if h.auth != nil {
		h.auth.Invalidate()
	}
	return h.backend.Reset(ctx)
}

// GetLibraryType returns the Kind name was initialized with.
func (h *Hub) GetLibraryType(name string) (Kind, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.libs[name]
	if !ok {
		return 0, fmt.Errorf("hub: get type %s: %w", name, chronoerr.ErrLibraryNotFound)
	}
	return e.handle.Kind, nil
}

// ListLibraries returns every registered library name.
func (h *Hub) ListLibraries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.libs))
	for name := range h.libs {
		out = append(out, name)
	}
	return out
}

// Library resolves name to its tagged-variant capability set.
func (h *Hub) Library(name string) (Handle, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.libs[name]
	if !ok {
		return Handle{}, fmt.Errorf("hub: library %s: %w", name, chronoerr.ErrLibraryNotFound)
	}
	return e.handle, nil
}

// AddRoute registers a date range on a top-level tick store's routing
// table, resolving the child by name the way InitializeLibrary did.
func (h *Hub) AddRoute(ctx context.Context, topLevelName, childName string, start, end time.Time) error {
	h.mu.RLock()
	top, ok := h.toplevel[topLevelName]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("hub: add route: %w: %s", chronoerr.ErrLibraryNotFound, topLevelName)
	}
	return top.Add(ctx, childName, start, end)
}

// GetQuota returns the quota configured for name's library.
func (h *Hub) GetQuota(name string) (quota.Quota, error) {
	handle, err := h.Library(name)
	if err != nil {
		return quota.Quota{}, err
	}
	switch handle.Kind {
	case KindVersionStore:
		return handle.VersionStore.GetQuota(), nil
	case KindTickStore:
		return handle.TickStore.GetQuota(), nil
	default:
		return quota.Quota{}, nil
	}
}

// SetQuota installs a new quota on name's library.
func (h *Hub) SetQuota(name string, q quota.Quota) error {
	handle, err := h.Library(name)
	if err != nil {
		return err
	}
	switch handle.Kind {
	case KindVersionStore:
		handle.VersionStore.SetQuota(q)
	case KindTickStore:
		handle.TickStore.SetQuota(q)
	}
	return nil
}

// CheckQuota reports chronoerr.ErrQuotaExceeded if name's library is
// currently over its quota.
func (h *Hub) CheckQuota(ctx context.Context, name string) error {
	handle, err := h.Library(name)
	if err != nil {
		return err
	}
	switch handle.Kind {
	case KindVersionStore:
		return handle.VersionStore.CheckQuota(ctx)
	case KindTickStore:
		return handle.TickStore.CheckQuota(ctx)
	default:
		return nil
	}
}
