// Package library implements the version-store facade: the per-library
// surface clients actually call (write, read, append, snapshot, prune,
// quota), built on top of chunking, segment.Store, version.Index, and
// snapshot.Index.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/logging"
	"chronovault/internal/metrics"
	"chronovault/internal/quota"
	"chronovault/internal/segment"
	"chronovault/internal/snapshot"
	"chronovault/internal/table"
	"chronovault/internal/version"
)

// Options configures a Store's behavior beyond its package defaults.
type Options struct {
	// SegmentTargetSize overrides chunking.DefaultTargetSize. <= 0 keeps
	// the default.
	SegmentTargetSize int

	// PruneGracePeriod is how long a version must sit unreferenced before
	// PrunePreviousVersion considers it eligible, guarding against racing
	// a reader that already resolved an older version id. Zero uses the
	// 10-minute default.
	PruneGracePeriod time.Duration

	// Quota enforces a storage limit before writes. Nil means unlimited.
	Quota *quota.Accountant

	Logger *slog.Logger
}

const defaultPruneGracePeriod = 10 * time.Minute

// Store is the per-library version-store facade.
type Store struct {
	segments  segment.Store
	versions  version.Index
	snapshots snapshot.Index

	targetSize  int
	gracePeriod time.Duration
	quota       *quota.Accountant
	logger      *slog.Logger
}

// New builds a Store over the given segment, version, and snapshot
// backends.
func New(segments segment.Store, versions version.Index, snapshots snapshot.Index, opts Options) *Store {
	targetSize := opts.SegmentTargetSize
	if targetSize <= 0 {
		targetSize = chunking.DefaultTargetSize
	}
	gracePeriod := opts.PruneGracePeriod
	if gracePeriod == 0 {
		gracePeriod = defaultPruneGracePeriod
	}
	return &Store{
		segments:    segments,
		versions:    versions,
		snapshots:   snapshots,
		targetSize:  targetSize,
		gracePeriod: gracePeriod,
		quota:       opts.Quota,
		logger:      logging.Default(opts.Logger).With("component", "library"),
	}
}

// AsOfKind selects how Read resolves a point in time.
type AsOfKind int

const (
	AsOfLatest AsOfKind = iota
	AsOfNumber
	AsOfTimestamp
	AsOfSnapshot
)

// AsOf selects a point-in-time read, extending version.AsOf with the
// snapshot-name form (as_of=snapshot_name), resolved here
// rather than in package version (see version.AsOf's doc comment).
type AsOf struct {
	Kind         AsOfKind
	Number       int64
	Timestamp    time.Time
	SnapshotName string
}

func Latest() AsOf                    { return AsOf{Kind: AsOfLatest} }
func AtNumber(n int64) AsOf           { return AsOf{Kind: AsOfNumber, Number: n} }
func AtTimestamp(t time.Time) AsOf    { return AsOf{Kind: AsOfTimestamp, Timestamp: t} }
func AtSnapshot(name string) AsOf     { return AsOf{Kind: AsOfSnapshot, SnapshotName: name} }

func (s *Store) resolve(ctx context.Context, symbol string, asOf AsOf) (version.AsOf, error) {
	switch asOf.Kind {
	case AsOfLatest:
		return version.Latest(), nil
	case AsOfNumber:
		return version.AtNumber(asOf.Number), nil
	case AsOfTimestamp:
		return version.AtTimestamp(asOf.Timestamp), nil
	case AsOfSnapshot:
		n, err := s.snapshots.VersionOf(ctx, asOf.SnapshotName, symbol)
		if err != nil {
			return version.AsOf{}, err
		}
		return version.AtNumber(n), nil
	default:
		return version.AsOf{}, fmt.Errorf("library: unknown AsOfKind %d", asOf.Kind)
	}
}

// Write chunks tbl, reserves a version number, writes segments under a
// tentative version id, inserts the version document, and optionally
// prunes.
func (s *Store) Write(ctx context.Context, symbol string, tbl table.Table, metadata table.Metadata, prunePrevious bool) (version.Version, error) {
	if s.quota != nil {
		if err := s.quota.Check(ctx); err != nil {
			return version.Version{}, err
		}
	}

	segs, descriptor, err := chunking.Chunk(symbol, tbl, s.targetSize)
	if err != nil {
		return version.Version{}, fmt.Errorf("library: chunk %s: %w", symbol, err)
	}

	num, err := s.versions.NextVersionNumber(ctx, symbol)
	if err != nil {
		return version.Version{}, fmt.Errorf("library: reserve version number for %s: %w", symbol, err)
	}
	versionID := segment.VersionID(uuid.NewString())

	shas := make([]chunking.Sha, len(segs))
	for i, seg := range segs {
		wasNew, err := s.segments.PutSegment(ctx, symbol, seg, versionID)
		if err != nil {
			return version.Version{}, fmt.Errorf("library: put segment %d for %s: %w", seg.Index, symbol, err)
		}
		metrics.SegmentsWritten.WithLabelValues(dedupOutcome(wasNew)).Inc()
		shas[i] = seg.Sha
	}

	v := version.Version{
		Symbol:      symbol,
		Number:      num,
		ID:          versionID,
		SegmentShas: shas,
		Descriptor:  descriptor,
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}
	if n := tbl.Len(); n > 0 {
		v.LastIndex = tbl.Index()[n-1]
	}

	if err := s.versions.Insert(ctx, v); err != nil {
		return version.Version{}, fmt.Errorf("library: insert version %s/%d: %w", symbol, num, err)
	}
	s.logger.Info("wrote version", "symbol", symbol, "version", num, "segments", len(segs))

	if prunePrevious {
		if err := s.PrunePreviousVersion(ctx, symbol); err != nil {
			s.logger.Warn("prune after write failed", "symbol", symbol, "error", err)
		}
	}

	return v, nil
}

// Append reuses the previous version's segment shas and only
// chunks+writes the incremental tail.
func (s *Store) Append(ctx context.Context, symbol string, tail table.Table, metadata table.Metadata, prunePrevious bool) (version.Version, error) {
	prev, err := s.versions.Read(ctx, symbol, version.Latest())
	if chronoerr.KindOf(err) == chronoerr.KindNoDataFound {
		return s.Write(ctx, symbol, tail, metadata, prunePrevious)
	}
	if err != nil {
		return version.Version{}, fmt.Errorf("library: append %s: read previous version: %w", symbol, err)
	}

	if tail.Len() > 0 && !tail.Index()[0].After(prev.LastIndex) {
		return version.Version{}, fmt.Errorf("library: append %s: first new index %s is not after previous last index %s: %w",
			symbol, tail.Index()[0], prev.LastIndex, chronoerr.ErrUnorderedData)
	}

	if s.quota != nil {
		if err := s.quota.Check(ctx); err != nil {
			return version.Version{}, err
		}
	}

	tailSegs, tailDescriptor, err := chunking.ChunkFrom(symbol, tail, s.targetSize, len(prev.SegmentShas))
	if err != nil {
		return version.Version{}, fmt.Errorf("library: chunk append tail for %s: %w", symbol, err)
	}

	num, err := s.versions.NextVersionNumber(ctx, symbol)
	if err != nil {
		return version.Version{}, fmt.Errorf("library: reserve version number for %s: %w", symbol, err)
	}
	versionID := segment.VersionID(uuid.NewString())

	// The new version references every one of the previous version's
	// segments too, so this write must also register versionID as a
	// parent of those unchanged segments (they are not recompressed, just
	// re-referenced).
	prevSegs, err := s.segments.GetSegments(ctx, symbol, prev.SegmentShas)
	if err != nil {
		return version.Version{}, fmt.Errorf("library: append %s: reload previous segments: %w", symbol, err)
	}
	for _, seg := range prevSegs {
		wasNew, err := s.segments.PutSegment(ctx, symbol, seg, versionID)
		if err != nil {
			return version.Version{}, fmt.Errorf("library: append %s: re-reference segment %d: %w", symbol, seg.Index, err)
		}
		metrics.SegmentsWritten.WithLabelValues(dedupOutcome(wasNew)).Inc()
	}

	shas := make([]chunking.Sha, 0, len(prev.SegmentShas)+len(tailSegs))
	shas = append(shas, prev.SegmentShas...)
	for _, seg := range tailSegs {
		wasNew, err := s.segments.PutSegment(ctx, symbol, seg, versionID)
		if err != nil {
			return version.Version{}, fmt.Errorf("library: append %s: put tail segment %d: %w", symbol, seg.Index, err)
		}
		metrics.SegmentsWritten.WithLabelValues(dedupOutcome(wasNew)).Inc()
		shas = append(shas, seg.Sha)
	}

	parent := prev.Number
	v := version.Version{
		Symbol:      symbol,
		Number:      num,
		ID:          versionID,
		SegmentShas: shas,
		Descriptor: chunking.Descriptor{
			Columns:  tailDescriptor.Columns,
			Timezone: tailDescriptor.Timezone,
			RowCount: prev.Descriptor.RowCount + tailDescriptor.RowCount,
		},
		Metadata:      metadata,
		Timestamp:     time.Now().UTC(),
		ParentVersion: &parent,
		LastIndex:     prev.LastIndex,
	}
	if n := tail.Len(); n > 0 {
		v.LastIndex = tail.Index()[n-1]
	}

	if err := s.versions.Insert(ctx, v); err != nil {
		return version.Version{}, fmt.Errorf("library: append %s: insert version %d: %w", symbol, num, err)
	}
	s.logger.Info("appended version", "symbol", symbol, "version", num, "new_segments", len(tailSegs))

	if prunePrevious {
		if err := s.PrunePreviousVersion(ctx, symbol); err != nil {
			s.logger.Warn("prune after append failed", "symbol", symbol, "error", err)
		}
	}

	return v, nil
}

// Read resolves asOf to a version and reassembles its table.
func (s *Store) Read(ctx context.Context, symbol string, asOf AsOf) (*table.Frame, version.Version, error) {
	vAsOf, err := s.resolve(ctx, symbol, asOf)
	if err != nil {
		return nil, version.Version{}, err
	}
	v, err := s.versions.Read(ctx, symbol, vAsOf)
	if err != nil {
		return nil, version.Version{}, err
	}
	segs, err := s.segments.GetSegments(ctx, symbol, v.SegmentShas)
	if err != nil {
		return nil, version.Version{}, err
	}
	frame, err := chunking.Reassemble(segs, v.Descriptor)
	if err != nil {
		return nil, version.Version{}, err
	}
	return frame, v, nil
}

// ListSymbols returns every symbol with at least one version.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	return s.versions.ListSymbols(ctx)
}

// ListVersions returns every version of symbol, ascending by number.
func (s *Store) ListVersions(ctx context.Context, symbol string) ([]version.Version, error) {
	return s.versions.ListVersions(ctx, symbol)
}

// Delete removes symbol entirely: every version and every segment it
// referenced, ignoring snapshot protection (an explicit whole-symbol
// delete, unlike PrunePreviousVersion's conservative sweep).
func (s *Store) Delete(ctx context.Context, symbol string) error {
	versions, err := s.versions.ListVersions(ctx, symbol)
	if err != nil {
		return fmt.Errorf("library: delete %s: list versions: %w", symbol, err)
	}
	for _, v := range versions {
		emptied, err := s.segments.Release(ctx, symbol, v.ID)
		if err != nil {
			return fmt.Errorf("library: delete %s: release version %d: %w", symbol, v.Number, err)
		}
		if err := s.segments.DeleteOrphans(ctx, symbol, emptied); err != nil {
			return fmt.Errorf("library: delete %s: delete orphans for version %d: %w", symbol, v.Number, err)
		}
		if err := s.versions.DeleteVersion(ctx, symbol, v.Number); err != nil {
			return fmt.Errorf("library: delete %s: delete version %d: %w", symbol, v.Number, err)
		}
	}
	s.logger.Info("deleted symbol", "symbol", symbol, "versions", len(versions))
	return nil
}

// PrunePreviousVersion deletes every version of symbol that is not the
// latest, not referenced by any snapshot, and older than the grace period.
func (s *Store) PrunePreviousVersion(ctx context.Context, symbol string) error {
	versions, err := s.versions.ListVersions(ctx, symbol)
	if err != nil {
		return fmt.Errorf("library: prune %s: list versions: %w", symbol, err)
	}
	if len(versions) <= 1 {
		return nil
	}

	referenced, err := s.snapshots.ReferencedVersions(ctx, symbol)
	if err != nil {
		return fmt.Errorf("library: prune %s: referenced versions: %w", symbol, err)
	}

	latest := versions[len(versions)-1].Number
	cutoff := time.Now().Add(-s.gracePeriod)

	for _, v := range versions[:len(versions)-1] {
		if v.Number == latest {
			continue
		}
		if referenced[v.Number] {
			continue
		}
		if v.Timestamp.After(cutoff) {
			continue
		}

		emptied, err := s.segments.Release(ctx, symbol, v.ID)
		if err != nil {
			return fmt.Errorf("library: prune %s: release version %d: %w", symbol, v.Number, err)
		}
		if err := s.segments.DeleteOrphans(ctx, symbol, emptied); err != nil {
			return fmt.Errorf("library: prune %s: delete orphans for version %d: %w", symbol, v.Number, err)
		}
		if err := s.versions.DeleteVersion(ctx, symbol, v.Number); err != nil {
			return fmt.Errorf("library: prune %s: delete version %d: %w", symbol, v.Number, err)
		}
		metrics.VersionsPruned.Inc()
		s.logger.Info("pruned version", "symbol", symbol, "version", v.Number)
	}
	return nil
}

// Snapshot records the current latest version of every symbol (except
// skipSymbols), or an explicit versions mapping if given.
func (s *Store) Snapshot(ctx context.Context, name string, skipSymbols []string, versions map[string]int64) (snapshot.Snapshot, error) {
	skip := make(map[string]bool, len(skipSymbols))
	for _, sym := range skipSymbols {
		skip[sym] = true
	}

	pins := versions
	if pins == nil {
		symbols, err := s.versions.ListSymbols(ctx)
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("library: snapshot %s: list symbols: %w", name, err)
		}
		pins = make(map[string]int64, len(symbols))
		for _, sym := range symbols {
			if skip[sym] {
				continue
			}
			v, err := s.versions.Read(ctx, sym, version.Latest())
			if err != nil {
				return snapshot.Snapshot{}, fmt.Errorf("library: snapshot %s: read latest %s: %w", name, sym, err)
			}
			pins[sym] = v.Number
		}
	}

	snap := snapshot.Snapshot{Name: name, CreatedAt: time.Now().UTC(), Versions: pins}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

// DeleteSnapshot removes the named snapshot's pin. It does not eagerly
// release the versions it held; the next PrunePreviousVersion sweep picks
// them up once ReferencedVersions no longer reports them.
func (s *Store) DeleteSnapshot(ctx context.Context, name string) error {
	return s.snapshots.Delete(ctx, name)
}

// SetQuota installs or replaces the enforced quota.
func (s *Store) SetQuota(q quota.Quota) {
	if s.quota != nil {
		s.quota.SetQuota(q)
	}
}

// GetQuota returns the currently enforced quota, or a zero (unlimited)
// Quota if no accountant is configured.
func (s *Store) GetQuota() quota.Quota {
	if s.quota == nil {
		return quota.Quota{}
	}
	return s.quota.Quota()
}

// CheckQuota reports chronoerr.ErrQuotaExceeded if the library is
// currently over its quota.
func (s *Store) CheckQuota(ctx context.Context) error {
	if s.quota == nil {
		return nil
	}
	return s.quota.Check(ctx)
}

func dedupOutcome(wasNew bool) string {
	if wasNew {
		return "new"
	}
	return "dedup"
}
