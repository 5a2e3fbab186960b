package library

import (
	"context"
	"testing"
	"time"

	"chronovault/internal/chronoerr"
	segmentmem "chronovault/internal/segment/memstore"
	snapshotmem "chronovault/internal/snapshot/memstore"
	"chronovault/internal/table"
	versionmem "chronovault/internal/version/memstore"
)

func newTestStore(opts Options) *Store {
	return New(segmentmem.New(), versionmem.New(), snapshotmem.New(), opts)
}

func frameAt(start time.Time, n int, base float64) *table.Frame {
	idx := make([]time.Time, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		idx[i] = start.Add(time.Duration(i) * 24 * time.Hour)
		vals[i] = base + float64(i)
	}
	return table.NewFrame(idx, "UTC", table.NewFloat64Column("price", vals))
}

func TestWriteReadLatestAndAsOf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	f1 := frameAt(t1, 100, 1.0)
	v1, err := s.Write(ctx, "AAPL", f1, nil, false)
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}

	f2 := frameAt(t1, 100, 2.0) // different values, same index range
	v2, err := s.Write(ctx, "AAPL", f2, nil, false)
	if err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if v2.Number != v1.Number+1 {
		t.Fatalf("expected monotonic version numbers, got %d then %d", v1.Number, v2.Number)
	}

	latest, _, err := s.Read(ctx, "AAPL", Latest())
	if err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if got := latest.Columns()[0].(*table.Float64Column).Values[0]; got != 2.0 {
		t.Fatalf("expected latest write's values, got %v", got)
	}

	exact, _, err := s.Read(ctx, "AAPL", AtNumber(v1.Number))
	if err != nil {
		t.Fatalf("read at number: %v", err)
	}
	if got := exact.Columns()[0].(*table.Float64Column).Values[0]; got != 1.0 {
		t.Fatalf("expected first write's values, got %v", got)
	}

	asOf, _, err := s.Read(ctx, "AAPL", AtTimestamp(v1.Timestamp))
	if err != nil {
		t.Fatalf("read as of: %v", err)
	}
	if got := asOf.Columns()[0].(*table.Float64Column).Values[0]; got != 1.0 {
		t.Fatalf("expected first write's values as of its own timestamp, got %v", got)
	}
	_ = t2
}

func TestWriteDedupProducesNoNewSegmentsOnIdenticalRewrite(t *testing.T) {
	ctx := context.Background()
	segs := segmentmem.New()
	s := New(segs, versionmem.New(), snapshotmem.New(), Options{})

	f := frameAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50, 1.0)
	if _, err := s.Write(ctx, "AAPL", f, nil, false); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	before := segs.Count()

	if _, err := s.Write(ctx, "AAPL", f, nil, false); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	after := segs.Count()

	if before != after {
		t.Fatalf("expected identical rewrite to add no new segments, before=%d after=%d", before, after)
	}
}

func TestAppendRejectsUnorderedTail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	f := frameAt(base, 10, 1.0)
	if _, err := s.Write(ctx, "AAPL", f, nil, false); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Tail starting before the previous last index.
	badTail := frameAt(base, 5, 9.0)
	_, err := s.Append(ctx, "AAPL", badTail, nil, false)
	if chronoerr.KindOf(err) != chronoerr.KindUnorderedData {
		t.Fatalf("expected UnorderedData, got %v", err)
	}
}

func TestAppendExtendsAndPreservesPriorRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := frameAt(base, 10, 1.0)
	v1, err := s.Write(ctx, "AAPL", first, nil, false)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	tailStart := first.Index()[len(first.Index())-1].Add(24 * time.Hour)
	tail := frameAt(tailStart, 5, 100.0)
	v2, err := s.Append(ctx, "AAPL", tail, nil, false)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if v2.ParentVersion == nil || *v2.ParentVersion != v1.Number {
		t.Fatalf("expected parent version %d, got %v", v1.Number, v2.ParentVersion)
	}

	frame, _, err := s.Read(ctx, "AAPL", Latest())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Len() != 15 {
		t.Fatalf("expected 15 rows after append, got %d", frame.Len())
	}
	col := frame.Columns()[0].(*table.Float64Column)
	if col.Values[0] != 1.0 || col.Values[14] != 104.0 {
		t.Fatalf("expected prior rows preserved and tail appended, got first=%v last=%v", col.Values[0], col.Values[14])
	}
}

func TestSnapshotIsImmutableAcrossFurtherWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f1 := frameAt(base, 10, 1.0)
	if _, err := s.Write(ctx, "AAPL", f1, nil, false); err != nil {
		t.Fatalf("write 1: %v", err)
	}

	if _, err := s.Snapshot(ctx, "eod", nil, nil); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	f2 := frameAt(base, 10, 2.0)
	if _, err := s.Write(ctx, "AAPL", f2, nil, false); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	frame, _, err := s.Read(ctx, "AAPL", AtSnapshot("eod"))
	if err != nil {
		t.Fatalf("read at snapshot: %v", err)
	}
	if got := frame.Columns()[0].(*table.Float64Column).Values[0]; got != 1.0 {
		t.Fatalf("expected snapshot to still resolve to first write, got %v", got)
	}
}

func TestPruneNeverRemovesSnapshotReferencedVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{PruneGracePeriod: -time.Hour}) // grace period already elapsed

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.Write(ctx, "AAPL", frameAt(base, 10, 1.0), nil, false); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if _, err := s.Snapshot(ctx, "pin", nil, nil); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := s.Write(ctx, "AAPL", frameAt(base, 10, 2.0), nil, false); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	if err := s.PrunePreviousVersion(ctx, "AAPL"); err != nil {
		t.Fatalf("prune: %v", err)
	}

	// The pinned version must still be readable via the snapshot.
	if _, _, err := s.Read(ctx, "AAPL", AtSnapshot("pin")); err != nil {
		t.Fatalf("expected snapshot-pinned version to survive prune, got %v", err)
	}
}

func TestPruneRemovesUnreferencedOlderVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{PruneGracePeriod: -time.Hour})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v1, err := s.Write(ctx, "AAPL", frameAt(base, 10, 1.0), nil, false)
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if _, err := s.Write(ctx, "AAPL", frameAt(base, 10, 2.0), nil, false); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	if err := s.PrunePreviousVersion(ctx, "AAPL"); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, _, err := s.Read(ctx, "AAPL", AtNumber(v1.Number)); chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("expected pruned version to be gone, got %v", err)
	}
}

func TestDeleteRemovesSymbolEntirely(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.Write(ctx, "AAPL", frameAt(base, 10, 1.0), nil, false); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.Delete(ctx, "AAPL"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, _, err := s.Read(ctx, "AAPL", Latest()); chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("expected NoDataFound after delete, got %v", err)
	}
}
