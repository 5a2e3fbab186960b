package fsck

import (
	"context"
	"testing"
	"time"

	"chronovault/internal/chunking"
	segmentmem "chronovault/internal/segment/memstore"
	"chronovault/internal/version"
	versionmem "chronovault/internal/version/memstore"
)

func TestCheckSymbolFindsOrphanSegment(t *testing.T) {
	ctx := context.Background()
	segs := segmentmem.New()
	vers := versionmem.New()

	seg := chunking.Segment{Index: 0, Sha: chunking.Sha{1}, Compressed: []byte("x")}
	if _, err := segs.PutSegment(ctx, "SYM", seg, "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Release the only reference without deleting the segment, simulating
	// a crash between Release and DeleteOrphans.
	if _, err := segs.Release(ctx, "SYM", "v1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	c := New(vers, segs)
	report, err := c.CheckSymbol(ctx, "SYM")
	if err != nil {
		t.Fatalf("CheckSymbol: %v", err)
	}
	if len(report.Problems) != 1 || report.Problems[0].Kind != OrphanSegment {
		t.Fatalf("expected one OrphanSegment problem, got %v", report.Problems)
	}

	unresolved, err := c.Repair(ctx, report)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(unresolved) != 0 {
		t.Fatalf("expected orphan to be fully repaired, got %v", unresolved)
	}
	if _, err := segs.GetSegments(ctx, "SYM", []chunking.Sha{seg.Sha}); err == nil {
		t.Fatal("expected orphan segment to be deleted")
	}
}

func TestCheckSymbolFindsMissingSegment(t *testing.T) {
	ctx := context.Background()
	segs := segmentmem.New()
	vers := versionmem.New()

	sha := chunking.Sha{2, 2}
	v := version.Version{
		Symbol:      "SYM",
		Number:      1,
		SegmentShas: []chunking.Sha{sha},
		Timestamp:   time.Now(),
	}
	if err := vers.Insert(ctx, v); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c := New(vers, segs)
	report, err := c.CheckSymbol(ctx, "SYM")
	if err != nil {
		t.Fatalf("CheckSymbol: %v", err)
	}
	if len(report.Problems) != 1 || report.Problems[0].Kind != MissingSegment {
		t.Fatalf("expected one MissingSegment problem, got %v", report.Problems)
	}

	unresolved, err := c.Repair(ctx, report)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected MissingSegment to remain unresolved, got %v", unresolved)
	}
}

func TestCheckSymbolFindsCounterDrift(t *testing.T) {
	ctx := context.Background()
	segs := segmentmem.New()
	vers := versionmem.New()

	// Insert version 5 directly without ever calling NextVersionNumber,
	// simulating a counter that never tracked an externally assigned
	// number (e.g. restored from a backup).
	if err := vers.Insert(ctx, version.Version{Symbol: "SYM", Number: 5, Timestamp: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c := New(vers, segs)
	report, err := c.CheckSymbol(ctx, "SYM")
	if err != nil {
		t.Fatalf("CheckSymbol: %v", err)
	}
	if len(report.Problems) != 1 || report.Problems[0].Kind != CounterDrift {
		t.Fatalf("expected one CounterDrift problem, got %v", report.Problems)
	}
	if report.Problems[0].Expected != 5 {
		t.Fatalf("expected drift target 5, got %d", report.Problems[0].Expected)
	}

	if _, err := c.Repair(ctx, report); err != nil {
		t.Fatalf("Repair: %v", err)
	}

	next, err := vers.NextVersionNumber(ctx, "SYM")
	if err != nil {
		t.Fatalf("NextVersionNumber: %v", err)
	}
	if next != 6 {
		t.Fatalf("expected counter repaired past 5, got %d", next)
	}
}

func TestCheckAllSkipsCleanSymbols(t *testing.T) {
	ctx := context.Background()
	segs := segmentmem.New()
	vers := versionmem.New()

	n, err := vers.NextVersionNumber(ctx, "CLEAN")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := vers.Insert(ctx, version.Version{Symbol: "CLEAN", Number: n, Timestamp: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c := New(vers, segs)
	reports, err := c.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports for a clean symbol, got %v", reports)
	}
}
