package memstore

import (
	"context"
	"testing"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/segment"
)

func TestPutSegmentDedup(t *testing.T) {
	ctx := context.Background()
	s := New()
	seg := chunking.Segment{Index: 0, Sha: chunking.Sha{1, 2, 3}, Compressed: []byte("abc")}

	wasNew, err := s.PutSegment(ctx, "SYM", seg, "v1")
	if err != nil {
		t.Fatalf("put v1: %v", err)
	}
	if !wasNew {
		t.Fatal("expected first write to report wasNew")
	}
	wasNew, err = s.PutSegment(ctx, "SYM", seg, "v2")
	if err != nil {
		t.Fatalf("put v2: %v", err)
	}
	if wasNew {
		t.Fatal("expected second writer's put to report dedup, not wasNew")
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 stored segment after two writers converge, got %d", s.Count())
	}
}

func TestGetSegmentsMissingIsCorrupted(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.GetSegments(ctx, "SYM", []chunking.Sha{{9, 9}})
	if err == nil {
		t.Fatal("expected error for missing segment")
	}
	if chronoerr.KindOf(err) != chronoerr.KindCorruptedData {
		t.Fatalf("expected CorruptedData, got %v", chronoerr.KindOf(err))
	}
}

func TestReleaseEmptiesRefCount(t *testing.T) {
	ctx := context.Background()
	s := New()
	seg := chunking.Segment{Index: 0, Sha: chunking.Sha{7}, Compressed: []byte("x")}

	if _, err := s.PutSegment(ctx, "SYM", seg, "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.PutSegment(ctx, "SYM", seg, "v2"); err != nil {
		t.Fatalf("put: %v", err)
	}

	emptied, err := s.Release(ctx, "SYM", segment.VersionID("v1"))
	if err != nil {
		t.Fatalf("release v1: %v", err)
	}
	if len(emptied) != 0 {
		t.Fatalf("expected no emptied segments while v2 still references it, got %v", emptied)
	}

	emptied, err = s.Release(ctx, "SYM", segment.VersionID("v2"))
	if err != nil {
		t.Fatalf("release v2: %v", err)
	}
	if len(emptied) != 1 || emptied[0] != seg.Sha {
		t.Fatalf("expected segment to be emptied after last reference released, got %v", emptied)
	}

	if err := s.DeleteOrphans(ctx, "SYM", emptied); err != nil {
		t.Fatalf("delete orphans: %v", err)
	}
	if _, err := s.GetSegments(ctx, "SYM", []chunking.Sha{seg.Sha}); err == nil {
		t.Fatal("expected segment to be gone after DeleteOrphans")
	}
}
