package memstore

import (
	"context"
	"testing"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/version"
)

func TestNextVersionNumberMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New()

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextVersionNumber(ctx, "SYM")
		if err != nil {
			t.Fatalf("NextVersionNumber: %v", err)
		}
		if got != want {
			t.Fatalf("NextVersionNumber: want %d, got %d", want, got)
		}
	}

	// Independent per symbol.
	got, err := s.NextVersionNumber(ctx, "OTHER")
	if err != nil {
		t.Fatalf("NextVersionNumber: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected OTHER to start at 1, got %d", got)
	}
}

func TestInsertRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := version.Version{Symbol: "SYM", Number: 1, Timestamp: time.Now()}

	if err := s.Insert(ctx, v); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.Insert(ctx, v); err == nil {
		t.Fatal("expected error inserting duplicate version number")
	}
}

func TestReadAsOfVariants(t *testing.T) {
	ctx := context.Background()
	s := New()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	v1 := version.Version{Symbol: "SYM", Number: 1, Timestamp: t1}
	v2 := version.Version{Symbol: "SYM", Number: 2, Timestamp: t2}

	if err := s.Insert(ctx, v1); err != nil {
		t.Fatalf("insert v1: %v", err)
	}
	if err := s.Insert(ctx, v2); err != nil {
		t.Fatalf("insert v2: %v", err)
	}

	latest, err := s.Read(ctx, "SYM", version.Latest())
	if err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if latest.Number != 2 {
		t.Fatalf("expected latest to be version 2, got %d", latest.Number)
	}

	exact, err := s.Read(ctx, "SYM", version.AtNumber(1))
	if err != nil {
		t.Fatalf("read number 1: %v", err)
	}
	if exact.Number != 1 {
		t.Fatalf("expected version 1, got %d", exact.Number)
	}

	between := t1.Add(12 * time.Hour)
	asOf, err := s.Read(ctx, "SYM", version.AtTimestamp(between))
	if err != nil {
		t.Fatalf("read as of %s: %v", between, err)
	}
	if asOf.Number != 1 {
		t.Fatalf("expected version 1 as of %s, got %d", between, asOf.Number)
	}

	asOf2, err := s.Read(ctx, "SYM", version.AtTimestamp(t2))
	if err != nil {
		t.Fatalf("read as of %s: %v", t2, err)
	}
	if asOf2.Number != 2 {
		t.Fatalf("expected version 2 as of %s, got %d", t2, asOf2.Number)
	}

	before := t1.Add(-time.Hour)
	if _, err := s.Read(ctx, "SYM", version.AtTimestamp(before)); chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("expected NoDataFound reading before any version, got %v", err)
	}
}

func TestReadUnknownSymbolIsNoDataFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Read(ctx, "NOPE", version.Latest())
	if chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("expected NoDataFound, got %v", err)
	}
}

func TestReadUnknownNumberIsNoDataFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Insert(ctx, version.Version{Symbol: "SYM", Number: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Read(ctx, "SYM", version.AtNumber(99)); chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("expected NoDataFound, got %v", err)
	}
}

func TestMaxVersionNumberTracksCounterDrift(t *testing.T) {
	ctx := context.Background()
	s := New()

	if n, err := s.MaxVersionNumber(ctx, "SYM"); err != nil || n != 0 {
		t.Fatalf("expected 0 for unknown symbol, got %d, %v", n, err)
	}

	if _, err := s.NextVersionNumber(ctx, "SYM"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	n, err := s.NextVersionNumber(ctx, "SYM")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Simulate a failed writer: number n was reserved but never inserted,
	// leaving a gap.
	if err := s.Insert(ctx, version.Version{Symbol: "SYM", Number: n + 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	max, err := s.MaxVersionNumber(ctx, "SYM")
	if err != nil {
		t.Fatalf("MaxVersionNumber: %v", err)
	}
	if max != n+1 {
		t.Fatalf("expected max %d, got %d", n+1, max)
	}
}

func TestDeleteVersionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := version.Version{Symbol: "SYM", Number: 1, Timestamp: time.Now()}
	if err := s.Insert(ctx, v); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteVersion(ctx, "SYM", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteVersion(ctx, "SYM", 1); err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if _, err := s.Read(ctx, "SYM", version.AtNumber(1)); chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("expected NoDataFound after delete, got %v", err)
	}
}

func TestListSymbolsSortedAndSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Insert(ctx, version.Version{Symbol: "ZZZ", Number: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, version.Version{Symbol: "AAA", Number: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	syms, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(syms) != 2 || syms[0] != "AAA" || syms[1] != "ZZZ" {
		t.Fatalf("expected sorted [AAA ZZZ], got %v", syms)
	}
}
