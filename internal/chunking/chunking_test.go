package chunking

import (
	"testing"
	"time"

	"chronovault/internal/table"
)

func sampleFrame(n int) *table.Frame {
	index := make([]time.Time, n)
	vals := make([]float64, n)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range index {
		index[i] = base.Add(time.Duration(i) * 24 * time.Hour)
		vals[i] = float64(i) * 1.5
	}
	return table.NewFrame(index, "UTC", table.NewFloat64Column("price", vals), table.NewStringColumn("tag", repeatStr("x", n)))
}

func repeatStr(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestChunkReassembleRoundTrip(t *testing.T) {
	frame := sampleFrame(100)
	segs, desc, err := Chunk("AAPL", frame, DefaultTargetSize)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs) == 0 {
		t.Fatalf("expected at least one segment")
	}

	got, err := Reassemble(segs, desc)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if got.Len() != frame.Len() {
		t.Fatalf("row count mismatch: got %d want %d", got.Len(), frame.Len())
	}
	for i, ts := range got.Index() {
		want := frame.Index()[i].UnixMilli()
		if ts.UnixMilli() != want {
			t.Fatalf("index[%d] mismatch: got %d want %d", i, ts.UnixMilli(), want)
		}
	}
	priceCol := got.Columns()[0].(*table.Float64Column)
	for i, v := range priceCol.Values {
		if v != frame.Columns()[0].(*table.Float64Column).Values[i] {
			t.Fatalf("price[%d] mismatch: got %v want %v", i, v, frame.Columns()[0].(*table.Float64Column).Values[i])
		}
	}
}

func TestChunkSplitsOnTargetSize(t *testing.T) {
	frame := sampleFrame(10000)
	segs, _, err := Chunk("BIGSYM", frame, 4096)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments with a small target size, got %d", len(segs))
	}
	for i, s := range segs {
		if s.Index != i {
			t.Fatalf("segment %d has Index %d", i, s.Index)
		}
	}
}

func TestChunkDeterministicShas(t *testing.T) {
	frame := sampleFrame(50)
	segs1, _, err := Chunk("SYM", frame, DefaultTargetSize)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	segs2, _, err := Chunk("SYM", frame, DefaultTargetSize)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs1) != len(segs2) {
		t.Fatalf("segment count differs across identical writes")
	}
	for i := range segs1 {
		if segs1[i].Sha != segs2[i].Sha {
			t.Fatalf("segment %d sha differs across identical writes: %s vs %s", i, segs1[i].Sha, segs2[i].Sha)
		}
	}
}

func TestChunkDifferentSymbolDifferentSha(t *testing.T) {
	frame := sampleFrame(50)
	segsA, _, _ := Chunk("AAA", frame, DefaultTargetSize)
	segsB, _, _ := Chunk("BBB", frame, DefaultTargetSize)
	if segsA[0].Sha == segsB[0].Sha {
		t.Fatalf("expected different shas for different symbols with identical bytes")
	}
}

func TestReassembleEmptyTable(t *testing.T) {
	frame := sampleFrame(0)
	segs, desc, err := Chunk("EMPTY", frame, DefaultTargetSize)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected zero segments for an empty table, got %d", len(segs))
	}
	got, err := Reassemble(segs, desc)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty table, got %d rows", got.Len())
	}
}

func TestReassembleCorruptedDataMissingSegment(t *testing.T) {
	frame := sampleFrame(10000)
	segs, desc, err := Chunk("SYM", frame, 4096)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segs) < 2 {
		t.Fatalf("need multiple segments for this test")
	}
	truncated := segs[:len(segs)-1]
	if _, err := Reassemble(truncated, desc); err == nil {
		t.Fatalf("expected error when segments are missing")
	}
}
