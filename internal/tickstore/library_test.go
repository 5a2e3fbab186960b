package tickstore_test

import (
	"context"
	"testing"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/table"
	"chronovault/internal/tickstore"
	"chronovault/internal/tickstore/memstore"
)

func frameAt(base time.Time, offsets []time.Duration, values []float64) *table.Frame {
	index := make([]time.Time, len(offsets))
	for i, off := range offsets {
		index[i] = base.Add(off)
	}
	return table.NewFrame(index, "UTC", table.NewFloat64Column("price", values))
}

func TestWriteReadRoundTrip(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{TargetRowCount: 2})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := frameAt(base, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second},
		[]float64{1, 2, 3, 4, 5})

	if err := lib.Write(context.Background(), "AAPL", tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := lib.Read(context.Background(), "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", got.Len())
	}
	col := got.Columns()[0].(*table.Float64Column)
	for i, want := range []float64{1, 2, 3, 4, 5} {
		if col.Values[i] != want {
			t.Fatalf("row %d = %v, want %v", i, col.Values[i], want)
		}
	}
}

func TestWriteRejectsUnorderedBatch(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := frameAt(base, []time.Duration{time.Second, 0}, []float64{1, 2})

	err := lib.Write(context.Background(), "AAPL", tbl)
	if chronoerr.KindOf(err) != chronoerr.KindUnorderedData {
		t.Fatalf("KindOf(err) = %v, want UnorderedData", chronoerr.KindOf(err))
	}
}

func TestWriteRejectsNonAdvancingAppend(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := frameAt(base, []time.Duration{0, time.Second}, []float64{1, 2})
	if err := lib.Write(context.Background(), "AAPL", first); err != nil {
		t.Fatalf("Write first: %v", err)
	}

	second := frameAt(base, []time.Duration{time.Second, 2 * time.Second}, []float64{3, 4})
	err := lib.Write(context.Background(), "AAPL", second)
	if chronoerr.KindOf(err) != chronoerr.KindUnorderedData {
		t.Fatalf("KindOf(err) = %v, want UnorderedData", chronoerr.KindOf(err))
	}
}

func TestReadTrimsToRange(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{TargetRowCount: 3})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := frameAt(base, []time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour},
		[]float64{1, 2, 3, 4, 5})
	if err := lib.Write(context.Background(), "AAPL", tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	got, err := lib.Read(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", got.Len())
	}
	col := got.Columns()[0].(*table.Float64Column)
	for i, want := range []float64{2, 3, 4} {
		if col.Values[i] != want {
			t.Fatalf("row %d = %v, want %v", i, col.Values[i], want)
		}
	}
}

func TestMinMaxDate(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{TargetRowCount: 2})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := frameAt(base, []time.Duration{0, time.Hour, 2 * time.Hour}, []float64{1, 2, 3})
	if err := lib.Write(context.Background(), "AAPL", tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}

	min, err := lib.MinDate(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("MinDate: %v", err)
	}
	if !min.Equal(base) {
		t.Fatalf("MinDate = %s, want %s", min, base)
	}

	max, err := lib.MaxDate(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("MaxDate: %v", err)
	}
	want := base.Add(2 * time.Hour)
	if !max.Equal(want) {
		t.Fatalf("MaxDate = %s, want %s", max, want)
	}
}

func TestMinMaxDateUnknownSymbolIsNoDataFound(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{})
	_, err := lib.MinDate(context.Background(), "GHOST")
	if chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("KindOf(err) = %v, want NoDataFound", chronoerr.KindOf(err))
	}
}

func TestDeleteRemovesSymbol(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := frameAt(base, []time.Duration{0, time.Second}, []float64{1, 2})
	if err := lib.Write(context.Background(), "AAPL", tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := lib.Delete(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := lib.Read(context.Background(), "AAPL", time.Time{}, time.Time{})
	if chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		t.Fatalf("KindOf(err) = %v, want NoDataFound", chronoerr.KindOf(err))
	}
}

func TestListSymbols(t *testing.T) {
	lib := tickstore.New(memstore.New(), tickstore.Options{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, sym := range []string{"AAPL", "MSFT"} {
		tbl := frameAt(base, []time.Duration{0}, []float64{1})
		if err := lib.Write(context.Background(), sym, tbl); err != nil {
			t.Fatalf("Write %s: %v", sym, err)
		}
	}
	symbols, err := lib.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("ListSymbols = %v, want 2 entries", symbols)
	}
}
