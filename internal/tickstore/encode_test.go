package tickstore

import (
	"testing"
	"time"

	"chronovault/internal/table"
)

func TestBuildAndDecodeChunkRoundTrip(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	index := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}
	msIndex := make([]int64, len(index))
	for i, tm := range index {
		msIndex[i] = tm.UnixMilli()
	}
	tbl := table.NewFrame(index, "UTC",
		table.NewFloat64Column("price", []float64{1.5, 2.5, 3.5}),
		table.NewStringColumn("venue", []string{"N", "N", "Q"}),
	)

	chunk, err := buildChunk("AAPL", tbl, 0, 3, msIndex)
	if err != nil {
		t.Fatalf("buildChunk: %v", err)
	}
	if chunk.Count != 3 {
		t.Fatalf("Count = %d, want 3", chunk.Count)
	}
	if !chunk.Start.Equal(base) || !chunk.End.Equal(index[2]) {
		t.Fatalf("Start/End = %s/%s, want %s/%s", chunk.Start, chunk.End, base, index[2])
	}
	if chunk.Image["price"] != 1.5 {
		t.Fatalf("Image[price] = %v, want 1.5", chunk.Image["price"])
	}

	gotIndex, cols, err := decodeChunk(chunk)
	if err != nil {
		t.Fatalf("decodeChunk: %v", err)
	}
	if len(gotIndex) != 3 {
		t.Fatalf("decoded index length = %d, want 3", len(gotIndex))
	}
	for i, ms := range gotIndex {
		if decodeMS(ms) != index[i] {
			t.Fatalf("index[%d] = %s, want %s", i, decodeMS(ms), index[i])
		}
	}

	priceCol := cols[0].(*table.Float64Column)
	for i, want := range []float64{1.5, 2.5, 3.5} {
		if priceCol.Values[i] != want {
			t.Fatalf("price[%d] = %v, want %v", i, priceCol.Values[i], want)
		}
	}
	venueCol := cols[1].(*table.StringColumn)
	for i, want := range []string{"N", "N", "Q"} {
		if venueCol.Values[i] != want {
			t.Fatalf("venue[%d] = %v, want %v", i, venueCol.Values[i], want)
		}
	}
}
