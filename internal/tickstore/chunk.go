// Package tickstore implements an append-optimized tick store: irregular
// time-indexed rows grouped into non-overlapping, independently-compressed
// chunks, written in strictly ascending time order.
package tickstore

import (
	"time"

	"chronovault/internal/table"
)

// ColumnChunk is one column's compressed bytes within a Chunk, plus
// enough to decode it back: a column dtype map.
type ColumnChunk struct {
	Name       string
	Dtype      table.Dtype
	Compressed []byte
}

// Chunk is the persisted unit of the tick store: {symbol, start, end,
// count, columns, index_compressed, image}.
type Chunk struct {
	Symbol          string
	Start           time.Time
	End             time.Time
	Count           int
	IndexCompressed []byte
	Columns         []ColumnChunk
	Timezone        string

	// Image is the first row's values, keyed by column name, for callers
	// that want a cheap peek without decompressing the whole chunk.
	Image map[string]any
}
