// Package table defines the structural interface that chunking depends on:
// a narrow interface so chunking never imports a concrete table
// implementation. Arithmetic on tables and user-facing frontends are out
// of scope; this package only describes the shape chunking needs.
package table

import "time"

// Dtype identifies the on-wire encoding of a column. It intentionally
// mirrors only what the chunker needs to reconstruct bytes, not a full
// type system.
type Dtype byte

const (
	DtypeFloat64 Dtype = iota
	DtypeInt64
	DtypeBool
	DtypeString
)

// Column is one typed column of a Table, addressable by position within
// Table.Index().
type Column interface {
	// Name is the column's identifier; must be unique within a Table.
	Name() string
	// Dtype identifies the column's encoding.
	Dtype() Dtype
	// Len returns the number of values, equal to len(Index()).
	Len() int
	// Encode appends the column's canonical binary form to dst and
	// returns the result. Encoding is dtype-specific: float64/int64 as
	// little-endian 8-byte values and bool as one byte (fixed-width), string
	// as a length-prefixed UTF-8 run (variable-width).
	Encode(dst []byte) []byte
	// Value returns the row i value as its concrete Go type (float64,
	// int64, bool, or string), for callers building a header image
	// without decoding the whole column (package tickstore).
	Value(i int) any
	// Slice returns a new Column of the same dtype over rows [start,end),
	// used by package tickstore to group a table's rows into chunks
	// without type-switching on the concrete column type.
	Slice(start, end int) Column
}

// Table is a tabular time series: a datetime index plus typed columns,
// all of equal length. Implementations need not be mutable; chunking only
// reads from a Table.
type Table interface {
	// Index returns the row timestamps. Ascending order is not required by
	// this interface; chunking.Chunk does not check it, while
	// tickstore.Library.Write rejects a non-ascending index.
	Index() []time.Time
	// Timezone returns the IANA zone name the index should be interpreted
	// in on reassembly. Empty string means UTC-naive.
	Timezone() string
	// Columns returns the table's columns in canonical (write) order.
	Columns() []Column
	// Len returns the row count, equal to len(Index()).
	Len() int
}

// Metadata is caller-supplied, opaque version metadata. The Mongo-backed
// version index stores it as a BSON document.
type Metadata map[string]any
