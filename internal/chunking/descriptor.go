// Package chunking converts a table.Table into an ordered sequence of
// content-addressed, compressed segments, and back. It depends only on the
// table.Table structural interface, never on a concrete tabular
// implementation.
package chunking

import (
	"time"

	"chronovault/internal/table"
)

// ColumnDescriptor records enough about a column to decode its bytes back
// into typed values.
type ColumnDescriptor struct {
	Name  string
	Dtype table.Dtype
}

// Descriptor is the dtype/column descriptor stored alongside the segment
// list: column order, dtypes, index timezone, and row count. It is stored
// on the version document, not inside a segment.
type Descriptor struct {
	Columns  []ColumnDescriptor
	Timezone string
	RowCount int
}

// indexBytesPerRow is the fixed width of one encoded index timestamp:
// milliseconds since the Unix epoch, little-endian. Spec.md §9 notes
// microsecond precision is truncated to milliseconds in storage.
const indexBytesPerRow = 8

func encodeTimestampMS(t time.Time) int64 {
	return t.UnixMilli()
}

func decodeTimestampMS(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
