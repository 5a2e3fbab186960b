// Package version implements the version index: a per-symbol
// monotonically increasing version number, and the immutable version
// documents that reference a chunked table's segments.
package version

import (
	"time"

	"chronovault/internal/chunking"
	"chronovault/internal/segment"
	"chronovault/internal/table"
)

// Version is the immutable record of one write to a symbol. Once
// inserted via Index.Insert, SegmentShas and Metadata never change.
type Version struct {
	Symbol        string
	Number        int64
	ID            segment.VersionID // the tentative client-generated ID used while writing segments
	SegmentShas   []chunking.Sha
	Descriptor    chunking.Descriptor
	Metadata      table.Metadata
	Timestamp     time.Time
	ParentVersion *int64 // set for append-produced versions, for provenance

	// LastIndex is the timestamp of the table's last row as of this
	// version, cached here so library.Append can validate ordering
	// without reassembling the full previous table.
	LastIndex time.Time
}

// SegmentCount returns len(SegmentShas). The Mongo version document stores
// no separate segment_count field.
func (v Version) SegmentCount() int { return len(v.SegmentShas) }

// AsOfKind selects which form of as-of resolution Read performs.
type AsOfKind int

const (
	// AsOfLatest resolves to the highest version_number.
	AsOfLatest AsOfKind = iota
	// AsOfNumber resolves to an exact version_number.
	AsOfNumber
	// AsOfTimestamp resolves to the latest version with timestamp <= the
	// given time.
	AsOfTimestamp
)

// AsOf selects a point-in-time read. Snapshot-name resolution happens one
// layer up, in package library, which first resolves the name to a
// version number via package snapshot and then asks for AsOfNumber.
type AsOf struct {
	Kind      AsOfKind
	Number    int64
	Timestamp time.Time
}

// Latest requests the most recent version.
func Latest() AsOf { return AsOf{Kind: AsOfLatest} }

// AtNumber requests an exact version number.
func AtNumber(n int64) AsOf { return AsOf{Kind: AsOfNumber, Number: n} }

// AtTimestamp requests the latest version with timestamp <= t.
func AtTimestamp(t time.Time) AsOf { return AsOf{Kind: AsOfTimestamp, Timestamp: t} }
