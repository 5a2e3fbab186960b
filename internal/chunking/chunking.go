package chunking

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/table"
)

// DefaultTargetSize is the default uncompressed segment size chunking
// aims for before compression (~2 MiB).
const DefaultTargetSize = 2 << 20

// Sha is a content-address: sha256 over (symbol || segment_index ||
// uncompressed_bytes). Identical repeated writes of the same symbol and
// segment position therefore produce identical shas.
type Sha [sha256.Size]byte

func (s Sha) String() string { return fmt.Sprintf("%x", [sha256.Size]byte(s)) }

// Segment is one ordered piece of a chunked table: its content address,
// its position within the version, and its compressed bytes.
type Segment struct {
	Index      int
	Sha        Sha
	Compressed []byte
}

func computeSha(symbol string, index int, uncompressed []byte) Sha {
	h := sha256.New()
	h.Write([]byte(symbol))
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], uint32(index))
	h.Write(idxBuf[:])
	h.Write(uncompressed)
	var out Sha
	copy(out[:], h.Sum(nil))
	return out
}

// Chunk serializes tbl to its canonical binary form (index, then columns
// in table order), splits the result into segments of approximately
// targetSize uncompressed bytes each, and compresses every segment. A
// targetSize <= 0 uses DefaultTargetSize.
func Chunk(symbol string, tbl table.Table, targetSize int) ([]Segment, Descriptor, error) {
	return ChunkFrom(symbol, tbl, targetSize, 0)
}

// ChunkFrom behaves like Chunk but numbers segments starting at
// startIndex instead of 0, so library.Append can produce tail segments
// that continue a version's existing segment_index sequence without
// colliding with the segments already written for that symbol.
func ChunkFrom(symbol string, tbl table.Table, targetSize, startIndex int) ([]Segment, Descriptor, error) {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}

	rowCount := tbl.Len()
	index := tbl.Index()
	if len(index) != rowCount {
		return nil, Descriptor{}, fmt.Errorf("chunking: index length %d does not match row count %d", len(index), rowCount)
	}

	raw := make([]byte, 0, rowCount*indexBytesPerRow)
	var tsBuf [indexBytesPerRow]byte
	for _, t := range index {
		binary.LittleEndian.PutUint64(tsBuf[:], uint64(encodeTimestampMS(t)))
		raw = append(raw, tsBuf[:]...)
	}

	cols := tbl.Columns()
	descriptor := Descriptor{
		Columns:  make([]ColumnDescriptor, 0, len(cols)),
		Timezone: tbl.Timezone(),
		RowCount: rowCount,
	}
	for _, c := range cols {
		if c.Len() != rowCount {
			return nil, Descriptor{}, fmt.Errorf("chunking: column %q has length %d, want %d", c.Name(), c.Len(), rowCount)
		}
		raw = c.Encode(raw)
		descriptor.Columns = append(descriptor.Columns, ColumnDescriptor{Name: c.Name(), Dtype: c.Dtype()})
	}

	segments := make([]Segment, 0, len(raw)/targetSize+1)
	for off, idx := 0, startIndex; off < len(raw); idx++ {
		end := min(off+targetSize, len(raw))
		part := raw[off:end]

		compressed, err := compressBlock(part)
		if err != nil {
			return nil, Descriptor{}, err
		}
		segments = append(segments, Segment{
			Index:      idx,
			Sha:        computeSha(symbol, idx, part),
			Compressed: compressed,
		})

		off = end
	}

	return segments, descriptor, nil
}

// Reassemble inverts Chunk: it decompresses segments in order, concatenates
// them, and decodes the index and columns per descriptor. Segments must be
// supplied in ascending Index order; ErrCorruptedData is returned if a
// segment is missing or the descriptor does not account for all bytes.
func Reassemble(segments []Segment, descriptor Descriptor) (*table.Frame, error) {
	raw := make([]byte, 0)
	for i, seg := range segments {
		if seg.Index != i {
			return nil, fmt.Errorf("chunking: segment out of order at position %d: %w", i, chronoerr.ErrCorruptedData)
		}
		part, err := decompressBlock(seg.Compressed)
		if err != nil {
			return nil, errors.Join(chronoerr.ErrCorruptedData, err)
		}
		raw = append(raw, part...)
	}

	rowCount := descriptor.RowCount
	need := rowCount * indexBytesPerRow
	if len(raw) < need {
		return nil, fmt.Errorf("chunking: truncated index data: %w", chronoerr.ErrCorruptedData)
	}
	index := make([]byte, need)
	copy(index, raw[:need])
	raw = raw[need:]

	timestamps := make([]time.Time, rowCount)
	for i := 0; i < rowCount; i++ {
		ms := int64(binary.LittleEndian.Uint64(index[i*indexBytesPerRow : (i+1)*indexBytesPerRow]))
		timestamps[i] = decodeTimestampMS(ms)
	}

	cols := make([]table.Column, 0, len(descriptor.Columns))
	for _, cd := range descriptor.Columns {
		col, rest, err := decodeColumn(cd, rowCount, raw)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		raw = rest
	}
	if len(raw) != 0 {
		return nil, fmt.Errorf("chunking: %d trailing bytes not accounted for by descriptor: %w", len(raw), chronoerr.ErrCorruptedData)
	}

	return table.NewFrame(timestamps, descriptor.Timezone, cols...), nil
}
