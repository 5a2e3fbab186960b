package tickstore

import (
	"encoding/binary"
	"fmt"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/table"
)

func decodeMS(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeIndex(times []int64) []byte {
	raw := make([]byte, 0, len(times)*8)
	var buf [8]byte
	for _, ms := range times {
		binary.LittleEndian.PutUint64(buf[:], uint64(ms))
		raw = append(raw, buf[:]...)
	}
	return raw
}

func decodeIndexMS(raw []byte, count int) ([]int64, error) {
	need := count * 8
	if len(raw) < need {
		return nil, fmt.Errorf("tickstore: truncated index: %w", chronoerr.ErrCorruptedData)
	}
	out := make([]int64, count)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*8 : (i+1)*8]))
	}
	return out, nil
}

// buildChunk compresses tbl's rows [start,end) into a Chunk. Each column
// is compressed independently, unlike version-store segments which
// concatenate columns before splitting.
func buildChunk(symbol string, tbl table.Table, start, end int, msIndex []int64) (Chunk, error) {
	n := end - start
	indexRaw := encodeIndex(msIndex[start:end])
	indexCompressed, err := chunking.CompressBlock(indexRaw)
	if err != nil {
		return Chunk{}, fmt.Errorf("tickstore: compress index: %w", err)
	}

	cols := tbl.Columns()
	chunkCols := make([]ColumnChunk, 0, len(cols))
	image := make(map[string]any, len(cols))
	for _, col := range cols {
		part := col.Slice(start, end)
		raw := part.Encode(nil)
		compressed, err := chunking.CompressBlock(raw)
		if err != nil {
			return Chunk{}, fmt.Errorf("tickstore: compress column %q: %w", col.Name(), err)
		}
		chunkCols = append(chunkCols, ColumnChunk{Name: col.Name(), Dtype: col.Dtype(), Compressed: compressed})
		image[col.Name()] = col.Value(start)
	}

	return Chunk{
		Symbol:          symbol,
		Start:           decodeMS(msIndex[start]),
		End:             decodeMS(msIndex[end-1]),
		Count:           n,
		IndexCompressed: indexCompressed,
		Columns:         chunkCols,
		Timezone:        tbl.Timezone(),
		Image:           image,
	}, nil
}

// decodeChunk inverts buildChunk, returning the row timestamps and
// decoded columns.
func decodeChunk(c Chunk) ([]int64, []table.Column, error) {
	indexRaw, err := chunking.DecompressBlock(c.IndexCompressed)
	if err != nil {
		return nil, nil, fmt.Errorf("tickstore: decompress index: %w", err)
	}
	msIndex, err := decodeIndexMS(indexRaw, c.Count)
	if err != nil {
		return nil, nil, err
	}

	cols := make([]table.Column, 0, len(c.Columns))
	for _, cc := range c.Columns {
		raw, err := chunking.DecompressBlock(cc.Compressed)
		if err != nil {
			return nil, nil, fmt.Errorf("tickstore: decompress column %q: %w", cc.Name, err)
		}
		col, err := chunking.DecodeColumn(cc.Name, cc.Dtype, c.Count, raw)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, col)
	}
	return msIndex, cols, nil
}
