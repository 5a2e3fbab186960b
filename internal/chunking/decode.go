package chunking

import (
	"encoding/binary"
	"fmt"
	"math"

	"chronovault/internal/chronoerr"
	"chronovault/internal/table"
)

// DecodeColumn decodes a single column from its own dedicated byte slice
// (no trailing bytes expected), for callers like package tickstore that
// compress one column at a time rather than one concatenated stream.
func DecodeColumn(name string, dtype table.Dtype, rowCount int, raw []byte) (table.Column, error) {
	col, rest, err := decodeColumn(ColumnDescriptor{Name: name, Dtype: dtype}, rowCount, raw)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("chunking: column %q has %d trailing bytes: %w", name, len(rest), chronoerr.ErrCorruptedData)
	}
	return col, nil
}

// decodeColumn consumes the bytes for one column from raw and returns the
// decoded column plus the remaining bytes.
func decodeColumn(cd ColumnDescriptor, rowCount int, raw []byte) (table.Column, []byte, error) {
	switch cd.Dtype {
	case table.DtypeFloat64:
		need := rowCount * 8
		if len(raw) < need {
			return nil, nil, fmt.Errorf("chunking: truncated column %q: %w", cd.Name, chronoerr.ErrCorruptedData)
		}
		values := make([]float64, rowCount)
		for i := range values {
			bits := binary.LittleEndian.Uint64(raw[i*8 : (i+1)*8])
			values[i] = math.Float64frombits(bits)
		}
		return table.NewFloat64Column(cd.Name, values), raw[need:], nil

	case table.DtypeInt64:
		need := rowCount * 8
		if len(raw) < need {
			return nil, nil, fmt.Errorf("chunking: truncated column %q: %w", cd.Name, chronoerr.ErrCorruptedData)
		}
		values := make([]int64, rowCount)
		for i := range values {
			values[i] = int64(binary.LittleEndian.Uint64(raw[i*8 : (i+1)*8]))
		}
		return table.NewInt64Column(cd.Name, values), raw[need:], nil

	case table.DtypeBool:
		if len(raw) < rowCount {
			return nil, nil, fmt.Errorf("chunking: truncated column %q: %w", cd.Name, chronoerr.ErrCorruptedData)
		}
		values := make([]bool, rowCount)
		for i := range values {
			values[i] = raw[i] != 0
		}
		return table.NewBoolColumn(cd.Name, values), raw[rowCount:], nil

	case table.DtypeString:
		values := make([]string, rowCount)
		cursor := 0
		for i := range values {
			if cursor+4 > len(raw) {
				return nil, nil, fmt.Errorf("chunking: truncated column %q: %w", cd.Name, chronoerr.ErrCorruptedData)
			}
			n := int(binary.LittleEndian.Uint32(raw[cursor : cursor+4]))
			cursor += 4
			if cursor+n > len(raw) {
				return nil, nil, fmt.Errorf("chunking: truncated column %q: %w", cd.Name, chronoerr.ErrCorruptedData)
			}
			values[i] = string(raw[cursor : cursor+n])
			cursor += n
		}
		return table.NewStringColumn(cd.Name, values), raw[cursor:], nil

	default:
		return nil, nil, fmt.Errorf("chunking: unknown dtype %d for column %q: %w", cd.Dtype, cd.Name, chronoerr.ErrCorruptedData)
	}
}
