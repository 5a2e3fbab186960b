package table

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// baseColumn holds the name, dtype and length shared by the concrete
// Float64Column / Int64Column / BoolColumn / StringColumn types below,
// each of which implements Column over a Go slice.
type baseColumn struct {
	name  string
	dtype Dtype
	n     int
}

func (c baseColumn) Name() string  { return c.name }
func (c baseColumn) Dtype() Dtype  { return c.dtype }
func (c baseColumn) Len() int      { return c.n }

// Float64Column is a Column of float64 values.
type Float64Column struct {
	baseColumn
	Values []float64
}

// NewFloat64Column builds a Float64Column.
func NewFloat64Column(name string, values []float64) *Float64Column {
	return &Float64Column{baseColumn: baseColumn{name: name, dtype: DtypeFloat64, n: len(values)}, Values: values}
}

// Encode implements Column.
func (c *Float64Column) Encode(dst []byte) []byte {
	var buf [8]byte
	for _, v := range c.Values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		dst = append(dst, buf[:]...)
	}
	return dst
}

// Value implements Column.
func (c *Float64Column) Value(i int) any { return c.Values[i] }

// Slice implements Column.
func (c *Float64Column) Slice(start, end int) Column {
	return NewFloat64Column(c.name, c.Values[start:end])
}

// Int64Column is a Column of int64 values.
type Int64Column struct {
	baseColumn
	Values []int64
}

// NewInt64Column builds an Int64Column.
func NewInt64Column(name string, values []int64) *Int64Column {
	return &Int64Column{baseColumn: baseColumn{name: name, dtype: DtypeInt64, n: len(values)}, Values: values}
}

// Encode implements Column.
func (c *Int64Column) Encode(dst []byte) []byte {
	var buf [8]byte
	for _, v := range c.Values {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		dst = append(dst, buf[:]...)
	}
	return dst
}

// Value implements Column.
func (c *Int64Column) Value(i int) any { return c.Values[i] }

// Slice implements Column.
func (c *Int64Column) Slice(start, end int) Column {
	return NewInt64Column(c.name, c.Values[start:end])
}

// BoolColumn is a Column of bool values.
type BoolColumn struct {
	baseColumn
	Values []bool
}

// NewBoolColumn builds a BoolColumn.
func NewBoolColumn(name string, values []bool) *BoolColumn {
	return &BoolColumn{baseColumn: baseColumn{name: name, dtype: DtypeBool, n: len(values)}, Values: values}
}

// Encode implements Column.
func (c *BoolColumn) Encode(dst []byte) []byte {
	for _, v := range c.Values {
		if v {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}

// Value implements Column.
func (c *BoolColumn) Value(i int) any { return c.Values[i] }

// Slice implements Column.
func (c *BoolColumn) Slice(start, end int) Column {
	return NewBoolColumn(c.name, c.Values[start:end])
}

// StringColumn is a Column of string values, encoded length-prefixed
// (uint32 little-endian length followed by UTF-8 bytes) since strings are
// not fixed-width.
type StringColumn struct {
	baseColumn
	Values []string
}

// NewStringColumn builds a StringColumn.
func NewStringColumn(name string, values []string) *StringColumn {
	return &StringColumn{baseColumn: baseColumn{name: name, dtype: DtypeString, n: len(values)}, Values: values}
}

// Encode implements Column.
func (c *StringColumn) Encode(dst []byte) []byte {
	var lenBuf [4]byte
	for _, v := range c.Values {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
		dst = append(dst, lenBuf[:]...)
		dst = append(dst, v...)
	}
	return dst
}

// Value implements Column.
func (c *StringColumn) Value(i int) any { return c.Values[i] }

// Slice implements Column.
func (c *StringColumn) Slice(start, end int) Column {
	return NewStringColumn(c.name, c.Values[start:end])
}

// Frame is a minimal in-memory Table, used by tests and simple callers
// that don't bring their own tabular type.
type Frame struct {
	index []time.Time
	tz    string
	cols  []Column
}

// NewFrame builds a Frame. All columns must have length len(index);
// NewFrame panics otherwise since this is a programmer error, not a
// runtime data error.
func NewFrame(index []time.Time, tz string, cols ...Column) *Frame {
	for _, c := range cols {
		if c.Len() != len(index) {
			panic(fmt.Sprintf("table: column %q has length %d, want %d", c.Name(), c.Len(), len(index)))
		}
	}
	return &Frame{index: index, tz: tz, cols: cols}
}

// Index implements Table.
func (f *Frame) Index() []time.Time { return f.index }

// Timezone implements Table.
func (f *Frame) Timezone() string { return f.tz }

// Columns implements Table.
func (f *Frame) Columns() []Column { return f.cols }

// Len implements Table.
func (f *Frame) Len() int { return len(f.index) }
