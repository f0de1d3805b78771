// Package rowarray implements the portable, column-typed binary framing
// of the service's wire payload (spec.md section 9: "a single portable
// framing with a column-typed header, so a C++/Rust/Go server and a
// script-language client can both parse it"). Cached spectra on disk are
// numpy .npy files, not this framing; internal/dataset decodes them into
// the same in-memory RowArray. A RowArray is a set of equal-length named
// columns, each of a single scalar dtype, stored contiguously
// (column-major).
package rowarray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// DType identifies a column's element type.
type DType byte

const (
	Float32 DType = iota + 1
	Float64
	Int32
	Int64
)

func (d DType) size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

const magic = "SPRA"
const formatVersion = 1

// Column is one named, typed, contiguous column of a RowArray.
type Column struct {
	Name  string
	Type  DType
	Data  []byte // len(Data) == Rows * Type.size()
}

// RowArray is a named-column, row-count-aligned table: the in-memory
// shape of both the cached spectrum record and the wire payload.
type RowArray struct {
	Rows    int
	Columns []Column
}

// Column looks up a column by (case-insensitive) name.
func (r *RowArray) Column(name string) (*Column, bool) {
	for i := range r.Columns {
		if strings.EqualFold(r.Columns[i].Name, name) {
			return &r.Columns[i], true
		}
	}
	return nil, false
}

// Float64s decodes a column as []float64 regardless of its stored dtype.
func (c *Column) Float64s() []float64 {
	n := len(c.Data) / c.Type.size()
	out := make([]float64, n)
	switch c.Type {
	case Float32:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(c.Data[i*4:])
			out[i] = float64(f32frombits(bits))
		}
	case Float64:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(c.Data[i*8:])
			out[i] = f64frombits(bits)
		}
	case Int32:
		for i := 0; i < n; i++ {
			out[i] = float64(int32(binary.LittleEndian.Uint32(c.Data[i*4:])))
		}
	case Int64:
		for i := 0; i < n; i++ {
			out[i] = float64(int64(binary.LittleEndian.Uint64(c.Data[i*8:])))
		}
	}
	return out
}

// NewFloat32Column builds a Column from a []float32 slice.
func NewFloat32Column(name string, data []float32) Column {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], f32bits(v))
	}
	return Column{Name: name, Type: Float32, Data: buf}
}

// NewFloat64Column builds a Column from a []float64 slice.
func NewFloat64Column(name string, data []float64) Column {
	buf := make([]byte, len(data)*8)
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return Column{Name: name, Type: Float64, Data: buf}
}

// Select returns a new RowArray containing only the named columns, in
// the requested order, preserving row count. Used for the getSpec
// `values` column sub-selection (applied post-align, see DESIGN.md).
func (r *RowArray) Select(names []string) (*RowArray, error) {
	out := &RowArray{Rows: r.Rows}
	for _, name := range names {
		col, ok := r.Column(name)
		if !ok {
			return nil, fmt.Errorf("rowarray: no such column %q", name)
		}
		out.Columns = append(out.Columns, *col)
	}
	return out, nil
}

// Encode serializes the RowArray using the SPRA wire framing:
//
//	magic[4] version[1] ncols[2] nrows[4]
//	per column: namelen[1] name[namelen] dtype[1] data[nrows*size]
func Encode(w io.Writer, r *RowArray) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(formatVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(r.Columns))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(r.Rows)); err != nil {
		return err
	}
	for _, c := range r.Columns {
		if len(c.Name) > 255 {
			return fmt.Errorf("rowarray: column name %q too long", c.Name)
		}
		if _, err := w.Write([]byte{byte(len(c.Name))}); err != nil {
			return err
		}
		if _, err := w.Write([]byte(c.Name)); err != nil {
			return err
		}
		if _, err := w.Write([]byte{byte(c.Type)}); err != nil {
			return err
		}
		if _, err := w.Write(c.Data); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBytes is a convenience wrapper around Encode.
func EncodeBytes(r *RowArray) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses the SPRA wire framing produced by Encode.
func Decode(r io.Reader) (*RowArray, error) {
	hdr := make([]byte, 4+1+2+4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("rowarray: reading header: %w", err)
	}
	if string(hdr[:4]) != magic {
		return nil, fmt.Errorf("rowarray: bad magic %q", hdr[:4])
	}
	ncols := int(binary.LittleEndian.Uint16(hdr[5:7]))
	nrows := int(binary.LittleEndian.Uint32(hdr[7:11]))

	out := &RowArray{Rows: nrows}
	for i := 0; i < ncols; i++ {
		var nameLen [1]byte
		if _, err := io.ReadFull(r, nameLen[:]); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen[0])
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		var dtype [1]byte
		if _, err := io.ReadFull(r, dtype[:]); err != nil {
			return nil, err
		}
		dt := DType(dtype[0])
		data := make([]byte, nrows*dt.size())
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, Column{Name: string(name), Type: dt, Data: data})
	}
	return out, nil
}

func f32bits(f float32) uint32      { return math.Float32bits(f) }
func f32frombits(b uint32) float32  { return math.Float32frombits(b) }
func f64frombits(b uint64) float64  { return math.Float64frombits(b) }
