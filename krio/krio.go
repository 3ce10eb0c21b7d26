// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package krio is the external collaborator spec.md treats as opaque:
// a reader/writer for the krda binary table wire format. It knows
// nothing about predicates or filtering; it only turns column
// specifications and row values into bytes (Write) and bytes off the
// wire into a heap.MemoryBlock (Load). Load does not validate the
// header; structural validation is done by package table.
package krio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/krda-project/krda/bytestring"
	"github.com/krda-project/krda/ctype"
	"github.com/krda-project/krda/heap"
	"github.com/krda-project/krda/table"
)

// ColumnSpec describes one column to be written by Write. For
// numeric types Size must match the registered width of Type (or be
// left 0, in which case it is filled in); for string, date and bytes,
// Size is the fixed per-row slot width the caller has chosen.
type ColumnSpec struct {
	Name string
	Type string
	Size uint32
}

func resolve(cols []ColumnSpec) ([]table.Column, uint32, error) {
	out := make([]table.Column, len(cols))
	var offset uint32
	for i, c := range cols {
		typ, ok := ctype.Lookup(c.Type)
		if !ok {
			return nil, 0, fmt.Errorf("krio: unknown column type %q for column %q", c.Type, c.Name)
		}
		size := c.Size
		if typ.IsNumeric() {
			if size == 0 {
				size = typ.Size
			} else if size != typ.Size {
				return nil, 0, fmt.Errorf("krio: column %q: size %d does not match %s width %d", c.Name, size, c.Type, typ.Size)
			}
		} else if size == 0 {
			return nil, 0, fmt.Errorf("krio: column %q: %s columns require an explicit Size", c.Name, c.Type)
		}
		out[i] = table.Column{Name: c.Name, Type: typ, Offset: offset, Size: size}
		offset += size
	}
	return out, offset, nil
}

func writeShortString(w *bufio.Writer, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("krio: %q exceeds 255-byte short-string limit", s)
	}
	if err := w.WriteByte(byte(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// Write encodes columns and rows into the krda binary wire format
// and writes them to w. rows[i][j] must be the Go value ctype.Type.Set
// expects for columns[j].Type (int64/uint64/float64 for numerics,
// a string or []byte for string/date/bytes).
func Write(w io.Writer, columns []ColumnSpec, rows [][]any) error {
	cols, rowStride, err := resolve(columns)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)

	var fixed [20]byte
	copy(fixed[0:4], table.Magic[:])
	binary.LittleEndian.PutUint16(fixed[4:6], table.Version)
	binary.LittleEndian.PutUint32(fixed[8:12], uint32(len(rows)))
	binary.LittleEndian.PutUint32(fixed[12:16], rowStride)
	binary.LittleEndian.PutUint16(fixed[16:18], uint16(len(cols)))
	if _, err := bw.Write(fixed[:]); err != nil {
		return err
	}

	headerLen := 20
	for _, c := range cols {
		if err := writeShortString(bw, c.Name); err != nil {
			return err
		}
		if err := writeShortString(bw, c.Type.Name); err != nil {
			return err
		}
		var tail [8]byte
		binary.LittleEndian.PutUint32(tail[0:4], c.Offset)
		binary.LittleEndian.PutUint32(tail[4:8], c.Size)
		if _, err := bw.Write(tail[:]); err != nil {
			return err
		}
		headerLen += 1 + len(c.Name) + 1 + len(c.Type.Name) + 8
	}
	if pad := alignUp(headerLen) - headerLen; pad > 0 {
		if _, err := bw.Write(make([]byte, pad)); err != nil {
			return err
		}
	}

	row := make([]byte, rowStride)
	for _, values := range rows {
		if len(values) != len(cols) {
			return fmt.Errorf("krio: row has %d values, expected %d", len(values), len(cols))
		}
		for i, c := range cols {
			v := asSettable(c.Type, values[i])
			if err := c.Type.Set(row, c.Offset, v); err != nil {
				return fmt.Errorf("krio: column %q: %w", c.Name, err)
			}
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func asSettable(typ *ctype.Type, v any) any {
	switch x := v.(type) {
	case string:
		return bytestring.FromString(x)
	case []byte:
		return bytestring.Of(x)
	default:
		return v
	}
}

func alignUp(n int) int {
	const align = 8
	if rem := n % align; rem != 0 {
		n += align - rem
	}
	return n
}

// Load reads all of r into a freshly allocated heap.MemoryBlock sized
// to fit exactly, without interpreting column contents beyond what is
// needed to size the allocation. Structural validation of the header
// (magic, overlapping columns, row stride) is table.New's job; Load
// only fails if it cannot read the stream or the heap cannot satisfy
// the allocation.
func Load(h *heap.Heap, r io.Reader) (heap.MemoryBlock, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return heap.MemoryBlock{}, fmt.Errorf("krio: reading table bytes: %w", err)
	}
	block, err := h.Allocate(len(data))
	if err != nil {
		return heap.MemoryBlock{}, err
	}
	copy(block.Bytes(), data)
	return block, nil
}
