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

// Package table reads the krda binary table header from a
// heap.MemoryBlock and exposes a zero-copy, typed Row cursor over the
// rows that follow it.
package table

import "github.com/krda-project/krda/heap"

// Table is a parsed, validated view over one heap.MemoryBlock holding
// a header followed by rowCount*rowStride bytes of row data. Multiple
// Tables, and multiple Rows derived from one Table, may coexist over
// the same or aliased MemoryBlocks without interfering with each
// other -- none of Table's methods mutate the underlying bytes.
type Table struct {
	block heap.MemoryBlock
	hdr   *header
}

// New parses the header at the start of block and validates its
// invariants (magic, version, non-overlapping column offsets within
// the row stride, and that block is large enough to hold every row).
// It returns a *BadFormatError if any check fails.
func New(block heap.MemoryBlock) (*Table, error) {
	hdr, err := parseHeader(block.Bytes())
	if err != nil {
		return nil, err
	}
	return &Table{block: block, hdr: hdr}, nil
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() uint32 { return t.hdr.rowCount }

// RowStride returns the byte width of one row.
func (t *Table) RowStride() uint32 { return t.hdr.rowStride }

// Columns returns the table's columns in declaration order.
func (t *Table) Columns() []Column { return t.hdr.columns }

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.hdr.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.hdr.columns[i], true
}

// Block returns the heap.MemoryBlock this table is bound to, as
// (offset, size), so that a dispatch message can describe it and a
// worker can rebind to it with heap.Heap.At instead of sharing this
// *Table value directly.
func (t *Table) Block() heap.MemoryBlock { return t.block }

// view returns the full underlying MemoryBlock bytes (header + rows).
func (t *Table) view() []byte { return t.block.Bytes() }

// rowStart returns the absolute byte offset, within view(), of the
// first byte of row index i.
func (t *Table) rowStart(i uint32) uint32 {
	return t.hdr.headerSize + i*t.hdr.rowStride
}

// NewRow returns a Row cursor bound to this table, with
// index 0. Every column accessor is precomputed once here so that
// repeated calls to Row.Get only pay for a slice index and a type
// dispatch, not a name lookup.
func (t *Table) NewRow() *Row {
	r := &Row{t: t}
	r.getters = make([]func() (any, error), len(t.hdr.columns))
	for i, c := range t.hdr.columns {
		c := c
		r.getters[i] = func() (any, error) {
			off := t.rowStart(r.Index) + c.Offset
			// clamp the view to this column's own slot so a
			// self-describing read (string/date) can't run past
			// it and a raw span (bytes, which carries no length
			// prefix of its own) stops exactly at c.Size.
			view := t.view()[:off+c.Size]
			return c.Type.Get(view, off)
		}
	}
	return r
}
