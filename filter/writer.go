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

package filter

import (
	"fmt"

	"github.com/krda-project/krda/ctype"
	"github.com/krda-project/krda/table"
)

// writer is a precomputed projection step: copy one field from a
// matching row into the current result slot at a fixed byte offset.
// Either ordinal >= 0 (copy table column ordinal) or rowIndex is true
// (copy the matched row's index as a uint32). size is this writer's
// own slot width, validated by compileWriters against typ's actual
// write footprint so that adjacent writers can never overlap.
type writer struct {
	dstOffset uint32
	size      uint32
	typ       *ctype.Type
	ordinal   int
	rowIndex  bool
}

// write clamps dst down to exactly this writer's own [dstOffset,
// dstOffset+size) slot before calling typ.Set, so a type with no
// self-describing length of its own (bytes) -- or one whose Set call
// forgets to bounds-check -- cannot spill into the next field's slot
// in the packed result row.
func (w *writer) write(row *table.Row, dst []byte) error {
	var v any
	if w.rowIndex {
		v = uint64(row.Index)
	} else {
		got, err := row.Get(w.ordinal)
		if err != nil {
			return err
		}
		v = got
	}
	if uint64(w.dstOffset)+uint64(w.size) > uint64(len(dst)) {
		return fmt.Errorf("filter: writer slot [%d, %d) exceeds result row of length %d", w.dstOffset, w.dstOffset+w.size, len(dst))
	}
	slot := dst[w.dstOffset : w.dstOffset+w.size]
	return w.typ.Set(slot, 0, v)
}

// compileWriters lowers a ResultDescription against t's columns into
// a fixed sequence of writers and the resulting packed row size R =
// sum of item sizes (no padding, per spec.md §3). item.Size is
// untrusted input (it travels through a JSON query file, see
// cmd/krda's "filter" subcommand) and is validated here against each
// type's actual write footprint rather than merely used to advance
// the offset: a mismatch between a declared slot and what the type
// actually writes would otherwise let one field's write corrupt its
// neighbor's bytes in the packed row.
func compileWriters(t *table.Table, desc ResultDescription) ([]writer, uint32, error) {
	writers := make([]writer, len(desc))
	var offset uint32
	for i, item := range desc {
		typ, ok := ctype.Lookup(item.Type)
		if !ok {
			return nil, 0, fmt.Errorf("filter: projection item %d: unknown type %q", i, item.Type)
		}
		if item.Column == nil {
			if item.Type != "uint32" || item.Size != 4 {
				return nil, 0, fmt.Errorf("filter: row-index projection must be uint32/4, got %s/%d", item.Type, item.Size)
			}
			writers[i] = writer{dstOffset: offset, size: 4, typ: typ, rowIndex: true}
			offset += 4
			continue
		}
		ordinal, col, ok := indexOf(t, *item.Column)
		if !ok {
			return nil, 0, fmt.Errorf("filter: projection references unknown column %q", *item.Column)
		}
		if col.Type.Name != item.Type {
			return nil, 0, fmt.Errorf("filter: projection item %d: type %q does not match column %q's type %q", i, item.Type, *item.Column, col.Type.Name)
		}
		// canonical is the slot width this type actually writes:
		// fixed-width numeric types always write exactly typ.Size,
		// regardless of what the column declares; string/date/bytes
		// write within the column's own declared Size.
		canonical := col.Size
		if typ.IsNumeric() {
			canonical = typ.Size
		}
		size := item.Size
		if size == 0 {
			size = canonical
		}
		if size != canonical {
			return nil, 0, fmt.Errorf("filter: projection item %d: column %q needs a %d-byte slot, got %d", i, *item.Column, canonical, size)
		}
		writers[i] = writer{dstOffset: offset, size: size, typ: typ, ordinal: ordinal}
		offset += size
	}
	return writers, offset, nil
}

func indexOf(t *table.Table, name string) (int, table.Column, bool) {
	for i, c := range t.Columns() {
		if c.Name == name {
			return i, c, true
		}
	}
	return 0, table.Column{}, false
}
