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

package table_test

import (
	"encoding/binary"
	"testing"

	"github.com/krda-project/krda/heap"
	"github.com/krda-project/krda/table"
)

// buildRaw hand-assembles a minimal valid header with one uint32
// column "x" over 3 rows, for testing BadFormatError paths that
// krio.Write would never itself produce.
func buildRaw(magic [4]byte, version uint16, rowCount, rowStride uint32, colOffset, colSize uint32) []byte {
	buf := make([]byte, 20)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], version)
	binary.LittleEndian.PutUint32(buf[8:12], rowCount)
	binary.LittleEndian.PutUint32(buf[12:16], rowStride)
	binary.LittleEndian.PutUint16(buf[16:18], 1)

	col := make([]byte, 0, 16)
	col = append(col, 1, 'x')       // nameLen, name
	col = append(col, 6)            // typeLen
	col = append(col, []byte("uint32")...)
	tail := make([]byte, 8)
	binary.LittleEndian.PutUint32(tail[0:4], colOffset)
	binary.LittleEndian.PutUint32(tail[4:8], colSize)
	col = append(col, tail...)

	buf = append(buf, col...)
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, uint64(rowCount)*uint64(rowStride))...)
	return buf
}

func allocate(t *testing.T, raw []byte) heap.MemoryBlock {
	t.Helper()
	h, err := heap.New(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	block, err := h.Allocate(len(raw))
	if err != nil {
		t.Fatal(err)
	}
	copy(block.Bytes(), raw)
	return block
}

func TestBadMagic(t *testing.T) {
	raw := buildRaw([4]byte{'X', 'X', 'X', 'X'}, table.Version, 3, 4, 0, 4)
	_, err := table.New(allocate(t, raw))
	if _, ok := err.(*table.BadFormatError); !ok {
		t.Fatalf("expected *BadFormatError, got %v", err)
	}
}

func TestBadVersion(t *testing.T) {
	raw := buildRaw(table.Magic, 99, 3, 4, 0, 4)
	_, err := table.New(allocate(t, raw))
	if _, ok := err.(*table.BadFormatError); !ok {
		t.Fatalf("expected *BadFormatError, got %v", err)
	}
}

func TestColumnExceedsStride(t *testing.T) {
	raw := buildRaw(table.Magic, table.Version, 3, 4, 2, 4) // offset 2 + size 4 > stride 4
	_, err := table.New(allocate(t, raw))
	if _, ok := err.(*table.BadFormatError); !ok {
		t.Fatalf("expected *BadFormatError, got %v", err)
	}
}

func TestTruncatedBuffer(t *testing.T) {
	raw := buildRaw(table.Magic, table.Version, 3, 4, 0, 4)
	raw = raw[:len(raw)-4] // drop the last row's worth of bytes
	_, err := table.New(allocate(t, raw))
	if _, ok := err.(*table.BadFormatError); !ok {
		t.Fatalf("expected *BadFormatError, got %v", err)
	}
}

const headerSize = 40 // 20-byte fixed header + 17-byte "x:uint32" column, aligned up to 8

func TestValidHeaderRowAccess(t *testing.T) {
	raw := buildRaw(table.Magic, table.Version, 3, 4, 0, 4)
	binary.LittleEndian.PutUint32(raw[headerSize:headerSize+4], 111)   // row 0
	binary.LittleEndian.PutUint32(raw[headerSize+4:headerSize+8], 222) // row 1
	binary.LittleEndian.PutUint32(raw[headerSize+8:headerSize+12], 333) // row 2

	tbl, err := table.New(allocate(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 3 || tbl.RowStride() != 4 {
		t.Fatalf("unexpected shape: rows=%d stride=%d", tbl.RowCount(), tbl.RowStride())
	}
	col, ok := tbl.Column("x")
	if !ok || col.Type.Name != "uint32" {
		t.Fatalf("expected column x:uint32, got %+v ok=%v", col, ok)
	}

	row := tbl.NewRow()
	want := []uint64{111, 222, 333}
	for i, w := range want {
		row.Index = uint32(i)
		v, err := row.Get(0)
		if err != nil {
			t.Fatal(err)
		}
		if v.(uint64) != w {
			t.Fatalf("row %d: got %v, want %d", i, v, w)
		}
	}
}

func TestMultipleRowsIndependent(t *testing.T) {
	raw := buildRaw(table.Magic, table.Version, 2, 4, 0, 4)
	binary.LittleEndian.PutUint32(raw[headerSize:headerSize+4], 7)
	binary.LittleEndian.PutUint32(raw[headerSize+4:headerSize+8], 9)
	tbl, err := table.New(allocate(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	a := tbl.NewRow()
	b := tbl.NewRow()
	a.Index = 0
	b.Index = 1
	av, _ := a.Get(0)
	bv, _ := b.Get(0)
	if av.(uint64) != 7 || bv.(uint64) != 9 {
		t.Fatalf("independent cursors interfered: a=%v b=%v", av, bv)
	}
}
