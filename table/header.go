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

package table

import (
	"encoding/binary"
	"fmt"

	"github.com/krda-project/krda/ctype"
)

// Magic identifies a krda table's binary header.
var Magic = [4]byte{'K', 'R', 'D', 'A'}

// Version is the only header version this package understands.
const Version = 1

// headerFixedSize is the byte length of the header up to (but not
// including) the column descriptors: magic(4) + version(2) + flags(2)
// + rowCount(4) + rowStride(4) + columnCount(2) + reserved(2).
const headerFixedSize = 20

const align = 8

// BadFormatError is returned by New when a table's header fails to
// parse or its invariants do not hold.
type BadFormatError struct {
	Reason string
}

func (e *BadFormatError) Error() string {
	return fmt.Sprintf("table: bad format: %s", e.Reason)
}

// Column describes one column's placement within a row.
type Column struct {
	Name   string
	Type   *ctype.Type
	Offset uint32
	Size   uint32
}

// header holds the parsed, validated table metadata.
type header struct {
	rowCount   uint32
	rowStride  uint32
	columns    []Column
	byName     map[string]int
	headerSize uint32 // total header length, rows start here
}

func readShortString(buf []byte, pos int) (string, int, error) {
	if pos >= len(buf) {
		return "", pos, &BadFormatError{Reason: "truncated header (short-string length)"}
	}
	n := int(buf[pos])
	pos++
	if pos+n > len(buf) {
		return "", pos, &BadFormatError{Reason: "truncated header (short-string bytes)"}
	}
	return string(buf[pos : pos+n]), pos + n, nil
}

func alignUp(n int) int {
	if rem := n % align; rem != 0 {
		n += align - rem
	}
	return n
}

// parseHeader decodes the header at the start of buf. It validates
// magic/version, that column offsets are non-overlapping and within
// rowStride, and that the buffer is large enough to hold
// rowCount*rowStride bytes of row data after the header.
func parseHeader(buf []byte) (*header, error) {
	if len(buf) < headerFixedSize {
		return nil, &BadFormatError{Reason: "buffer shorter than fixed header"}
	}
	if [4]byte(buf[0:4]) != Magic {
		return nil, &BadFormatError{Reason: "bad magic"}
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != Version {
		return nil, &BadFormatError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	rowCount := binary.LittleEndian.Uint32(buf[8:12])
	rowStride := binary.LittleEndian.Uint32(buf[12:16])
	columnCount := binary.LittleEndian.Uint16(buf[16:18])

	pos := headerFixedSize
	cols := make([]Column, 0, columnCount)
	byName := make(map[string]int, columnCount)
	occupied := make([]bool, rowStride)

	for i := 0; i < int(columnCount); i++ {
		name, next, err := readShortString(buf, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		typeName, next, err := readShortString(buf, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		if pos+8 > len(buf) {
			return nil, &BadFormatError{Reason: "truncated column descriptor"}
		}
		offset := binary.LittleEndian.Uint32(buf[pos:])
		size := binary.LittleEndian.Uint32(buf[pos+4:])
		pos += 8

		typ, ok := ctype.Lookup(typeName)
		if !ok {
			return nil, &BadFormatError{Reason: fmt.Sprintf("column %q: unknown type %q", name, typeName)}
		}
		if uint64(offset)+uint64(size) > uint64(rowStride) {
			return nil, &BadFormatError{Reason: fmt.Sprintf("column %q: offset+size exceeds row stride", name)}
		}
		for b := offset; b < offset+size; b++ {
			if occupied[b] {
				return nil, &BadFormatError{Reason: fmt.Sprintf("column %q: overlaps a previous column at byte %d", name, b)}
			}
			occupied[b] = true
		}
		if _, dup := byName[name]; dup {
			return nil, &BadFormatError{Reason: fmt.Sprintf("duplicate column name %q", name)}
		}

		byName[name] = len(cols)
		cols = append(cols, Column{Name: name, Type: typ, Offset: offset, Size: size})
	}

	headerSize := uint32(alignUp(pos))
	need := uint64(headerSize) + uint64(rowCount)*uint64(rowStride)
	if need > uint64(len(buf)) {
		return nil, &BadFormatError{Reason: fmt.Sprintf("buffer too small for %d rows of stride %d", rowCount, rowStride)}
	}

	return &header{
		rowCount:   rowCount,
		rowStride:  rowStride,
		columns:    cols,
		byName:     byName,
		headerSize: headerSize,
	}, nil
}
