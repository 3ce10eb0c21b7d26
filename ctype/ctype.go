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

// Package ctype is the fixed registry of primitive column encodings
// used by a krda table: int8/16/32, uint8/16/32, float32, string,
// date and bytes. Every Type knows its own byte width and how to
// get/set a value at a given offset in a row view. Numeric types are
// little-endian; string and date are length-prefixed in place (no
// copy on read); bytes is a fixed-width raw span.
package ctype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/krda-project/krda/bytestring"
)

// Type is an immutable descriptor for one column encoding.
type Type struct {
	// Name is the wire-format type name, e.g. "uint32".
	Name string
	// Size is the fixed byte width this type occupies in a row.
	// For string, date and bytes it is 0: their slot width comes
	// from the column header (for string/date, a u16 length prefix
	// plus up to width-2 bytes of payload; trailing bytes beyond
	// the encoded length are ignored on read).
	Size uint32

	get func(view []byte, offset uint32) (any, error)
	set func(view []byte, offset uint32, v any) error
}

// Get reads the value of this type at offset within view.
func (t *Type) Get(view []byte, offset uint32) (any, error) { return t.get(view, offset) }

// Set writes v, which must be the Go type this Type round-trips
// (int64 for signed integer types, uint64 for unsigned, float64 for
// float32, bytestring.ByteString for string/date/bytes), at offset
// within view.
func (t *Type) Set(view []byte, offset uint32, v any) error { return t.set(view, offset, v) }

func need(view []byte, offset, n uint32) error {
	if uint64(offset)+uint64(n) > uint64(len(view)) {
		return fmt.Errorf("ctype: offset %d + size %d exceeds view of length %d", offset, n, len(view))
	}
	return nil
}

var registry = map[string]*Type{}

func register(t *Type) { registry[t.Name] = t }

// Lookup returns the Type registered under name, or false if name is
// not one of the ten fixed encodings.
func Lookup(name string) (*Type, bool) {
	t, ok := registry[name]
	return t, ok
}

// IsNumeric reports whether t is one of the integer or float32
// encodings (as opposed to string/date/bytes).
func (t *Type) IsNumeric() bool {
	switch t.Name {
	case "string", "date", "bytes":
		return false
	default:
		return true
	}
}

// IsTextlike reports whether t supports ByteString-based comparisons
// (equal/notEqual/contains): string and date.
func (t *Type) IsTextlike() bool {
	return t.Name == "string" || t.Name == "date"
}

func init() {
	register(&Type{
		Name: "int8", Size: 1,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 1); err != nil {
				return nil, err
			}
			return int64(int8(view[offset])), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 1); err != nil {
				return err
			}
			view[offset] = byte(int8(v.(int64)))
			return nil
		},
	})
	register(&Type{
		Name: "uint8", Size: 1,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 1); err != nil {
				return nil, err
			}
			return uint64(view[offset]), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 1); err != nil {
				return err
			}
			view[offset] = byte(v.(uint64))
			return nil
		},
	})
	register(&Type{
		Name: "int16", Size: 2,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 2); err != nil {
				return nil, err
			}
			return int64(int16(binary.LittleEndian.Uint16(view[offset:]))), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 2); err != nil {
				return err
			}
			binary.LittleEndian.PutUint16(view[offset:], uint16(int16(v.(int64))))
			return nil
		},
	})
	register(&Type{
		Name: "uint16", Size: 2,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 2); err != nil {
				return nil, err
			}
			return uint64(binary.LittleEndian.Uint16(view[offset:])), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 2); err != nil {
				return err
			}
			binary.LittleEndian.PutUint16(view[offset:], uint16(v.(uint64)))
			return nil
		},
	})
	register(&Type{
		Name: "int32", Size: 4,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 4); err != nil {
				return nil, err
			}
			return int64(int32(binary.LittleEndian.Uint32(view[offset:]))), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 4); err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(view[offset:], uint32(int32(v.(int64))))
			return nil
		},
	})
	register(&Type{
		Name: "uint32", Size: 4,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 4); err != nil {
				return nil, err
			}
			return uint64(binary.LittleEndian.Uint32(view[offset:])), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 4); err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(view[offset:], uint32(v.(uint64)))
			return nil
		},
	})
	register(&Type{
		Name: "float32", Size: 4,
		get: func(view []byte, offset uint32) (any, error) {
			if err := need(view, offset, 4); err != nil {
				return nil, err
			}
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(view[offset:]))), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			if err := need(view, offset, 4); err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(view[offset:], math.Float32bits(float32(v.(float64))))
			return nil
		},
	})
	register(&Type{
		Name: "string", Size: 0, // Size is supplied per-column by the table header
		get: getLengthPrefixed,
		set: setLengthPrefixed,
	})
	register(&Type{
		Name: "date", Size: 0,
		get: getLengthPrefixed,
		set: setLengthPrefixed,
	})
	register(&Type{
		Name: "bytes", Size: 0, // fixed-width raw span, size from column header
		get: func(view []byte, offset uint32) (any, error) {
			// caller clamps via the column's declared size; bytes
			// has no self-describing length, so ctype itself can
			// only bounds-check against the view it was given.
			if err := need(view, offset, 0); err != nil {
				return nil, err
			}
			return bytestring.Of(view[offset:]), nil
		},
		set: func(view []byte, offset uint32, v any) error {
			bs := v.(bytestring.ByteString)
			if err := need(view, offset, uint32(bs.Len())); err != nil {
				return err
			}
			copy(view[offset:], bs.Bytes())
			return nil
		},
	})
}

// getLengthPrefixed reads a u16 length prefix followed by that many
// bytes, used for both "string" and "date" columns per the wire
// format: trailing bytes within the column's fixed slot are ignored.
func getLengthPrefixed(view []byte, offset uint32) (any, error) {
	if err := need(view, offset, 2); err != nil {
		return nil, err
	}
	n := uint32(binary.LittleEndian.Uint16(view[offset:]))
	if err := need(view, offset+2, n); err != nil {
		return nil, err
	}
	return bytestring.Of(view[offset+2 : offset+2+n]), nil
}

func setLengthPrefixed(view []byte, offset uint32, v any) error {
	bs := v.(bytestring.ByteString)
	n := bs.Len()
	if err := need(view, offset, uint32(2+n)); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(view[offset:], uint16(n))
	copy(view[offset+2:], bs.Bytes())
	return nil
}
