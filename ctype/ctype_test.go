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

package ctype

import (
	"testing"

	"github.com/krda-project/krda/bytestring"
)

func TestNumericRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    any
	}{
		{"int8", int64(-42)},
		{"uint8", uint64(200)},
		{"int16", int64(-1000)},
		{"uint16", uint64(60000)},
		{"int32", int64(-100000)},
		{"uint32", uint64(4000000000)},
		{"float32", float64(float32(3.25))},
	}
	for _, c := range cases {
		typ, ok := Lookup(c.name)
		if !ok {
			t.Fatalf("type %q not registered", c.name)
		}
		buf := make([]byte, 16)
		if err := typ.Set(buf, 4, c.v); err != nil {
			t.Fatalf("%s: Set: %s", c.name, err)
		}
		got, err := typ.Get(buf, 4)
		if err != nil {
			t.Fatalf("%s: Get: %s", c.name, err)
		}
		if got != c.v {
			t.Fatalf("%s: round trip mismatch: put %v got %v", c.name, c.v, got)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	typ, _ := Lookup("string")
	buf := make([]byte, 32)
	in := bytestring.FromString("hello")
	if err := typ.Set(buf, 0, in); err != nil {
		t.Fatal(err)
	}
	got, err := typ.Get(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	bs := got.(bytestring.ByteString)
	if bs.String() != "hello" {
		t.Fatalf("got %q, want %q", bs.String(), "hello")
	}
}

func TestBytesFixedWidth(t *testing.T) {
	typ, _ := Lookup("bytes")
	buf := make([]byte, 8)
	in := bytestring.Of([]byte{1, 2, 3, 4})
	if err := typ.Set(buf, 0, in); err != nil {
		t.Fatal(err)
	}
	got, err := typ.Get(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.(bytestring.ByteString).Bytes()[:4]) != string([]byte{1, 2, 3, 4}) {
		t.Fatal("round trip mismatch for bytes type")
	}
}

func TestUnknownType(t *testing.T) {
	if _, ok := Lookup("nope"); ok {
		t.Fatal("expected unknown type name to be absent")
	}
}
