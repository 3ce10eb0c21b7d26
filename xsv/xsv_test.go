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

package xsv_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/krda-project/krda/heap"
	"github.com/krda-project/krda/table"
	"github.com/krda-project/krda/xsv"
)

const hintJSON = `{
	"skipRecords": 1,
	"fields": [
		{"name": "id", "type": "uint32"},
		{"name": "name", "type": "string", "size": 32},
		{"name": "score", "type": "float32"}
	]
}`

func TestConvertCSVRoundTrip(t *testing.T) {
	hint, err := xsv.ParseHint([]byte(hintJSON))
	if err != nil {
		t.Fatal(err)
	}

	csvData := "id,name,score\n1,alice,9.5\n2,bob,7.25\n"
	var out bytes.Buffer
	ch := &xsv.CsvChopper{SkipRecords: hint.SkipRecords}
	if err := xsv.Convert(&out, strings.NewReader(csvData), ch, hint); err != nil {
		t.Fatal(err)
	}

	h, err := heap.New(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	block, err := h.Allocate(out.Len())
	if err != nil {
		t.Fatal(err)
	}
	copy(block.Bytes(), out.Bytes())

	tbl, err := table.New(block)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.RowCount())
	}

	row := tbl.NewRow()
	id, err := row.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if id.(uint64) != 1 {
		t.Fatalf("expected id=1, got %v", id)
	}
	name, err := row.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if name.(interface{ String() string }).String() != "alice" {
		t.Fatalf("expected name=alice, got %v", name)
	}
}

func TestConvertMissingTrailingFieldUsesDefault(t *testing.T) {
	hint, err := xsv.ParseHint([]byte(`{
		"fields": [
			{"name": "id", "type": "uint32"},
			{"name": "tag", "type": "string", "size": 16, "default": "none"}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ch := &xsv.CsvChopper{}
	if err := xsv.Convert(&out, strings.NewReader("1\n"), ch, hint); err != nil {
		t.Fatal(err)
	}

	h, err := heap.New(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	block, err := h.Allocate(out.Len())
	if err != nil {
		t.Fatal(err)
	}
	copy(block.Bytes(), out.Bytes())
	tbl, err := table.New(block)
	if err != nil {
		t.Fatal(err)
	}
	row := tbl.NewRow()
	tag, err := row.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if tag.(interface{ String() string }).String() != "none" {
		t.Fatalf("expected tag=none, got %v", tag)
	}
}

func TestConvertTSV(t *testing.T) {
	hint, err := xsv.ParseHint([]byte(`{
		"fields": [{"name": "n", "type": "int32"}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	ch := &xsv.TsvChopper{}
	if err := xsv.Convert(&out, strings.NewReader("-5\n42\n"), ch, hint); err != nil {
		t.Fatal(err)
	}

	h, err := heap.New(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	block, err := h.Allocate(out.Len())
	if err != nil {
		t.Fatal(err)
	}
	copy(block.Bytes(), out.Bytes())
	tbl, err := table.New(block)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.RowCount())
	}
}

func TestParseHintRejectsUnknownType(t *testing.T) {
	_, err := xsv.ParseHint([]byte(`{"fields":[{"name":"x","type":"nope"}]}`))
	if err == nil {
		t.Fatal("expected an error for an unknown type")
	}
}

func TestParseHintRequiresSizeForTextlike(t *testing.T) {
	_, err := xsv.ParseHint([]byte(`{"fields":[{"name":"x","type":"string"}]}`))
	if err == nil {
		t.Fatal("expected an error for a string column with no size")
	}
}

func TestConvertNoHints(t *testing.T) {
	var out bytes.Buffer
	ch := &xsv.CsvChopper{}
	if err := xsv.Convert(&out, strings.NewReader("a,b\n"), ch, &xsv.Hint{}); err != xsv.ErrNoHints {
		t.Fatalf("expected ErrNoHints, got %v", err)
	}
}
