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

// Package xsv converts CSV (RFC 4180) and TSV files into krda tables
// via krio.Write. It has no knowledge of heaps, predicates or the
// filter executor -- it only turns text records into the ColumnSpec
// list and row values krio.Write expects.
package xsv

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/krda-project/krda/krio"
)

// RowChopper fetches records row-by-row and splits each into
// individual fields until the reader is exhausted.
type RowChopper interface {
	GetNext(r io.Reader) ([]string, error)
}

// Columns lowers hint's fields into the ColumnSpec list krio.Write
// expects, in the same order.
func Columns(hint *Hint) []krio.ColumnSpec {
	cols := make([]krio.ColumnSpec, len(hint.Fields))
	for i, f := range hint.Fields {
		cols[i] = krio.ColumnSpec{Name: f.Name, Type: f.Type, Size: f.Size}
	}
	return cols
}

// Convert reads every record from r via ch, converts each field per
// hint, and writes the resulting krda table to dst via krio.Write.
// Every record must be buffered before the table header -- which
// embeds rowCount -- can be written, so Convert is not suited to
// unbounded streams; that tradeoff is acceptable for the CLI
// fixture-building use this package exists for.
func Convert(dst io.Writer, r io.Reader, ch RowChopper, hint *Hint) error {
	if hint == nil || len(hint.Fields) == 0 {
		return ErrNoHints
	}

	var rows [][]any
	recordNr := 0
	for {
		fields, err := ch.GetNext(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("xsv: record %d: %w", recordNr, err)
		}
		recordNr++

		row := make([]any, len(hint.Fields))
		for i, f := range hint.Fields {
			var text string
			if i < len(fields) {
				text = fields[i]
			}
			if text == "" && !(f.Type == "string" && f.AllowEmpty) {
				text = f.Default
			}
			v, err := convertField(f, text)
			if err != nil {
				return fmt.Errorf("xsv: record %d, field %q: %w", recordNr, f.Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return krio.Write(dst, Columns(hint), rows)
}

func convertField(f FieldHint, text string) (any, error) {
	if !f.typ.IsNumeric() {
		return text, nil // string, date, bytes
	}
	switch f.Type {
	case "float32":
		return strconv.ParseFloat(text, 64)
	case "int8", "int16", "int32":
		return strconv.ParseInt(text, 10, 64)
	default: // uint8, uint16, uint32
		return strconv.ParseUint(text, 10, 64)
	}
}
