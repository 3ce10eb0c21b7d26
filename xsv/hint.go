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

package xsv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/krda-project/krda/ctype"
)

// ErrNoHints is returned by Convert when hint is nil or has no fields.
var ErrNoHints = errors.New("xsv: hints are mandatory")

// Hint specifies the options and per-column layout for converting a
// CSV/TSV file into a krda table. Unlike the teacher's dotted,
// nested-document hints, a krda row is flat: Fields lists columns in
// table order.
type Hint struct {
	// SkipRecords allows skipping the first N records (the header
	// row, typically).
	SkipRecords int `json:"skipRecords"`
	// Separator overrides the field separator (CSV only; zero means
	// comma).
	Separator rune `json:"separator"`
	// Fields is the ordered list of destination columns. A source
	// field beyond len(Fields) is ignored; a missing trailing source
	// field is treated as empty.
	Fields []FieldHint `json:"fields"`
}

// FieldHint describes one destination column.
type FieldHint struct {
	// Name is the column name.
	Name string `json:"name"`
	// Type is one of ctype's registered type names: int8/16/32,
	// uint8/16/32, float32, string, date, bytes.
	Type string `json:"type"`
	// Size is the fixed row slot width for string/date/bytes columns
	// (u16 length prefix + payload for string/date; a raw span for
	// bytes). Ignored for numeric types, whose width Type fixes.
	Size uint32 `json:"size,omitempty"`
	// Default is substituted for an empty source field.
	Default string `json:"default,omitempty"`
	// AllowEmpty permits a genuinely empty value for a "string"
	// column instead of substituting Default.
	AllowEmpty bool `json:"allowEmpty,omitempty"`

	typ *ctype.Type
}

// ParseHint parses hint JSON in the shape documented on Hint, resolving
// and validating each field's ctype.Type up front.
func ParseHint(data []byte) (*Hint, error) {
	var h Hint
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	if len(h.Fields) == 0 {
		return nil, ErrNoHints
	}
	for i := range h.Fields {
		f := &h.Fields[i]
		typ, ok := ctype.Lookup(f.Type)
		if !ok {
			return nil, fmt.Errorf("xsv: field %q: unknown type %q", f.Name, f.Type)
		}
		if typ.IsNumeric() {
			if f.Size != 0 && f.Size != typ.Size {
				return nil, fmt.Errorf("xsv: field %q: size %d does not match %s width %d", f.Name, f.Size, f.Type, typ.Size)
			}
		} else if f.Size == 0 {
			return nil, fmt.Errorf("xsv: field %q: %s columns require an explicit size", f.Name, f.Type)
		}
		if f.Type != "string" && f.AllowEmpty {
			return nil, fmt.Errorf("xsv: field %q: allowEmpty is only valid for string columns", f.Name)
		}
		f.typ = typ
	}
	return &h, nil
}
