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

package krio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/krda-project/krda/heap"
)

// WriteCompressed writes columns/rows in the krda wire format,
// zstd-compressed, to w. This is an on-disk convenience for fixtures
// (`krda build` itself writes uncompressed tables); the in-memory Heap
// never holds compressed bytes, only the decoded form Load produces.
func WriteCompressed(w io.Writer, columns []ColumnSpec, rows [][]any) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("krio: opening zstd writer: %w", err)
	}
	if err := Write(enc, columns, rows); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// LoadCompressed is Load for a zstd-compressed stream: it decodes r
// fully before handing the raw table bytes to Load.
func LoadCompressed(h *heap.Heap, r io.Reader) (heap.MemoryBlock, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return heap.MemoryBlock{}, fmt.Errorf("krio: opening zstd reader: %w", err)
	}
	defer dec.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return heap.MemoryBlock{}, fmt.Errorf("krio: decompressing table: %w", err)
	}
	return Load(h, &buf)
}
