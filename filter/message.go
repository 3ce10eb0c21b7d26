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

	"github.com/krda-project/krda/rule"
)

// workerMsg is what Coordinator.Run dispatches to each worker
// goroutine: per spec.md §4.6/§9, "each receives a message carrying
// only offsets, sizes, and the rule tree -- no pointers". A worker
// never touches Coordinator.Table, the compiled *rule.Predicate, or
// the result/indices byte slices the coordinator allocated; it
// rebinds its own heap.MemoryBlocks from these offsets (heap.Heap.At)
// and recompiles the rule tree itself (rule.Compile) before scanning.
type workerMsg struct {
	TableOffset, TableSize     uint32
	IndicesOffset, IndicesSize uint32
	ResultOffset, ResultSize   uint32
	RowSize                    uint32
	RowBatchSize               uint32
	Rules                      rule.Tree
	Project                    ResultDescription
}

// ProjectionItem is one entry of a ResultDescription: either a column
// reference (Column non-nil) or the row-index sentinel (Column nil,
// Type must be "uint32", Size must be 4).
type ProjectionItem struct {
	Column *string `json:"column"`
	Type   string  `json:"type"`
	Size   uint32  `json:"size"`
}

// ResultDescription is the coordinator-to-worker projection list:
// an ordered set of fields to copy into each matching row's packed
// result slot. The packed row stride is the sum of item sizes, with
// no padding.
type ResultDescription []ProjectionItem

// RowIndexProjection returns the sentinel ProjectionItem that
// projects the matched row's index as a uint32.
func RowIndexProjection() ProjectionItem {
	return ProjectionItem{Column: nil, Type: "uint32", Size: 4}
}

// ColumnProjection returns a ProjectionItem referencing column name
// with the given type name and slot size, as passed; compileWriters
// checks both against the column when the filter runs.
func ColumnProjection(name, typeName string, size uint32) ProjectionItem {
	return ProjectionItem{Column: &name, Type: typeName, Size: size}
}

func (p ProjectionItem) String() string {
	if p.Column == nil {
		return "rowIndex"
	}
	return fmt.Sprintf("%s:%s", *p.Column, p.Type)
}
