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

	"github.com/krda-project/krda/heap"
	"github.com/krda-project/krda/rule"
	"github.com/krda-project/krda/table"
)

// workerState enumerates the per-worker lifecycle of spec.md §4.7:
// Idle -> Configured -> Running -> Drained -> Reported, with Failed
// reachable from Running on an internal error.
type workerState int

const (
	stateIdle workerState = iota
	stateConfigured
	stateRunning
	stateDrained
	stateReported
	stateFailed
)

func (s workerState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateConfigured:
		return "Configured"
	case stateRunning:
		return "Running"
	case stateDrained:
		return "Drained"
	case stateReported:
		return "Reported"
	case stateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// processor is one worker's claim/test/project loop, bound to a
// single table and a shared set of atomic counters and flags. One
// processor runs per goroutine dispatched by Coordinator.Run.
type processor struct {
	tbl       *table.Table
	pred      *rule.Predicate
	writers   []writer
	rowSize   uint32
	batchSize uint32

	batchCursor  *uint32 // indices[0]
	resultCursor *uint32 // indices[1]
	resultBuf    []byte
	cancel       *flag
	overflow     *flag

	state workerState
}

// runWorker is the only thing a worker goroutine is started with: a
// *heap.Heap (the shared handle every offset in msg is relative to)
// and the dispatch message itself. Everything else -- the table, the
// compiled predicate, the writers, the indices and result byte slices
// -- is reconstructed here, independently per worker, exactly as
// spec.md §9's "each worker reconstructs its view from (handle,
// offset, size)" describes.
func runWorker(h *heap.Heap, msg workerMsg) error {
	tableBlock, err := h.At(msg.TableOffset, msg.TableSize)
	if err != nil {
		return err
	}
	tbl, err := table.New(tableBlock)
	if err != nil {
		return err
	}

	pred, err := rule.Compile(tbl, msg.Rules)
	if err != nil {
		return err
	}
	writers, rowSize, err := compileWriters(tbl, msg.Project)
	if err != nil {
		return err
	}
	if rowSize != msg.RowSize {
		return fmt.Errorf("filter: worker computed row size %d, dispatch message said %d", rowSize, msg.RowSize)
	}

	indicesBlock, err := h.At(msg.IndicesOffset, msg.IndicesSize)
	if err != nil {
		return err
	}
	resultBlock, err := h.At(msg.ResultOffset, msg.ResultSize)
	if err != nil {
		return err
	}
	indices := indicesBlock.Bytes()

	p := &processor{
		tbl:          tbl,
		pred:         pred,
		writers:      writers,
		rowSize:      rowSize,
		batchSize:    msg.RowBatchSize,
		batchCursor:  slotPtr(indices, batchSlot),
		resultCursor: slotPtr(indices, resultSlot),
		resultBuf:    resultBlock.Bytes(),
		cancel:       newFlag(indices, cancelSlot),
		overflow:     newFlag(indices, overflowSlot),
	}
	if err := p.run(); err != nil {
		return err
	}
	p.state = stateReported
	return nil
}

// run claims batches of rows until the table is exhausted or the
// cancel flag is observed at a batch boundary. Every row in
// [0, rowCount) is evaluated exactly once across all processors
// sharing batchCursor, because fetch_add partitions the range
// disjointly; every match gets a unique, contiguous result slot for
// the same reason on resultCursor.
func (p *processor) run() error {
	p.state = stateConfigured
	row := p.tbl.NewRow()
	rowCount := p.tbl.RowCount()
	p.state = stateRunning

	for {
		if p.cancel.isSet() {
			p.state = stateDrained
			return nil
		}
		start := fetchAdd(p.batchCursor, p.batchSize)
		if start >= rowCount {
			p.state = stateDrained
			return nil
		}
		end := start + p.batchSize
		if end > rowCount {
			end = rowCount
		}
		for r := start; r < end; r++ {
			row.Index = r
			if !p.pred.Test(row) {
				continue
			}
			slot := fetchAdd(p.resultCursor, 1)
			offset := uint64(slot) * uint64(p.rowSize)
			if offset+uint64(p.rowSize) > uint64(len(p.resultBuf)) {
				p.overflow.set()
				continue
			}
			for i := range p.writers {
				if err := p.writers[i].write(row, p.resultBuf[offset:offset+uint64(p.rowSize)]); err != nil {
					p.state = stateFailed
					return err
				}
			}
		}
	}
}
