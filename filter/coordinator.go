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

// Package filter implements the parallel filter executor: a
// Coordinator that compiles a rule tree once, allocates the shared
// indices and result regions, dispatches a pool of worker goroutines
// that each run a processor, and assembles the result once every
// worker has drained.
package filter

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/krda-project/krda/heap"
	"github.com/krda-project/krda/rule"
	"github.com/krda-project/krda/table"
)

// Logger is the minimal interface Coordinator uses for diagnostics,
// satisfied directly by *log.Logger. A nil Logger disables logging.
type Logger interface {
	Printf(format string, args ...any)
}

// ErrCancelled is returned by Run when the supplied context is
// cancelled before all workers drain. Per spec there is no partial
// result contract for a cancelled run.
var ErrCancelled = errors.New("filter: run cancelled")

// Result is what Coordinator.Run returns on success: the number of
// matching rows, the packed row size, the MemoryBlock holding them,
// and whether the result region overflowed.
type Result struct {
	Count     uint32
	RowSize   uint32
	Memory    heap.MemoryBlock
	Truncated bool
}

// Coordinator owns a loaded table over a shared Heap and runs
// rule-tree filters over it.
type Coordinator struct {
	Heap   *heap.Heap
	Table  *table.Table
	Config Config
	Logger Logger
}

// Run compiles tree (failing fast on a *rule.RuleError), computes the
// packed row size implied by desc, allocates the result and indices
// regions from Heap, and dispatches Config.WorkerCount (default 4)
// goroutines to drain the table. It blocks until every worker has
// drained, cancellation is observed, or a worker reports an error.
func (c *Coordinator) Run(ctx context.Context, tree rule.Tree, desc ResultDescription) (*Result, error) {
	// Compile and lower once up front purely to fail fast (a bad rule
	// tree or projection should error before any heap is allocated or
	// any worker dispatched). The resulting *rule.Predicate and
	// []writer are discarded: they are never handed to a worker. Each
	// worker redoes this compilation itself from the dispatch message,
	// per spec.md §9's no-pointers dispatch contract.
	if _, err := rule.Compile(c.Table, tree); err != nil {
		return nil, err
	}
	_, rowSize, err := compileWriters(c.Table, desc)
	if err != nil {
		return nil, err
	}
	cfg := c.Config.withDefaults()

	maxResultBytes := cfg.MaxResultBytes
	if maxResultBytes == 0 {
		maxResultBytes = uint64(c.Table.RowCount()) * uint64(rowSize)
	}
	if rowSize == 0 || maxResultBytes == 0 {
		// nothing can ever be written; still allocate a minimal
		// region so Result.Memory is always a valid block.
		maxResultBytes = 0
	}

	resultBlock, err := c.Heap.Allocate(int(maxResultBytes))
	if err != nil {
		return nil, err
	}
	indicesBlock, err := c.Heap.Allocate(indicesSlots * 4)
	if err != nil {
		resultBlock.Free()
		return nil, err
	}
	clear(indicesBlock.Bytes())

	runID := uuid.New()
	c.logf("run %s: table has %d rows, dispatching %d workers (batch=%d)", runID, c.Table.RowCount(), cfg.WorkerCount, cfg.RowBatchSize)

	tableBlock := c.Table.Block()
	msg := workerMsg{
		TableOffset:   tableBlock.Offset(),
		TableSize:     tableBlock.Size(),
		IndicesOffset: indicesBlock.Offset(),
		IndicesSize:   indicesBlock.Size(),
		ResultOffset:  resultBlock.Offset(),
		ResultSize:    resultBlock.Size(),
		RowSize:       rowSize,
		RowBatchSize:  cfg.RowBatchSize,
		Rules:         tree,
		Project:       desc,
	}

	cancel := newFlag(indicesBlock.Bytes(), cancelSlot)
	overflow := newFlag(indicesBlock.Bytes(), overflowSlot)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel.set()
		case <-stop:
		}
	}()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runWorker(c.Heap, msg); err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel.set()
				})
			}
		}()
	}
	wg.Wait()
	close(stop)

	if firstErr != nil {
		resultBlock.Free()
		indicesBlock.Free()
		return nil, firstErr
	}
	if cancel.isSet() {
		resultBlock.Free()
		indicesBlock.Free()
		return nil, ErrCancelled
	}

	count := *slotPtr(indicesBlock.Bytes(), resultSlot)
	truncated := overflow.isSet()
	capacity := uint32(0)
	if rowSize > 0 {
		capacity = uint32(uint64(len(resultBlock.Bytes())) / uint64(rowSize))
	}
	if count > capacity {
		count = capacity
	}

	// Read every indices slot (count, truncated) before freeing the
	// block they live in -- indicesBlock.Free returns this memory to
	// the shared Heap, where a concurrent Allocate on another run may
	// reuse it immediately.
	if err := indicesBlock.Free(); err != nil {
		return nil, err
	}

	c.logf("run %s: complete, %d rows matched, truncated=%v", runID, count, truncated)

	return &Result{
		Count:     count,
		RowSize:   rowSize,
		Memory:    resultBlock,
		Truncated: truncated,
	}, nil
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
