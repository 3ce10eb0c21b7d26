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

// Package heap implements the shared byte heap that backs a krda
// table and its filter results.
//
// A Heap owns exactly one contiguous byte buffer, shareable across
// goroutines, and sub-allocates it into aligned MemoryBlocks with a
// free-list allocator. All offsets handed out by a Heap are relative
// to the same buffer, so a MemoryBlock can be reconstructed in any
// goroutine from nothing more than (heap, offset, size) -- see
// Heap.At.
package heap

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// align is the alignment, in bytes, of every block returned by
// Allocate. It matches the widest primitive type in the type
// registry (see package ctype).
const align = 8

// DefaultMaxSize is used when New is called with size <= 0.
const DefaultMaxSize = 2 << 30 // 2 GiB

// ResourceExhaustedError is returned when a Heap cannot satisfy an
// allocation from its backing buffer.
type ResourceExhaustedError struct {
	Requested int
	Available int
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("heap: cannot satisfy %d-byte allocation (largest free extent is %d bytes)", e.Requested, e.Available)
}

// InvalidHandleError is returned when a MemoryBlock is freed twice,
// freed without having been live, or addressed out of range.
type InvalidHandleError struct {
	Offset, Size uint32
	Reason       string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("heap: invalid handle (offset=%d size=%d): %s", e.Offset, e.Size, e.Reason)
}

type extent struct {
	offset uint32
	size   uint32
}

// Heap is a single contiguous shared byte buffer with a free-list
// sub-allocator. The zero value is not usable; construct one with
// New.
type Heap struct {
	buf  []byte
	free []extent // sorted by offset, pairwise non-adjacent (coalesced)

	mu   sync.Mutex
	live map[uint32]uint32 // offset -> reserved size, for outstanding blocks

	liveBytes int64 // atomic
	highWater int64 // atomic
}

// New allocates a Heap with a backing buffer of maxSize bytes. If
// maxSize <= 0, DefaultMaxSize is used. The buffer is obtained via
// platform-specific newBuffer (an anonymous mmap on unix, a plain
// make([]byte, n) elsewhere); see heap_unix.go / heap_other.go.
func New(maxSize int) (*Heap, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	buf, err := newBuffer(maxSize)
	if err != nil {
		return nil, err
	}
	return &Heap{
		buf:  buf,
		free: []extent{{offset: 0, size: uint32(len(buf))}},
		live: make(map[uint32]uint32),
	}, nil
}

// Close releases the Heap's backing buffer. The Heap must not be
// used after Close returns.
func (h *Heap) Close() error {
	return freeBuffer(h.buf)
}

// Size returns the total size of the Heap's backing buffer.
func (h *Heap) Size() int { return len(h.buf) }

// LiveBytes returns the number of bytes currently allocated (reserved
// size, including alignment padding).
func (h *Heap) LiveBytes() int64 { return atomic.LoadInt64(&h.liveBytes) }

// HighWater returns the largest value LiveBytes has ever held.
func (h *Heap) HighWater() int64 { return atomic.LoadInt64(&h.highWater) }

func alignUp(n int) uint32 {
	a := uint32(n)
	if rem := a % align; rem != 0 {
		a += align - rem
	}
	return a
}

// Allocate reserves size bytes, aligned to align, and returns a
// MemoryBlock describing the reservation. It fails with
// ResourceExhaustedError if no free extent is large enough.
func (h *Heap) Allocate(size int) (MemoryBlock, error) {
	if size < 0 {
		return MemoryBlock{}, &InvalidHandleError{Reason: "negative size"}
	}
	reserved := alignUp(size)

	h.mu.Lock()
	defer h.mu.Unlock()

	best := -1
	var bestSize uint32
	for i := range h.free {
		if best < 0 && h.free[i].size >= reserved {
			best = i
		}
		if h.free[i].size > bestSize {
			bestSize = h.free[i].size
		}
	}
	if best < 0 {
		return MemoryBlock{}, &ResourceExhaustedError{Requested: int(reserved), Available: int(bestSize)}
	}

	ext := h.free[best]
	offset := ext.offset
	if ext.size == reserved {
		h.free = append(h.free[:best], h.free[best+1:]...)
	} else {
		h.free[best] = extent{offset: offset + reserved, size: ext.size - reserved}
	}
	h.live[offset] = reserved

	live := atomic.AddInt64(&h.liveBytes, int64(reserved))
	for {
		hw := atomic.LoadInt64(&h.highWater)
		if live <= hw || atomic.CompareAndSwapInt64(&h.highWater, hw, live) {
			break
		}
	}

	return MemoryBlock{heap: h, offset: offset, size: uint32(size)}, nil
}

// At reconstructs a MemoryBlock for a region already known to be
// live, given only its (offset, size). This is how a worker
// goroutine binds to a table or result region described by a
// dispatch message, without holding a reference to the original
// MemoryBlock value -- see the filter package.
//
// At does not consult the live set; it only bounds-checks against the
// buffer extent. Constructing an At block for memory that was never
// allocated, or that has since been freed, is a programming error
// whose consequences are the caller's responsibility, exactly as
// spec'd for aliased MemoryBlocks.
func (h *Heap) At(offset, size uint32) (MemoryBlock, error) {
	if uint64(offset)+uint64(size) > uint64(len(h.buf)) {
		return MemoryBlock{}, &InvalidHandleError{Offset: offset, Size: size, Reason: "out of range"}
	}
	return MemoryBlock{heap: h, offset: offset, size: size}, nil
}

// release returns [offset, offset+reserved) to the free list,
// coalescing with neighbors. Called only through MemoryBlock.Free.
func (h *Heap) release(offset, reserved uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	got, ok := h.live[offset]
	if !ok {
		return &InvalidHandleError{Offset: offset, Size: reserved, Reason: "not a live allocation (double free or unknown block)"}
	}
	if got != reserved {
		return &InvalidHandleError{Offset: offset, Size: reserved, Reason: "size mismatch on free"}
	}
	delete(h.live, offset)
	atomic.AddInt64(&h.liveBytes, -int64(reserved))

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].offset >= offset })
	merged := extent{offset: offset, size: reserved}

	// merge with following extent
	if i < len(h.free) && h.free[i].offset == merged.offset+merged.size {
		merged.size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
	// merge with preceding extent
	if i > 0 && h.free[i-1].offset+h.free[i-1].size == merged.offset {
		merged.offset = h.free[i-1].offset
		merged.size += h.free[i-1].size
		i--
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
	h.free = append(h.free, extent{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = merged
	return nil
}
