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

package heap

import (
	"testing"
)

func TestAllocateFree(t *testing.T) {
	h, err := New(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	a, err := h.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	if a.Offset()%align != 0 {
		t.Fatalf("block not aligned: offset=%d", a.Offset())
	}
	if len(a.Bytes()) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(a.Bytes()))
	}

	b, err := h.Allocate(50)
	if err != nil {
		t.Fatal(err)
	}
	if b.Offset() < a.Offset()+100 {
		t.Fatalf("overlapping blocks: a=%d+%d b=%d", a.Offset(), 100, b.Offset())
	}

	if err := a.Free(); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(); err == nil {
		t.Fatal("expected InvalidHandleError on double free")
	}
	if err := b.Free(); err != nil {
		t.Fatal(err)
	}
}

func TestAllocateCoalesce(t *testing.T) {
	h, err := New(1 << 12)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	blocks := make([]MemoryBlock, 8)
	for i := range blocks {
		blocks[i], err = h.Allocate(64)
		if err != nil {
			t.Fatal(err)
		}
	}
	for i := range blocks {
		if err := blocks[i].Free(); err != nil {
			t.Fatal(err)
		}
	}
	// after freeing everything, the whole buffer should be
	// allocatable again as one extent, proving adjacent free
	// extents were coalesced.
	whole, err := h.Allocate(1 << 12)
	if err != nil {
		t.Fatalf("expected coalesced free list to satisfy a full allocation: %s", err)
	}
	if whole.Size() != 1<<12 {
		t.Fatalf("unexpected size %d", whole.Size())
	}
}

func TestResourceExhausted(t *testing.T) {
	h, err := New(128)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if _, err := h.Allocate(200); err == nil {
		t.Fatal("expected ResourceExhaustedError")
	} else if _, ok := err.(*ResourceExhaustedError); !ok {
		t.Fatalf("wrong error type: %T", err)
	}
}

func TestAt(t *testing.T) {
	h, err := New(1 << 12)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	a, err := h.Allocate(32)
	if err != nil {
		t.Fatal(err)
	}
	copy(a.Bytes(), []byte("hello world, this is krda"))

	reconstructed, err := h.At(a.Offset(), a.Size())
	if err != nil {
		t.Fatal(err)
	}
	if string(reconstructed.Bytes()[:5]) != "hello" {
		t.Fatalf("reconstructed block sees different bytes: %q", reconstructed.Bytes()[:5])
	}

	if _, err := h.At(uint32(h.Size()-10), 100); err == nil {
		t.Fatal("expected out-of-range InvalidHandleError")
	}
}

func TestHighWaterAndLiveBytes(t *testing.T) {
	h, err := New(1 << 12)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	a, _ := h.Allocate(1000)
	if h.LiveBytes() < 1000 {
		t.Fatalf("LiveBytes too small: %d", h.LiveBytes())
	}
	hw := h.HighWater()
	a.Free()
	if h.LiveBytes() != 0 {
		t.Fatalf("expected 0 live bytes after free, got %d", h.LiveBytes())
	}
	if h.HighWater() != hw {
		t.Fatalf("high water mark should not decrease: before=%d after=%d", hw, h.HighWater())
	}
}
