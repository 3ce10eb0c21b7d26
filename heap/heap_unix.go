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

//go:build linux || darwin
// +build linux darwin

package heap

import "golang.org/x/sys/unix"

// newBuffer reserves size bytes of anonymous, shared memory. Using an
// mmap rather than make([]byte, size) keeps large heaps outside the
// Go garbage-collected heap.
func newBuffer(size int) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func freeBuffer(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Munmap(buf)
}
