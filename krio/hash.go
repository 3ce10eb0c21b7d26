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
	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// ContentHash returns a blake2b-256 digest of a table's raw bytes,
// suitable for content-addressed caching of loaded tables (the same
// role blake2b plays for cached table segments elsewhere in this
// codebase's ancestry).
func ContentHash(raw []byte) [32]byte {
	return blake2b.Sum256(raw)
}

// Fixed siphash keys for fixture checksums. Not secret: this is a
// content checksum, not an authenticated one.
const (
	sipK0 = 0x6b726461763030ff
	sipK1 = 0x666978747572656c
)

// SampleChecksum computes a fast, order-sensitive checksum over a
// row's raw bytes using siphash. It is not a cryptographic digest.
func SampleChecksum(rowBytes []byte) uint64 {
	return siphash.Hash(sipK0, sipK1, rowBytes)
}
