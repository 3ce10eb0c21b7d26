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

// Config carries the knobs spec.md §6 names for a filter run. The
// zero value is valid; withDefaults fills in the documented defaults.
type Config struct {
	// RowBatchSize is the number of rows a worker claims per
	// fetch_add on the batch counter. Default 1024.
	RowBatchSize uint32
	// WorkerCount is the number of goroutines dispatched. Default 4.
	WorkerCount int
	// MaxResultBytes caps the result region's size. Default is
	// rowCount * rowSize, computed once the projection is known.
	MaxResultBytes uint64
}

const (
	defaultRowBatchSize = 1024
	defaultWorkerCount  = 4
)

func (c Config) withDefaults() Config {
	if c.RowBatchSize == 0 {
		c.RowBatchSize = defaultRowBatchSize
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = defaultWorkerCount
	}
	return c
}
