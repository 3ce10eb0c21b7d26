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

package table

// Row is a mutable pointer-like cursor into a Table. Setting Index
// changes where every column accessor reads from; accessors are
// closures precomputed once at NewRow, capturing the column's type
// and in-row offset and reading this Row's current Index on every
// call. This is the "pointer idiom without pointers" the predicate
// compiler relies on: a rule node keeps a column ordinal, not a
// value, calls Row.Get with it, and sees new bytes every time Index
// changes.
type Row struct {
	t       *Table
	Index   uint32
	getters []func() (any, error)
}

// Table returns the Row's owning Table.
func (r *Row) Table() *Table { return r.t }

// Get reads the value of the column at ordinal i at the row's
// current Index. i is a column ordinal, not a name -- the predicate
// compiler resolves names to ordinals once at Compile time.
func (r *Row) Get(i int) (any, error) {
	return r.getters[i]()
}

// NumColumns returns the number of columns this cursor has
// precomputed accessors for.
func (r *Row) NumColumns() int { return len(r.getters) }
