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

package rule

import (
	"fmt"
	"strconv"

	"github.com/krda-project/krda/bytestring"
	"github.com/krda-project/krda/table"
)

// node is the tagged-tree shape spec.md's design notes call for in
// place of closures captured over an opaque cursor: a small set of
// leaf variants (one per operation/type pair) plus And/Or, each
// walked over a table.Row.
type node interface {
	test(row *table.Row) bool
}

// Predicate is a compiled rule tree, ready to evaluate against any
// Row cursor belonging to the Table it was compiled against.
type Predicate struct {
	root node
}

// Test evaluates the full predicate against row's current index.
func (p *Predicate) Test(row *table.Row) bool {
	return p.root.test(row)
}

type trueNode struct{}

func (trueNode) test(*table.Row) bool { return true }

type orNode []node

func (o orNode) test(row *table.Row) bool {
	for _, n := range o {
		if n.test(row) {
			return true
		}
	}
	return false
}

type andNode []node

func (a andNode) test(row *table.Row) bool {
	for _, n := range a {
		if !n.test(row) {
			return false
		}
	}
	return true // vacuous AND over an empty conjunction
}

// textLeaf handles equal/notEqual/contains on string and date
// columns via ByteString comparisons.
type textLeaf struct {
	ordinal int
	op      Operation
	needle  bytestring.ByteString
}

func (l *textLeaf) test(row *table.Row) bool {
	v, err := row.Get(l.ordinal)
	if err != nil {
		return false
	}
	got := v.(bytestring.ByteString)
	switch l.op {
	case Equal:
		return got.EqualsCase(l.needle)
	case NotEqual:
		return !got.EqualsCase(l.needle)
	case Contains:
		return got.ContainsCase(l.needle)
	}
	return false
}

// numLeaf handles equal/notEqual/moreThan/lessThan on numeric
// columns. kind selects which of i/u/f to compare, set once at
// compile time from the column's type.
type numKind int

const (
	numInt numKind = iota
	numUint
	numFloat
)

type numLeaf struct {
	ordinal int
	op      Operation
	kind    numKind
	i       int64
	u       uint64
	f       float64
}

func (l *numLeaf) test(row *table.Row) bool {
	v, err := row.Get(l.ordinal)
	if err != nil {
		return false
	}
	switch l.kind {
	case numInt:
		got := v.(int64)
		switch l.op {
		case Equal:
			return got == l.i
		case NotEqual:
			return got != l.i
		case MoreThan:
			return got > l.i
		case LessThan:
			return got < l.i
		}
	case numUint:
		got := v.(uint64)
		switch l.op {
		case Equal:
			return got == l.u
		case NotEqual:
			return got != l.u
		case MoreThan:
			return got > l.u
		case LessThan:
			return got < l.u
		}
	case numFloat:
		got := v.(float64)
		switch l.op {
		case Equal:
			return got == l.f
		case NotEqual:
			return got != l.f
		case MoreThan:
			return got > l.f
		case LessThan:
			return got < l.f
		}
	}
	return false
}

// columnLookup is the minimal surface Compile needs from a table: a
// column ordinal, its name-based lookup, and the column descriptor.
// table.Table satisfies this directly.
type columnLookup interface {
	Column(name string) (table.Column, bool)
	Columns() []table.Column
}

func ordinalOf(t columnLookup, name string) (int, table.Column, bool) {
	for i, c := range t.Columns() {
		if c.Name == name {
			return i, c, true
		}
	}
	return 0, table.Column{}, false
}

// Compile lowers tree against t's columns into a Predicate. It fails
// fast with a *RuleError for an unknown column name, a type/operation
// mismatch (moreThan/lessThan on text, contains on numerics, or an
// unrecognized operation), or an unparseable numeric literal -- all
// before any row is scanned, per spec.
func Compile(t columnLookup, tree Tree) (*Predicate, error) {
	if len(tree) == 0 {
		return &Predicate{root: trueNode{}}, nil
	}
	disjuncts := make(orNode, 0, len(tree))
	for _, conj := range tree {
		conjuncts := make(andNode, 0, len(conj))
		for _, leaf := range conj {
			n, err := compileLeaf(t, leaf)
			if err != nil {
				return nil, err
			}
			conjuncts = append(conjuncts, n)
		}
		disjuncts = append(disjuncts, conjuncts)
	}
	return &Predicate{root: disjuncts}, nil
}

func compileLeaf(t columnLookup, leaf Leaf) (node, error) {
	ordinal, col, ok := ordinalOf(t, leaf.Name)
	if !ok {
		return nil, &RuleError{Leaf: leaf, Reason: "unknown column"}
	}

	switch leaf.Operation {
	case Equal, NotEqual, Contains:
		// allowed on text columns; Equal/NotEqual also allowed on numerics
	case MoreThan, LessThan:
		// allowed only on numeric columns
	default:
		return nil, &RuleError{Leaf: leaf, Reason: "unknown operation"}
	}

	if col.Type.IsTextlike() {
		if leaf.Operation == MoreThan || leaf.Operation == LessThan {
			return nil, &RuleError{Leaf: leaf, Reason: fmt.Sprintf("%s is not defined for %s columns", leaf.Operation, col.Type.Name)}
		}
		needle, err := literalByteString(leaf.Value)
		if err != nil {
			return nil, &RuleError{Leaf: leaf, Reason: err.Error()}
		}
		return &textLeaf{ordinal: ordinal, op: leaf.Operation, needle: needle}, nil
	}

	// numeric column
	if leaf.Operation == Contains {
		return nil, &RuleError{Leaf: leaf, Reason: fmt.Sprintf("contains is not defined for %s columns", col.Type.Name)}
	}
	return compileNumLeaf(ordinal, col, leaf)
}

func literalByteString(v any) (bytestring.ByteString, error) {
	switch x := v.(type) {
	case string:
		return bytestring.FromString(x), nil
	default:
		return bytestring.ByteString{}, fmt.Errorf("expected a string value, got %T", v)
	}
}

func compileNumLeaf(ordinal int, col table.Column, leaf Leaf) (node, error) {
	n := &numLeaf{ordinal: ordinal, op: leaf.Operation}
	switch col.Type.Name {
	case "int8", "int16", "int32":
		i, err := parseInt(leaf.Value)
		if err != nil {
			return nil, &RuleError{Leaf: leaf, Reason: err.Error()}
		}
		n.kind, n.i = numInt, i
	case "uint8", "uint16", "uint32":
		u, err := parseUint(leaf.Value)
		if err != nil {
			return nil, &RuleError{Leaf: leaf, Reason: err.Error()}
		}
		n.kind, n.u = numUint, u
	case "float32":
		f, err := parseFloat(leaf.Value)
		if err != nil {
			return nil, &RuleError{Leaf: leaf, Reason: err.Error()}
		}
		n.kind, n.f = numFloat, f
	default:
		return nil, &RuleError{Leaf: leaf, Reason: fmt.Sprintf("column type %q is not numeric", col.Type.Name)}
	}
	return n, nil
}

func parseInt(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		return int64(x), nil
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as an integer", x)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected a numeric value, got %T", v)
	}
}

func parseUint(v any) (uint64, error) {
	switch x := v.(type) {
	case float64:
		if x < 0 {
			return 0, fmt.Errorf("negative value %v not valid for an unsigned column", x)
		}
		return uint64(x), nil
	case string:
		u, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as an unsigned integer", x)
		}
		return u, nil
	default:
		return 0, fmt.Errorf("expected a numeric value, got %T", v)
	}
}

func parseFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a float", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a numeric value, got %T", v)
	}
}
