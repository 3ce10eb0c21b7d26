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

// Package rule compiles a declarative rule tree -- a disjunction of
// conjunctions of leaf predicates -- into a small tagged-node tree
// that evaluates against a table.Row cursor, specializing each leaf's
// access path by the referenced column's type at compile time.
package rule

import "fmt"

// Operation names a leaf's comparison. Value semantics depend on the
// referenced column's type (see Compile).
type Operation string

const (
	Equal    Operation = "equal"
	NotEqual Operation = "notEqual"
	MoreThan Operation = "moreThan"
	LessThan Operation = "lessThan"
	Contains Operation = "contains"
)

// Leaf is one predicate: column name, operation, and a literal value.
// Value arrives as whatever encoding/json decodes a rule tree's JSON
// into -- a string or a float64 -- and Compile parses it against the
// referenced column's type. Any other Go type is a *RuleError.
type Leaf struct {
	Name      string    `json:"name"`
	Operation Operation `json:"operation"`
	Value     any       `json:"value"`
}

// Conjunction is an AND of leaves; an empty Conjunction is a vacuous
// AND and therefore always true.
type Conjunction []Leaf

// Tree is an OR of Conjunctions; an empty Tree matches every row.
type Tree []Conjunction

// RuleError is returned by Compile for an unknown column, a
// type/operation mismatch (e.g. moreThan on a string column), or an
// unparseable numeric literal. It is always raised before any row is
// scanned.
type RuleError struct {
	Leaf   Leaf
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule: %s %s %v: %s", e.Leaf.Name, e.Leaf.Operation, e.Leaf.Value, e.Reason)
}
