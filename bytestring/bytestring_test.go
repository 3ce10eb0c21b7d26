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

package bytestring

import "testing"

func TestEqualsCase(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Alpha", "alpha", true},
		{"ALPHA", "alpha", true},
		{"alpha", "alphas", false},
		{"", "", true},
		{"abc", "abd", false},
	}
	for _, c := range cases {
		a, b := FromString(c.a), FromString(c.b)
		if got := a.EqualsCase(b); got != c.want {
			t.Errorf("EqualsCase(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
		// symmetry
		if got := b.EqualsCase(a); got != c.want {
			t.Errorf("EqualsCase(%q, %q) = %v, want %v (symmetric check)", c.b, c.a, got, c.want)
		}
	}
	// reflexive
	s := FromString("Reflexive")
	if !s.EqualsCase(s) {
		t.Error("EqualsCase is not reflexive")
	}
}

func TestContainsCase(t *testing.T) {
	cases := []struct {
		s, t string
		want bool
	}{
		{"Alpha", "AL", true},
		{"Alpha", "pha", true},
		{"Alpha", "xyz", false},
		{"gamma", "", true},
		{"", "x", false},
		{"BETA", "eta", true},
	}
	for _, c := range cases {
		if got := FromString(c.s).ContainsCase(FromString(c.t)); got != c.want {
			t.Errorf("ContainsCase(%q, %q) = %v, want %v", c.s, c.t, got, c.want)
		}
	}
}

func TestNonASCIIVerbatim(t *testing.T) {
	a := Of([]byte{0xC3, 0x9F}) // UTF-8 for 'ß', not folded
	b := Of([]byte{0xC3, 0x9F})
	if !a.EqualsCase(b) {
		t.Error("identical high bytes should compare equal verbatim")
	}
	c := Of([]byte{0xC3, 0xA9}) // 'é'
	if a.EqualsCase(c) {
		t.Error("distinct high bytes must not be folded together")
	}
}
