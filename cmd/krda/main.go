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

// Command krda builds and queries krda tables: "krda build" converts a
// CSV/TSV file into the binary table format via package xsv; "krda
// filter" loads a table and runs a rule-tree filter over it via
// package filter, printing the projected rows as JSON lines.
package main

import (
	"fmt"
	"os"
)

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "    %s build -hint <hint.json> [-tsv] [-out <file>] <input>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        convert a CSV/TSV file into a krda table\n")
	fmt.Fprintf(os.Stderr, "    %s filter -query <query.json> [-workers N] [-batch N] [-max-bytes N] <table.krda>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        run a rule-tree filter over a krda table, printing matches as JSON lines\n")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "filter":
		runFilter(os.Args[2:])
	case "-h", "-help", "--help":
		usage()
	default:
		exitf("unknown command %q; commands: build, filter", os.Args[1])
	}
}
