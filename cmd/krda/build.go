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

package main

import (
	"flag"
	"os"

	"github.com/krda-project/krda/xsv"
)

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	hintPath := fs.String("hint", "", "path to a hint JSON file describing the destination columns")
	tsv := fs.Bool("tsv", false, "input is tab-separated rather than CSV")
	out := fs.String("out", "-", "output file (or - for stdout)")
	fs.Parse(args)

	rest := fs.Args()
	if *hintPath == "" || len(rest) != 1 {
		exitf("usage: %s build -hint <hint.json> [-tsv] [-out <file>] <input>", os.Args[0])
	}

	hintData, err := os.ReadFile(*hintPath)
	if err != nil {
		exitf("reading hint file: %s", err)
	}
	hint, err := xsv.ParseHint(hintData)
	if err != nil {
		exitf("parsing hint file: %s", err)
	}

	in, err := os.Open(rest[0])
	if err != nil {
		exitf("opening %q: %s", rest[0], err)
	}
	defer in.Close()

	var w *os.File
	if *out == "-" {
		w = os.Stdout
	} else {
		w, err = os.Create(*out)
		if err != nil {
			exitf("creating %q: %s", *out, err)
		}
		defer w.Close()
	}

	var ch xsv.RowChopper
	if *tsv {
		ch = &xsv.TsvChopper{SkipRecords: hint.SkipRecords}
	} else {
		ch = &xsv.CsvChopper{SkipRecords: hint.SkipRecords, Separator: xsv.Delim(hint.Separator)}
	}

	if err := xsv.Convert(w, in, ch, hint); err != nil {
		exitf("converting %q: %s", rest[0], err)
	}
}
