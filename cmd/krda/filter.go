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
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/krda-project/krda/ctype"
	"github.com/krda-project/krda/filter"
	"github.com/krda-project/krda/heap"
	"github.com/krda-project/krda/krio"
	"github.com/krda-project/krda/rule"
	"github.com/krda-project/krda/table"
)

// query is the on-disk shape of a -query file: a rule tree plus the
// fields to project into each matching row.
type query struct {
	Rules   rule.Tree               `json:"rules"`
	Project []filter.ProjectionItem `json:"project"`
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	queryPath := fs.String("query", "", "path to a query JSON file ({\"rules\": [...], \"project\": [...]})")
	workers := fs.Int("workers", 0, "worker goroutine count (0 = default)")
	batch := fs.Int("batch", 0, "row batch size per claim (0 = default)")
	maxBytes := fs.Int64("max-bytes", 0, "maximum result region size in bytes (0 = unbounded)")
	verbose := fs.Bool("v", false, "log run progress to stderr")
	fs.Parse(args)

	rest := fs.Args()
	if *queryPath == "" || len(rest) != 1 {
		exitf("usage: %s filter -query <query.json> [-workers N] [-batch N] [-max-bytes N] <table.krda>", os.Args[0])
	}

	qData, err := os.ReadFile(*queryPath)
	if err != nil {
		exitf("reading query file: %s", err)
	}
	var q query
	if err := json.Unmarshal(qData, &q); err != nil {
		exitf("parsing query file: %s", err)
	}

	f, err := os.Open(rest[0])
	if err != nil {
		exitf("opening %q: %s", rest[0], err)
	}
	defer f.Close()

	h, err := heap.New(0)
	if err != nil {
		exitf("allocating heap: %s", err)
	}
	defer h.Close()

	block, err := krio.Load(h, f)
	if err != nil {
		exitf("loading %q: %s", rest[0], err)
	}
	tbl, err := table.New(block)
	if err != nil {
		exitf("parsing %q: %s", rest[0], err)
	}

	// fill in a zero Size the same way compileWriters does, so that
	// decodeRow walks each packed row with the widths actually written.
	for i := range q.Project {
		item := &q.Project[i]
		if item.Column == nil || item.Size != 0 {
			continue
		}
		if col, ok := tbl.Column(*item.Column); ok {
			item.Size = col.Size
			if col.Type.IsNumeric() {
				item.Size = col.Type.Size
			}
		}
	}

	var logger filter.Logger
	if *verbose {
		logger = log.New(os.Stderr, "krda: ", log.LstdFlags)
	}

	c := &filter.Coordinator{
		Heap:  h,
		Table: tbl,
		Config: filter.Config{
			WorkerCount:    *workers,
			RowBatchSize:   uint32(*batch),
			MaxResultBytes: uint64(*maxBytes),
		},
		Logger: logger,
	}

	res, err := c.Run(context.Background(), q.Rules, filter.ResultDescription(q.Project))
	if err != nil {
		exitf("filter: %s", err)
	}

	enc := json.NewEncoder(os.Stdout)
	buf := res.Memory.Bytes()
	for i := uint32(0); i < res.Count; i++ {
		row := buf[uint64(i)*uint64(res.RowSize) : uint64(i+1)*uint64(res.RowSize)]
		rec, err := decodeRow(q.Project, row)
		if err != nil {
			exitf("decoding result row %d: %s", i, err)
		}
		if err := enc.Encode(rec); err != nil {
			exitf("writing result row %d: %s", i, err)
		}
	}
	if res.Truncated {
		log.Printf("krda: result truncated at %d rows (max-bytes exceeded)", res.Count)
	}
}

// decodeRow turns one packed result row back into a name->value map
// using the same fixed-offset layout compileWriters used to produce
// it: items appear in order, each occupying its own Size bytes with
// no padding.
func decodeRow(items []filter.ProjectionItem, row []byte) (map[string]any, error) {
	rec := make(map[string]any, len(items))
	var off uint32
	for i, item := range items {
		name := "rowIndex"
		if item.Column != nil {
			name = *item.Column
		}
		if item.Column == nil {
			rec[name] = binary.LittleEndian.Uint32(row[off : off+4])
			off += 4
			continue
		}
		typ, ok := ctype.Lookup(item.Type)
		if !ok {
			return nil, fmt.Errorf("projection item %d: unknown type %q", i, item.Type)
		}
		// clamp to this item's own slot, same reasoning as
		// table.Table.NewRow's getters: a "bytes" field has no
		// length prefix of its own and would otherwise read to the
		// end of the packed row.
		v, err := typ.Get(row[:off+item.Size], off)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(interface{ String() string }); ok {
			rec[name] = s.String()
		} else {
			rec[name] = v
		}
		off += item.Size
	}
	return rec, nil
}
