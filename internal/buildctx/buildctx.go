// Copyright 2026 The Bincmp Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package buildctx holds the complete analyzed view of one build (the
// BuildContext) and the aggregator that produces it
// from a binary reader result and an IR reader result.
package buildctx

import (
	"sort"
	"time"

	"github.com/google/bincmp/internal/binaryread"
	"github.com/google/bincmp/internal/crate"
	"github.com/google/bincmp/internal/irread"
	"github.com/google/bincmp/internal/mangle"
)

// Symbol is one defined, demangled, attributed text-section symbol.
type Symbol struct {
	MangledName   string
	DemangledName string
	Address       uint64
	Size          crate.ByteSize
	Crate         crate.Name
}

// IRFunction is one demangled IR function definition merged across the
// compilation units that emitted it.
type IRFunction struct {
	MangledName   string
	DemangledName string
	LineCount     int
	// CopyCount is the number of IR files that contained a definition of
	// this function; two definitions in different files count as two copies
	// whether or not their generic parameters differ.
	CopyCount int
	Crate     crate.Name
}

// Crate is one library in the dependency graph, with every symbol and IR
// function attributed to it.
type Crate struct {
	Name        crate.Name
	Symbols     map[string]*Symbol     // keyed by mangled name
	IRFunctions map[string]*IRFunction // keyed by mangled name
}

// TotalSymbolSize sums this crate's symbol sizes (used for the crate
// ordering rule and as the crate-delta basis in the differ).
func (c *Crate) TotalSymbolSize() crate.ByteSize {
	var total crate.ByteSize
	for _, s := range c.Symbols {
		total += s.Size
	}
	return total
}

// AggregateSymbol is a symbol rolled up across every crate in one
// BuildContext.
type AggregateSymbol struct {
	Name      string
	TotalSize crate.ByteSize
	Crates    crate.Set
}

// AggregateIRFunction is the IR analog of AggregateSymbol.
type AggregateIRFunction struct {
	Name        string
	TotalLines  int
	TotalCopies int
	Crates      crate.Set
}

// BuildContext is the complete analyzed result of one build.
type BuildContext struct {
	Crates       []*Crate
	TextSize     crate.ByteSize
	DepsSymbols  map[string]crate.Name // mangled symbol name -> owning dependency crate
	WallDuration time.Duration
	TargetTriple string

	// ToolchainVersion is header metadata restored from
	// original_source/limpid's per-run banner.
	ToolchainVersion string
}

// byCrateName indexes Crates by name for O(1) lookup during aggregation.
type byCrateName map[string]*Crate

// Aggregate composes a binary reader result and an IR reader result into a
// single BuildContext, attributing every symbol and IR function to a crate.
func Aggregate(bin *binaryread.Result, irFuncs map[string]*irread.RawFunction, deps crate.Set, depsSymbols map[string]crate.Name, wall time.Duration, targetTriple string) *BuildContext {
	crates := byCrateName{}

	getOrCreate := func(n crate.Name) *Crate {
		if c, ok := crates[n.Value]; ok {
			return c
		}
		c := &Crate{Name: n, Symbols: map[string]*Symbol{}, IRFunctions: map[string]*IRFunction{}}
		crates[n.Value] = c
		return c
	}

	for _, raw := range bin.Symbols {
		res := mangle.Attribute(raw.MangledName, deps, depsSymbols)
		c := getOrCreate(res.Crate)
		if existing, ok := c.Symbols[raw.MangledName]; ok {
			// Two symbols with the same mangled name in the same binary are
			// merged by summing sizes (weak/duplicate emissions).
			existing.Size += raw.Size
			continue
		}
		c.Symbols[raw.MangledName] = &Symbol{
			MangledName:   raw.MangledName,
			DemangledName: res.Demangled,
			Address:       raw.Address,
			Size:          raw.Size,
			Crate:         res.Crate,
		}
	}

	for name, raw := range irFuncs {
		res := mangle.Attribute(name, deps, depsSymbols)
		c := getOrCreate(res.Crate)
		if existing, ok := c.IRFunctions[name]; ok {
			existing.LineCount += raw.LineCount
			existing.CopyCount += raw.CopyCount
			continue
		}
		c.IRFunctions[name] = &IRFunction{
			MangledName:   raw.MangledName,
			DemangledName: res.Demangled,
			LineCount:     raw.LineCount,
			CopyCount:     raw.CopyCount,
			Crate:         res.Crate,
		}
	}

	ordered := make([]*Crate, 0, len(crates))
	for _, c := range crates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := ordered[i].TotalSymbolSize(), ordered[j].TotalSymbolSize()
		if si != sj {
			return si > sj
		}
		return ordered[i].Name.Less(ordered[j].Name)
	})

	return &BuildContext{
		Crates:       ordered,
		TextSize:     bin.TextSize,
		DepsSymbols:  depsSymbols,
		WallDuration: wall,
		TargetTriple: targetTriple,
	}
}

// AllSymbols folds every crate's symbol map into one view keyed by
// demangled name, summing sizes and unioning crate sets across crates that
// legitimately share a generic instantiation.
func (b *BuildContext) AllSymbols() map[string]*AggregateSymbol {
	out := map[string]*AggregateSymbol{}
	for _, c := range b.Crates {
		for _, s := range c.Symbols {
			agg, ok := out[s.DemangledName]
			if !ok {
				agg = &AggregateSymbol{Name: s.DemangledName, Crates: crate.Set{}}
				out[s.DemangledName] = agg
			}
			agg.TotalSize += s.Size
			agg.Crates.Add(s.Crate)
		}
	}
	return out
}

// AllIRFunctions is the IR analog of AllSymbols.
func (b *BuildContext) AllIRFunctions() map[string]*AggregateIRFunction {
	out := map[string]*AggregateIRFunction{}
	for _, c := range b.Crates {
		for _, f := range c.IRFunctions {
			agg, ok := out[f.DemangledName]
			if !ok {
				agg = &AggregateIRFunction{Name: f.DemangledName, Crates: crate.Set{}}
				out[f.DemangledName] = agg
			}
			agg.TotalLines += f.LineCount
			agg.TotalCopies += f.CopyCount
			agg.Crates.Add(f.Crate)
		}
	}
	return out
}

// CrateByName returns the crate with the given name, if present.
func (b *BuildContext) CrateByName(name string) (*Crate, bool) {
	for _, c := range b.Crates {
		if c.Name.Value == name {
			return c, true
		}
	}
	return nil, false
}
