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

// Package diff computes the structured comparison between two
// BuildContexts. It is a pure function: no I/O, no failure modes.
package diff

import (
	"sort"
	"time"

	"github.com/google/bincmp/internal/buildctx"
	"github.com/google/bincmp/internal/crate"
)

// CrateDelta is one crate's before/after/diff entry. A nil Before means
// "new"; a nil After means "removed".
type CrateDelta struct {
	Name   string
	Before *crate.ByteSize
	After  *crate.ByteSize
	Diff   int64
}

// SymbolDelta is one aggregate-symbol before/after/diff entry.
type SymbolDelta struct {
	Name   string
	Before *buildctx.AggregateSymbol
	After  *buildctx.AggregateSymbol
	Diff   int64
}

// IRFunctionDelta is one aggregate-IR-function before/after/diff entry.
// Diff is a signed line-count delta.
type IRFunctionDelta struct {
	Name   string
	Before *buildctx.AggregateIRFunction
	After  *buildctx.AggregateIRFunction
	Diff   int64
}

// Totals holds independently-computed before/after pairs; these are never
// derived by summing the delta lists.
type Totals struct {
	CrateCountBefore, CrateCountAfter     int
	SymbolCountBefore, SymbolCountAfter   int
	TextSizeBefore, TextSizeAfter         crate.ByteSize
	IRLineCountBefore, IRLineCountAfter   int
	WallDurationBefore, WallDurationAfter time.Duration
}

// CrateCountDelta is CrateCountAfter - CrateCountBefore.
func (t Totals) CrateCountDelta() int { return t.CrateCountAfter - t.CrateCountBefore }

// SymbolCountDelta is SymbolCountAfter - SymbolCountBefore.
func (t Totals) SymbolCountDelta() int { return t.SymbolCountAfter - t.SymbolCountBefore }

// TextSizeDelta is the signed delta between the two text section sizes.
func (t Totals) TextSizeDelta() int64 { return t.TextSizeAfter.Sub(t.TextSizeBefore) }

// IRLineCountDelta is IRLineCountAfter - IRLineCountBefore.
func (t Totals) IRLineCountDelta() int { return t.IRLineCountAfter - t.IRLineCountBefore }

// WallDurationDelta is the signed duration delta.
func (t Totals) WallDurationDelta() time.Duration { return t.WallDurationAfter - t.WallDurationBefore }

// Meta carries the per-run header restored from original_source/limpid's
// report banner: toolchain + target identity for each side of the
// comparison.
type Meta struct {
	BaselineTriple    string
	CurrentTriple     string
	BaselineToolchain string
	CurrentToolchain  string
}

// Diff is the complete structured comparison between two BuildContexts.
type Diff struct {
	CrateDeltas      []CrateDelta
	SymbolDeltas     []SymbolDelta
	IRFunctionDeltas []IRFunctionDelta
	Totals           Totals
	Meta             Meta
}

// Compute produces the Diff between baseline and current. Pure; never
// fails: there is no I/O or parsing left to go wrong by this point.
func Compute(baseline, current *buildctx.BuildContext) *Diff {
	d := &Diff{
		CrateDeltas:      computeCrateDeltas(baseline, current),
		SymbolDeltas:     computeSymbolDeltas(baseline, current),
		IRFunctionDeltas: computeIRFunctionDeltas(baseline, current),
		Totals:           computeTotals(baseline, current),
		Meta: Meta{
			BaselineTriple:    baseline.TargetTriple,
			CurrentTriple:     current.TargetTriple,
			BaselineToolchain: baseline.ToolchainVersion,
			CurrentToolchain:  current.ToolchainVersion,
		},
	}
	return d
}

func computeCrateDeltas(baseline, current *buildctx.BuildContext) []CrateDelta {
	names := unionCrateNames(baseline, current)
	out := make([]CrateDelta, 0, len(names))

	for _, name := range names {
		var before, after *crate.ByteSize
		if c, ok := baseline.CrateByName(name); ok {
			v := c.TotalSymbolSize()
			before = &v
		}
		if c, ok := current.CrateByName(name); ok {
			v := c.TotalSymbolSize()
			after = &v
		}
		delta := signedDelta(before, after)
		if delta == 0 {
			continue
		}
		out = append(out, CrateDelta{Name: name, Before: before, After: after, Diff: delta})
	}

	sortByAbsDeltaThenName(out, func(i int) (int64, string) { return out[i].Diff, out[i].Name })
	return out
}

func computeSymbolDeltas(baseline, current *buildctx.BuildContext) []SymbolDelta {
	beforeAll := baseline.AllSymbols()
	afterAll := current.AllSymbols()
	names := unionStringKeys(beforeAll, afterAll)

	out := make([]SymbolDelta, 0, len(names))
	for _, name := range names {
		before := beforeAll[name]
		after := afterAll[name]
		var beforeSize, afterSize crate.ByteSize
		if before != nil {
			beforeSize = before.TotalSize
		}
		if after != nil {
			afterSize = after.TotalSize
		}
		delta := afterSize.Sub(beforeSize)
		if delta == 0 {
			continue
		}
		out = append(out, SymbolDelta{Name: name, Before: before, After: after, Diff: delta})
	}

	sortByAbsDeltaThenName(out, func(i int) (int64, string) { return out[i].Diff, out[i].Name })
	return out
}

func computeIRFunctionDeltas(baseline, current *buildctx.BuildContext) []IRFunctionDelta {
	beforeAll := baseline.AllIRFunctions()
	afterAll := current.AllIRFunctions()
	names := unionStringKeysIR(beforeAll, afterAll)

	out := make([]IRFunctionDelta, 0, len(names))
	for _, name := range names {
		before := beforeAll[name]
		after := afterAll[name]
		var beforeLines, afterLines int
		if before != nil {
			beforeLines = before.TotalLines
		}
		if after != nil {
			afterLines = after.TotalLines
		}
		delta := int64(afterLines - beforeLines)
		if delta == 0 {
			continue
		}
		out = append(out, IRFunctionDelta{Name: name, Before: before, After: after, Diff: delta})
	}

	sortByAbsDeltaThenName(out, func(i int) (int64, string) { return out[i].Diff, out[i].Name })
	return out
}

func computeTotals(baseline, current *buildctx.BuildContext) Totals {
	irLines := func(b *buildctx.BuildContext) int {
		var total int
		for _, c := range b.Crates {
			for _, f := range c.IRFunctions {
				total += f.LineCount
			}
		}
		return total
	}
	symbolCount := func(b *buildctx.BuildContext) int {
		var total int
		for _, c := range b.Crates {
			total += len(c.Symbols)
		}
		return total
	}

	return Totals{
		CrateCountBefore:   len(baseline.Crates),
		CrateCountAfter:    len(current.Crates),
		SymbolCountBefore:  symbolCount(baseline),
		SymbolCountAfter:   symbolCount(current),
		TextSizeBefore:     baseline.TextSize,
		TextSizeAfter:      current.TextSize,
		IRLineCountBefore:  irLines(baseline),
		IRLineCountAfter:   irLines(current),
		WallDurationBefore: baseline.WallDuration,
		WallDurationAfter:  current.WallDuration,
	}
}

func signedDelta(before, after *crate.ByteSize) int64 {
	var b, a crate.ByteSize
	if before != nil {
		b = *before
	}
	if after != nil {
		a = *after
	}
	return a.Sub(b)
}

func unionCrateNames(baseline, current *buildctx.BuildContext) []string {
	seen := map[string]bool{}
	var names []string
	for _, c := range baseline.Crates {
		if !seen[c.Name.Value] {
			seen[c.Name.Value] = true
			names = append(names, c.Name.Value)
		}
	}
	for _, c := range current.Crates {
		if !seen[c.Name.Value] {
			seen[c.Name.Value] = true
			names = append(names, c.Name.Value)
		}
	}
	sort.Strings(names)
	return names
}

func unionStringKeys(a, b map[string]*buildctx.AggregateSymbol) []string {
	seen := map[string]bool{}
	var names []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func unionStringKeysIR(a, b map[string]*buildctx.AggregateIRFunction) []string {
	seen := map[string]bool{}
	var names []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// sortByAbsDeltaThenName sorts s (already populated) by |delta| descending,
// breaking ties by name ascending. key is
// given an index rather than a value so it works across the three distinct
// delta slice types without generics duplication at each call site.
func sortByAbsDeltaThenName[T any](s []T, key func(i int) (int64, string)) {
	sort.SliceStable(s, func(i, j int) bool {
		di, ni := key(i)
		dj, nj := key(j)
		ai, aj := abs64(di), abs64(dj)
		if ai != aj {
			return ai > aj
		}
		return ni < nj
	})
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
